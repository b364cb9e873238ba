package crawler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corplens/sizeprobe/internal/models"
)

// ExtractionRules names, as CSS selectors, the DOM landmarks a paginated
// HTML engine's rendered page must expose: a no-results marker, a
// number-matches container, one container per result item, and — relative
// to each item — title, abstract, and identifier-link containers.
type ExtractionRules struct {
	NoResultsSelector     string
	NumberMatchesSelector string
	ItemSelector          string
	TitleSelector         string
	AbstractSelector      string
	IDLinkSelector        string // element whose href (or text, if IDLinkAttr is "") carries the identifier
	IDLinkAttr            string
}

var digitsPattern = regexp.MustCompile(`[\d,]+`)

func parseDigits(s string) (int, bool) {
	match := digitsPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

func extractNumberMatches(rules ExtractionRules, html string) (int, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, false
	}
	if rules.NoResultsSelector != "" && doc.Find(rules.NoResultsSelector).Length() > 0 {
		return 0, true
	}
	sel := doc.Find(rules.NumberMatchesSelector).First()
	if sel.Length() == 0 {
		return 0, false
	}
	return parseDigits(sel.Text())
}

func extractItems(rules ExtractionRules, html string) []models.Data {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []models.Data
	doc.Find(rules.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(rules.TitleSelector).First().Text())
		abstract := strings.TrimSpace(item.Find(rules.AbstractSelector).First().Text())
		content := strings.TrimSpace(title + " " + abstract)

		var identifier string
		idEl := item.Find(rules.IDLinkSelector).First()
		if rules.IDLinkAttr != "" {
			identifier, _ = idEl.Attr(rules.IDLinkAttr)
		} else {
			identifier = strings.TrimSpace(idEl.Text())
		}

		if identifier == "" && title == "" {
			// Neither an identifier nor a title could be extracted for this
			// item container: a structural extraction failure. Skip it here;
			// the page-occupancy check upstream will notice the resulting
			// short count and retry/fall back accordingly.
			return
		}

		var idPtr *string
		if identifier != "" {
			idPtr = &identifier
		}
		var contentPtr *string
		if content != "" {
			contentPtr = &content
		}
		items = append(items, models.NewData(idPtr, contentPtr))
	})
	return items
}

// ArchiveSite builds the SiteConfig for the 1-based, ceiling-offset
// pagination convention: calculate_offset(already) = ceil((already +
// page_size) / page_size). A fully inconsistent page is discarded (the
// reference engine's convention: return an empty slice rather than a
// partial, possibly-duplicated page).
func ArchiveSite(baseURL string, rules ExtractionRules, pageSize int) SiteConfig {
	return SiteConfig{
		Name:     "archive",
		PageSize: pageSize,
		BuildURL: func(query string, offset int) string {
			return fmt.Sprintf("%s?query=%s&page=%d", baseURL, urlEscape(query), offset)
		},
		CalculateOffset: func(already int) int {
			return ceilDiv(already+pageSize, pageSize)
		},
		ExtractNumberMatches: func(html string) (int, bool) { return extractNumberMatches(rules, html) },
		ExtractItems:         func(html string) []models.Data { return extractItems(rules, html) },
		HandleInconsistentPage: func(lastExtracted []models.Data) []models.Data {
			return nil
		},
	}
}

// LibrarySite builds the SiteConfig for the row-cursor, doubled-offset
// pagination convention: calculate_offset(already) = floor(2*already /
// page_size). A fully inconsistent page keeps whatever was last extracted,
// rather than discarding it.
func LibrarySite(baseURL string, rules ExtractionRules, pageSize int) SiteConfig {
	return SiteConfig{
		Name:     "library",
		PageSize: pageSize,
		BuildURL: func(query string, offset int) string {
			return fmt.Sprintf("%s?query=%s&startRow=%d", baseURL, urlEscape(query), offset)
		},
		CalculateOffset: func(already int) int {
			return (2 * already) / pageSize
		},
		ExtractNumberMatches: func(html string) (int, bool) { return extractNumberMatches(rules, html) },
		ExtractItems:         func(html string) []models.Data { return extractItems(rules, html) },
		HandleInconsistentPage: func(lastExtracted []models.Data) []models.Data {
			return lastExtracted
		},
	}
}

func urlEscape(s string) string {
	r := strings.NewReplacer(" ", "+", "&", "%26", "#", "%23")
	return r.Replace(s)
}
