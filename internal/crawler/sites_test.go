package crawler

import "testing"

const archiveHTML = `
<html><body>
<div class="result-count">About 123 results</div>
<div class="item">
  <a class="doc-link" href="doc-1">Title One</a>
  <p class="abstract">Abstract one.</p>
</div>
<div class="item">
  <a class="doc-link" href="doc-2">Title Two</a>
  <p class="abstract">Abstract two.</p>
</div>
</body></html>`

const noResultsHTML = `<html><body><div class="no-results">Nothing found</div></body></html>`

func archiveRules() ExtractionRules {
	return ExtractionRules{
		NoResultsSelector:     ".no-results",
		NumberMatchesSelector: ".result-count",
		ItemSelector:          ".item",
		TitleSelector:         ".doc-link",
		AbstractSelector:      ".abstract",
		IDLinkSelector:        ".doc-link",
		IDLinkAttr:            "href",
	}
}

func TestExtractNumberMatches(t *testing.T) {
	n, ok := extractNumberMatches(archiveRules(), archiveHTML)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if n != 123 {
		t.Errorf("n = %d, want 123", n)
	}
}

func TestExtractNumberMatches_NoResults(t *testing.T) {
	n, ok := extractNumberMatches(archiveRules(), noResultsHTML)
	if !ok {
		t.Fatal("expected ok=true for an explicit no-results marker")
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
}

func TestExtractItems(t *testing.T) {
	items := extractItems(archiveRules(), archiveHTML)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].IdentifierOrEmpty() != "doc-1" {
		t.Errorf("items[0].Identifier = %q, want doc-1", items[0].IdentifierOrEmpty())
	}
	if items[0].ContentOrEmpty() != "Title One Abstract one." {
		t.Errorf("items[0].Content = %q", items[0].ContentOrEmpty())
	}
}

func TestArchiveSite_CalculateOffset(t *testing.T) {
	site := ArchiveSite("http://example.invalid/search", archiveRules(), 100)
	tests := []struct {
		already int
		want    int
	}{
		{0, 1},
		{100, 2},
		{250, 4}, // ceil(350/100) = 4
	}
	for _, tt := range tests {
		if got := site.CalculateOffset(tt.already); got != tt.want {
			t.Errorf("CalculateOffset(%d) = %d, want %d", tt.already, got, tt.want)
		}
	}
}

func TestLibrarySite_CalculateOffset(t *testing.T) {
	site := LibrarySite("http://example.invalid/search", archiveRules(), 20)
	tests := []struct {
		already int
		want    int
	}{
		{0, 0},
		{20, 2},
		{40, 4},
	}
	for _, tt := range tests {
		if got := site.CalculateOffset(tt.already); got != tt.want {
			t.Errorf("CalculateOffset(%d) = %d, want %d", tt.already, got, tt.want)
		}
	}
}

func TestArchiveSite_HandleInconsistentPage_ReturnsEmpty(t *testing.T) {
	site := ArchiveSite("http://example.invalid", archiveRules(), 20)
	got := site.HandleInconsistentPage(extractItems(archiveRules(), archiveHTML))
	if len(got) != 0 {
		t.Errorf("expected archive fallback to discard, got %d items", len(got))
	}
}

func TestLibrarySite_HandleInconsistentPage_KeepsPassthrough(t *testing.T) {
	site := LibrarySite("http://example.invalid", archiveRules(), 20)
	last := extractItems(archiveRules(), archiveHTML)
	got := site.HandleInconsistentPage(last)
	if len(got) != len(last) {
		t.Errorf("expected library fallback to keep %d items, got %d", len(last), len(got))
	}
}
