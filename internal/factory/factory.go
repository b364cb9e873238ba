// Package factory implements the specification's Factory contract: given an
// experiment name, it constructs the (Estimator, CrawlerApi, Logger) triple
// that name denotes, each already wired to the others. Nothing upstream of
// Build ever constructs a crawler or a logger directly; the estimator engine
// treats the bundle it receives as opaque.
package factory

import (
	"fmt"
	"time"

	"github.com/corplens/sizeprobe/internal/cache"
	"github.com/corplens/sizeprobe/internal/config"
	"github.com/corplens/sizeprobe/internal/crawler"
	"github.com/corplens/sizeprobe/internal/estimator"
	"github.com/corplens/sizeprobe/internal/reportlog"
)

// Engine names the search backend half of an experiment name.
type Engine string

const (
	EngineSolr    Engine = "solr"
	EngineArchive Engine = "archive"
	EngineLibrary Engine = "library"
)

// Algorithm names the estimator half of an experiment name.
type Algorithm string

const (
	AlgorithmMHR        Algorithm = "mhr"
	AlgorithmExactMHR   Algorithm = "exact-mhr"
	AlgorithmTeacherMHR Algorithm = "teacher-mhr"
	AlgorithmRandomWalk Algorithm = "random-walk"
	AlgorithmBroder     Algorithm = "broder"
	AlgorithmSumEst     Algorithm = "sumest"
	AlgorithmMCR        Algorithm = "mcr"
	AlgorithmCH         Algorithm = "ch"
	AlgorithmMCRReg     Algorithm = "mcr-reg"
	AlgorithmCHReg      Algorithm = "ch-reg"
)

// Bundle is everything one experiment run needs: an estimator wired to a
// crawler, and a logger to record what it produces. Close is always non-nil:
// it releases the crawler's headless browser, when the engine has one, and
// closes the logger's report file once the run finishes.
type Bundle struct {
	Estimator estimator.Estimator
	Crawler   crawler.Api
	Logger    reportlog.Logger
	Close     func() error
}

// Build parses experiment (engine:algorithm, e.g. "archive:random-walk") and
// returns the fully wired Bundle, reading every tunable parameter from cfg.
func Build(experiment string, cfg *config.Config) (*Bundle, error) {
	engine, algo, err := splitExperiment(experiment)
	if err != nil {
		return nil, err
	}

	c, crawlerCloser, err := buildCrawler(engine, cfg)
	if err != nil {
		return nil, err
	}

	est, err := buildEstimator(algo, c, cfg)
	if err != nil {
		if crawlerCloser != nil {
			_ = crawlerCloser()
		}
		return nil, err
	}

	logger, err := reportlog.NewCSVLogger(cfg.ReportDir, experiment)
	if err != nil {
		if crawlerCloser != nil {
			_ = crawlerCloser()
		}
		return nil, err
	}

	return &Bundle{
		Estimator: est,
		Crawler:   c,
		Logger:    logger,
		Close: func() error {
			var firstErr error
			if crawlerCloser != nil {
				if err := crawlerCloser(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if err := logger.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			return firstErr
		},
	}, nil
}

func splitExperiment(experiment string) (Engine, Algorithm, error) {
	for i := 0; i < len(experiment); i++ {
		if experiment[i] == ':' {
			return Engine(experiment[:i]), Algorithm(experiment[i+1:]), nil
		}
	}
	return "", "", fmt.Errorf("factory: experiment %q is not of the form \"engine:algorithm\"", experiment)
}

func buildCrawler(engine Engine, cfg *config.Config) (crawler.Api, func() error, error) {
	switch engine {
	case EngineSolr:
		c := crawler.NewSolrCrawler(crawler.SolrConfig{
			BaseURL:         cfg.Solr.BaseURL,
			SearchField:     cfg.Solr.SearchField,
			IdentifierField: cfg.Solr.IdentifierField,
			ContentField:    cfg.Solr.ContentField,
			ThreadLimit:     cfg.Solr.ThreadLimit,
		}, cfg.Solr.LimitResultsPerQuery)
		return c, nil, nil

	case EngineArchive:
		return buildWebsiteCrawler(crawler.ArchiveSite, "archive", cfg.Archive, cfg.CacheDir)

	case EngineLibrary:
		return buildWebsiteCrawler(crawler.LibrarySite, "library", cfg.Library, cfg.CacheDir)

	default:
		return nil, nil, fmt.Errorf("factory: unknown engine %q", engine)
	}
}

func buildWebsiteCrawler(
	siteBuilder func(baseURL string, rules crawler.ExtractionRules, pageSize int) crawler.SiteConfig,
	name string,
	ep config.ScrapedEndpoint,
	cacheDir string,
) (crawler.Api, func() error, error) {
	rules := crawler.ExtractionRules{
		NoResultsSelector:     ep.NoResultsSelector,
		NumberMatchesSelector: ep.NumberMatchesSelector,
		ItemSelector:          ep.ItemSelector,
		TitleSelector:         ep.TitleSelector,
		AbstractSelector:      ep.AbstractSelector,
		IDLinkSelector:        ep.IDLinkSelector,
		IDLinkAttr:            ep.IDLinkAttr,
	}
	site := siteBuilder(ep.BaseURL, rules, ep.PageSize)

	resultCache, err := cache.New(cacheDir + "/" + name)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: building %s cache: %w", name, err)
	}

	waitTimeout := time.Duration(ep.WaitTimeoutSeconds) * time.Second
	fetcher, err := crawler.NewRodFetcher(ep.Headless, waitTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: launching %s fetcher: %w", name, err)
	}

	c := crawler.NewWebsiteCrawler(site, fetcher, resultCache, ep.LimitResultsPerQuery, ep.ThreadLimit)
	return c, fetcher.Close, nil
}

func buildEstimator(algo Algorithm, c crawler.Api, cfg *config.Config) (estimator.Estimator, error) {
	pool := cfg.QueryPool
	e := cfg.Estimators

	switch algo {
	case AlgorithmMHR:
		return estimator.NewMHR(c, pool, estimator.MHRConfig{
			NumberQueries:    e.MHR.NumberQueries,
			MinNumberMatches: e.MHR.MinNumberMatches,
			MaxNumberMatches: e.MHR.MaxNumberMatches,
		}), nil

	case AlgorithmExactMHR:
		return estimator.NewExactMHR(c, pool, estimator.MHRConfig{
			NumberQueries:    e.ExactMHR.NumberQueries,
			MinNumberMatches: e.ExactMHR.MinNumberMatches,
			MaxNumberMatches: e.ExactMHR.MaxNumberMatches,
		}), nil

	case AlgorithmTeacherMHR:
		return estimator.NewTeacherMHR(c, pool, estimator.MHRConfig{
			NumberQueries:    e.MHR.NumberQueries,
			MinNumberMatches: e.MHR.MinNumberMatches,
			MaxNumberMatches: e.MHR.MaxNumberMatches,
		}), nil

	case AlgorithmRandomWalk:
		return estimator.NewRandomWalk(c, pool, estimator.RandomWalkConfig{
			SampleSize:                   e.RandomWalk.SampleSize,
			MinNumberMatchesForSeedQuery: e.RandomWalk.MinNumberMatchesForSeedQuery,
			MinNumberWords:               e.RandomWalk.MinNumberWords,
		}), nil

	case AlgorithmBroder:
		return estimator.NewBroderEtAl(c, pool, estimator.BroderConfig{
			QueryRandomSampleSize:    e.Broder.QueryRandomSampleSize,
			DocumentRandomSampleSize: e.Broder.DocumentRandomSampleSize,
		}), nil

	case AlgorithmSumEst:
		return estimator.NewSumEst(c, pool, estimator.SumEstConfig{
			IterationNumber: e.SumEst.IterationNumber,
			PoolSampleSize:  e.SumEst.PoolSampleSize,
		}), nil

	case AlgorithmMCR:
		return estimator.NewMCR(c, pool, shokouhiConfig(e.Shokouhi)), nil

	case AlgorithmCH:
		return estimator.NewCH(c, pool, shokouhiConfig(e.Shokouhi)), nil

	case AlgorithmMCRReg:
		return estimator.NewMCRReg(c, pool, shokouhiConfig(e.Shokouhi)), nil

	case AlgorithmCHReg:
		return estimator.NewCHReg(c, pool, shokouhiConfig(e.Shokouhi)), nil

	default:
		return nil, fmt.Errorf("factory: unknown algorithm %q", algo)
	}
}

func shokouhiConfig(p config.ShokouhiParams) estimator.ShokouhiConfig {
	return estimator.ShokouhiConfig{
		FactorK:          p.FactorK,
		MinNumberMatches: p.MinNumberMatches,
		QuerySampleSize:  p.QuerySampleSize,
	}
}
