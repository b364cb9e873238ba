// Package config loads the sizeprobe run configuration: which search
// engines are wired up, their crawl parameters, and the per-algorithm
// sampling parameters an experiment run needs. It follows the same
// viper-based layered loading (file, then defaults) the teacher repo's
// own config package uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the top-level run configuration: one entry per supported
// search-engine transport, plus the sampling parameters for every
// estimator family.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	QueryPool  string           `mapstructure:"query_pool"`
	CacheDir   string           `mapstructure:"cache_dir"`
	ReportDir  string           `mapstructure:"report_dir"`
	Solr       SolrEndpoint     `mapstructure:"solr"`
	Archive    ScrapedEndpoint  `mapstructure:"archive"`
	Library    ScrapedEndpoint  `mapstructure:"library"`
	Estimators EstimatorsConfig `mapstructure:"estimators"`
}

// LoggingConfig controls the applog sink, mirroring the teacher's own
// logging configuration block field for field.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SolrEndpoint configures the direct-JSON crawler against one Solr-like
// search handler.
type SolrEndpoint struct {
	BaseURL              string `mapstructure:"base_url"`
	SearchField          string `mapstructure:"search_field"`
	IdentifierField      string `mapstructure:"identifier_field"`
	ContentField         string `mapstructure:"content_field"`
	LimitResultsPerQuery int    `mapstructure:"limit_results_per_query"`
	ThreadLimit          int    `mapstructure:"thread_limit"`
}

// ScrapedEndpoint configures one of the two paginated HTML-scraping
// crawlers (archive/library pagination conventions).
type ScrapedEndpoint struct {
	BaseURL              string `mapstructure:"base_url"`
	PageSize             int    `mapstructure:"page_size"`
	LimitResultsPerQuery int    `mapstructure:"limit_results_per_query"`
	ThreadLimit          int    `mapstructure:"thread_limit"`
	Headless             bool   `mapstructure:"headless"`
	WaitTimeoutSeconds   int    `mapstructure:"wait_timeout_seconds"`

	NoResultsSelector     string `mapstructure:"no_results_selector"`
	NumberMatchesSelector string `mapstructure:"number_matches_selector"`
	ItemSelector          string `mapstructure:"item_selector"`
	TitleSelector         string `mapstructure:"title_selector"`
	AbstractSelector      string `mapstructure:"abstract_selector"`
	IDLinkSelector        string `mapstructure:"id_link_selector"`
	IDLinkAttr            string `mapstructure:"id_link_attr"`
}

// EstimatorsConfig groups every estimator family's sampling parameters.
type EstimatorsConfig struct {
	MHR      MHRParams      `mapstructure:"mhr"`
	ExactMHR MHRParams      `mapstructure:"exact_mhr"`
	RandomWalk RandomWalkParams `mapstructure:"random_walk"`
	Broder   BroderParams   `mapstructure:"broder"`
	SumEst   SumEstParams   `mapstructure:"sumest"`
	Shokouhi ShokouhiParams `mapstructure:"shokouhi"`
}

type MHRParams struct {
	NumberQueries    int `mapstructure:"number_queries"`
	MinNumberMatches int `mapstructure:"min_number_matches"`
	MaxNumberMatches int `mapstructure:"max_number_matches"`
}

type RandomWalkParams struct {
	SampleSize                   int `mapstructure:"sample_size"`
	MinNumberMatchesForSeedQuery int `mapstructure:"min_number_matches_for_seed_query"`
	MinNumberWords               int `mapstructure:"min_number_words"`
}

type BroderParams struct {
	QueryRandomSampleSize    int `mapstructure:"query_random_sample_size"`
	DocumentRandomSampleSize int `mapstructure:"document_random_sample_size"`
}

type SumEstParams struct {
	IterationNumber int `mapstructure:"iteration_number"`
	PoolSampleSize  int `mapstructure:"pool_sample_size"`
}

type ShokouhiParams struct {
	FactorK          int `mapstructure:"factor_k"`
	MinNumberMatches int `mapstructure:"min_number_matches"`
	QuerySampleSize  int `mapstructure:"query_sample_size"`
}

// Load reads configPath (or searches ./configs and . for "config.yaml") and
// returns a Config with defaults filled in for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sizeprobe"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing config file: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("query_pool", "queries.txt")
	v.SetDefault("cache_dir", "data/cache")
	v.SetDefault("report_dir", "reports")

	v.SetDefault("solr.search_field", "text")
	v.SetDefault("solr.identifier_field", "id")
	v.SetDefault("solr.content_field", "text")
	v.SetDefault("solr.limit_results_per_query", 1000)
	v.SetDefault("solr.thread_limit", 4)

	for _, site := range []string{"archive", "library"} {
		v.SetDefault(site+".page_size", 20)
		v.SetDefault(site+".limit_results_per_query", 1000)
		v.SetDefault(site+".thread_limit", 2)
		v.SetDefault(site+".headless", true)
		v.SetDefault(site+".wait_timeout_seconds", 30)
	}

	v.SetDefault("estimators.mhr.number_queries", 100)
	v.SetDefault("estimators.mhr.min_number_matches", 1)
	v.SetDefault("estimators.mhr.max_number_matches", 1000000)

	v.SetDefault("estimators.exact_mhr.number_queries", 100)
	v.SetDefault("estimators.exact_mhr.min_number_matches", 1)
	v.SetDefault("estimators.exact_mhr.max_number_matches", 1000)

	v.SetDefault("estimators.random_walk.sample_size", 100)
	v.SetDefault("estimators.random_walk.min_number_matches_for_seed_query", 1)
	v.SetDefault("estimators.random_walk.min_number_words", 5)

	v.SetDefault("estimators.broder.query_random_sample_size", 20)
	v.SetDefault("estimators.broder.document_random_sample_size", 100)

	v.SetDefault("estimators.sumest.iteration_number", 100)
	v.SetDefault("estimators.sumest.pool_sample_size", 50)

	v.SetDefault("estimators.shokouhi.factor_k", 10)
	v.SetDefault("estimators.shokouhi.min_number_matches", 1)
	v.SetDefault("estimators.shokouhi.query_sample_size", 50)
}
