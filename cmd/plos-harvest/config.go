package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/plos-harvester/pkg/client"
	"github.com/Sternrassler/plos-harvester/pkg/logging"
	"github.com/Sternrassler/plos-harvester/pkg/pagination"
	"github.com/Sternrassler/plos-harvester/pkg/query"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides: PLOS_API_KEY, PLOS_QUERY, ...
const envPrefix = "PLOS"

// Config is the resolved harvest configuration.
type Config struct {
	APIKey     string
	Query      string
	QueryField string
	Fields     []string
	Filter     string
	Count      int
	PageSize   int
	BaseURL    string
	OutputDir  string
	Raw        bool

	MaxAttempts      int
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	InitialBackoff   time.Duration
	BreakerThreshold int

	RedisAddr string
	CacheTTL  time.Duration

	LogLevel    logging.LogLevel
	LogPretty   bool
	MetricsFile string
}

// setDefaults registers the default value of every configuration key.
func setDefaults(v *viper.Viper) {
	clientDefaults := client.DefaultConfig()
	pageDefaults := pagination.DefaultConfig()

	v.SetDefault("api_key", "")
	v.SetDefault("query", "")
	v.SetDefault("query_field", query.FieldEverything)
	v.SetDefault("fields", []string{query.FieldAuthor, query.FieldTitle, query.FieldAbstract, query.FieldBody})
	v.SetDefault("filter", query.FilterFullText)
	v.SetDefault("count", pagination.UnspecifiedCount)
	v.SetDefault("page_size", pageDefaults.PageSize)
	v.SetDefault("base_url", pageDefaults.BaseURL)
	v.SetDefault("output_dir", ".")
	v.SetDefault("raw", false)
	v.SetDefault("max_attempts", clientDefaults.Retry.MaxAttempts)
	v.SetDefault("connect_timeout", clientDefaults.ConnectTimeout)
	v.SetDefault("read_timeout", clientDefaults.ReadTimeout)
	v.SetDefault("initial_backoff", clientDefaults.Retry.InitialBackoff)
	v.SetDefault("breaker_threshold", clientDefaults.BreakerThreshold)
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("log_level", string(logging.LevelInfo))
	v.SetDefault("log_pretty", false)
	v.SetDefault("metrics_file", "")
}

// loadConfig reads and validates the configuration held by v.
func loadConfig(v *viper.Viper) (Config, error) {
	level, err := logging.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIKey:           v.GetString("api_key"),
		Query:            v.GetString("query"),
		QueryField:       v.GetString("query_field"),
		Fields:           splitList(v.GetStringSlice("fields")),
		Filter:           v.GetString("filter"),
		Count:            v.GetInt("count"),
		PageSize:         v.GetInt("page_size"),
		BaseURL:          v.GetString("base_url"),
		OutputDir:        v.GetString("output_dir"),
		Raw:              v.GetBool("raw"),
		MaxAttempts:      v.GetInt("max_attempts"),
		ConnectTimeout:   v.GetDuration("connect_timeout"),
		ReadTimeout:      v.GetDuration("read_timeout"),
		InitialBackoff:   v.GetDuration("initial_backoff"),
		BreakerThreshold: v.GetInt("breaker_threshold"),
		RedisAddr:        v.GetString("redis_addr"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		LogLevel:         level,
		LogPretty:        v.GetBool("log_pretty"),
		MetricsFile:      v.GetString("metrics_file"),
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges. Client timeouts and attempts are checked
// again by client.New.
func (c Config) Validate() error {
	if c.QueryField == "" {
		return fmt.Errorf("query_field is required")
	}
	if query.IsEmptyQuery(c.QueryField, query.Encode(c.QueryField, c.Query)) {
		return fmt.Errorf("query must contain at least one keyword")
	}
	if c.Count < pagination.UnspecifiedCount {
		return fmt.Errorf("count must be >= 0, or %d to probe (got %d)", pagination.UnspecifiedCount, c.Count)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be >= 1 (got %d)", c.PageSize)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must not be negative")
	}
	return nil
}

// ClientConfig maps the harvest configuration onto the HTTP client.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Retry.MaxAttempts = c.MaxAttempts
	cfg.Retry.InitialBackoff = c.InitialBackoff
	cfg.ConnectTimeout = c.ConnectTimeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.BreakerThreshold = c.BreakerThreshold
	return cfg
}

// Params builds the initial request parameters of a crawl.
func (c Config) Params() *query.Params {
	p := query.NewParams()
	if c.APIKey != "" {
		p.Set(query.ParamAPIKey, c.APIKey)
	}
	p.Set(query.ParamDocType, "json")
	if len(c.Fields) > 0 {
		p.Set(query.ParamFields, query.OutputFields(c.Fields))
	}
	if c.Filter != "" {
		p.Set(query.ParamFilterQuery, c.Filter)
	}
	p.Set(query.ParamQuery, query.Encode(c.QueryField, c.Query))
	p.Set(query.ParamRows, fmt.Sprint(c.PageSize))
	p.Set(query.ParamStart, "0")
	return p
}

// splitList accepts both repeated values and a single comma-separated value,
// as environment variables deliver.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
