// Command plos-harvest downloads every document matching a keyword query from
// the PLOS search API into a single JSON array file.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/plos-harvester/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagNames lists every flag bound to a configuration key of the same name
// with dashes replaced by underscores.
var flagNames = []string{
	"api-key", "query", "query-field", "fields", "filter", "count", "page-size",
	"base-url", "output-dir", "raw", "max-attempts", "connect-timeout",
	"read-timeout", "initial-backoff", "breaker-threshold", "redis-addr",
	"cache-ttl", "log-level", "log-pretty", "metrics-file",
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var envFile string

	cmd := &cobra.Command{
		Use:   "plos-harvest",
		Short: "Harvest PLOS search results into a JSON array file",
		Long: `plos-harvest pages through the PLOS search API for a semicolon-separated
keyword query and writes every matching document to one JSON array file.

Every flag can also be set through a PLOS_ environment variable
(PLOS_API_KEY, PLOS_PAGE_SIZE, ...) or a .env file.`,
		Example:       `  plos-harvest --query "machine learning;neural networks" --count 500`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			logging.Setup(logging.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading PLOS_ variables (ignored if missing)")
	f.String("api-key", v.GetString("api_key"), "PLOS API key")
	f.StringP("query", "q", v.GetString("query"), "semicolon-separated keywords, OR-combined")
	f.String("query-field", v.GetString("query_field"), "document field the keywords are matched against")
	f.StringSlice("fields", v.GetStringSlice("fields"), "document fields to return")
	f.String("filter", v.GetString("filter"), "filter query (empty for none)")
	f.IntP("count", "n", v.GetInt("count"), "number of documents to fetch (-1 asks the API for the total)")
	f.Int("page-size", v.GetInt("page_size"), "documents per request")
	f.String("base-url", v.GetString("base_url"), "search endpoint")
	f.StringP("output-dir", "o", v.GetString("output_dir"), "directory the result file is written to")
	f.Bool("raw", v.GetBool("raw"), "fetch a single page and write the raw response body")
	f.Int("max-attempts", v.GetInt("max_attempts"), "attempts per request for non-200 responses")
	f.Duration("connect-timeout", v.GetDuration("connect_timeout"), "connection timeout per attempt")
	f.Duration("read-timeout", v.GetDuration("read_timeout"), "response timeout per attempt")
	f.Duration("initial-backoff", v.GetDuration("initial_backoff"), "delay before the first retry, doubled after each (0 retries immediately)")
	f.Int("breaker-threshold", v.GetInt("breaker_threshold"), "consecutive failed requests that open the circuit (0 disables)")
	f.String("redis-addr", v.GetString("redis_addr"), "Redis address for the shared response cache (empty for memory only)")
	f.Duration("cache-ttl", v.GetDuration("cache_ttl"), "response cache lifetime (0 disables caching)")
	f.String("log-level", v.GetString("log_level"), "log level: debug, info, warn, error")
	f.Bool("log-pretty", v.GetBool("log_pretty"), "human-readable console logs")
	f.String("metrics-file", v.GetString("metrics_file"), "write Prometheus metrics to this textfile after the run")

	for _, name := range flagNames {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "_"), f.Lookup(name))
	}

	return cmd
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if err := newRootCmd(viper.New()).ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Harvest failed")
		os.Exit(1)
	}
}
