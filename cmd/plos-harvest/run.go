package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/plos-harvester/pkg/cache"
	"github.com/Sternrassler/plos-harvester/pkg/client"
	"github.com/Sternrassler/plos-harvester/pkg/logging"
	"github.com/Sternrassler/plos-harvester/pkg/metrics"
	"github.com/Sternrassler/plos-harvester/pkg/output"
	"github.com/Sternrassler/plos-harvester/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Summary describes a finished harvest.
type Summary struct {
	// Output is the path of the committed result file.
	Output string
	// Result is the pagination outcome; zero in raw mode.
	Result pagination.Result
	// Duration is the wall time of the run.
	Duration time.Duration
}

// run performs one harvest with cfg. The result file only appears under its
// final name when the crawl succeeds.
func run(ctx context.Context, cfg Config) (Summary, error) {
	started := time.Now()
	logger := logging.WithHarvest(logging.NewLogger("harvest"), cfg.Query, cfg.Count)

	if cfg.APIKey == "" {
		logger.Warn().Msg("No api_key configured; requests are sent without one")
	}
	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Error().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	clientCfg := cfg.ClientConfig()
	if cfg.CacheTTL > 0 {
		rdb, err := connectRedis(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return Summary{}, err
		}
		if rdb != nil {
			defer rdb.Close()
		}
		cacheCfg := cache.DefaultConfig()
		cacheCfg.TTL = cfg.CacheTTL
		clientCfg.Cache = cache.NewManager(rdb, cacheCfg)
		clientCfg.Cacheable = pagination.IsPage
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return Summary{}, fmt.Errorf("create client: %w", err)
	}

	engine := pagination.NewEngine(c, pagination.Config{
		BaseURL:  cfg.BaseURL,
		PageSize: cfg.PageSize,
	})

	ext := output.ExtJSON
	if cfg.Raw {
		ext = output.ExtRaw
	}
	out, err := output.Create(cfg.OutputDir, output.FileName(output.DefaultPrefix, ext, started))
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Output: out.Name()}
	params := cfg.Params()

	if cfg.Raw {
		err = engine.FetchSingle(ctx, params, out)
	} else {
		summary.Result, err = engine.Paginate(ctx, params, cfg.Count, out)
	}
	if err != nil {
		if abortErr := out.Abort(); abortErr != nil {
			logger.Error().Err(abortErr).Msg("Failed to discard partial output")
		}
		return summary, fmt.Errorf("harvest: %w", err)
	}

	if err := out.Commit(); err != nil {
		return summary, err
	}
	summary.Duration = time.Since(started)

	logger.Info().
		Str("output", summary.Output).
		Int("pages", summary.Result.Pages).
		Int("documents", summary.Result.Documents).
		Int64("bytes", out.Written()).
		Dur("duration", summary.Duration).
		Msg("Harvest complete")

	return summary, nil
}

// connectRedis returns nil when addr is empty.
func connectRedis(ctx context.Context, addr string, logger zerolog.Logger) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Info().Str("addr", addr).Msg("Connected to Redis")
	return rdb, nil
}
