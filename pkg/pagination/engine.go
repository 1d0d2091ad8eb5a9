package pagination

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/Sternrassler/plos-harvester/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UnspecifiedCount asks Paginate to probe the total result count.
const UnspecifiedCount = -1

// Prometheus metrics for crawl progress.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plos_pages_fetched_total",
		Help: "Total number of result pages written to output",
	})

	documentsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plos_documents_written_total",
		Help: "Total number of documents written to output",
	})
)

// Fetcher is the interface the HTTP client must implement for page fetching.
// *client.Client implements it.
type Fetcher interface {
	// Get returns the response body for url, or "" and an error.
	Get(ctx context.Context, url string) (string, error)
}

// Config holds pagination engine configuration.
type Config struct {
	// BaseURL is the search endpoint pages are requested from.
	BaseURL string

	// PageSize is the number of documents requested per page.
	PageSize int

	// RowsParam and StartParam name the page size and offset parameters.
	RowsParam  string
	StartParam string
}

// DefaultConfig returns the PLOS search configuration with 100 documents per page.
func DefaultConfig() Config {
	return Config{
		BaseURL:    query.BaseURL,
		PageSize:   100,
		RowsParam:  query.ParamRows,
		StartParam: query.ParamStart,
	}
}

// Result summarises a finished crawl.
type Result struct {
	// Requested is the resolved document count (after probing).
	Requested int
	// Pages is the number of pages written.
	Pages int
	// Documents is the number of documents written.
	Documents int
}

// Engine drives sequential page fetching.
type Engine struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewEngine creates a new pagination engine.
func NewEngine(fetcher Fetcher, config Config) *Engine {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.RowsParam == "" {
		config.RowsParam = defaults.RowsParam
	}
	if config.StartParam == "" {
		config.StartParam = defaults.StartParam
	}

	return &Engine{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Paginate fetches requested documents page by page and writes them to sink
// as one JSON array. params is mutated: start holds the offset of the last
// request when Paginate returns, and rows is restored to the page size once
// any page has been requested, whether or not the crawl succeeded.
//
// requested may be UnspecifiedCount, in which case the count is probed with
// the current params. When zero pages are needed nothing is written.
func (e *Engine) Paginate(ctx context.Context, params *query.Params, requested int, sink io.Writer) (Result, error) {
	start := time.Now()

	if requested == UnspecifiedCount {
		probeURL := query.BuildURL(e.config.BaseURL, params)
		n, err := ProbeCount(ctx, e.fetcher, probeURL)
		if err != nil {
			e.logger.Error().Err(err).Msg("Could not determine result count")
			return Result{}, err
		}
		e.logger.Info().Int("num_found", n).Msg("Probed result count")
		requested = n
	}
	if requested < 0 {
		return Result{}, fmt.Errorf("invalid document count %d", requested)
	}

	pageSize := e.config.PageSize
	// Offsets must stay representable up to the last page.
	if requested > math.MaxInt-pageSize {
		return Result{Requested: requested}, fmt.Errorf("document count %d too large", requested)
	}
	pagesNeeded := requested / pageSize
	leftover := requested % pageSize
	if leftover != 0 {
		pagesNeeded++
	}
	result := Result{Requested: requested}

	if pagesNeeded <= 0 {
		e.logger.Info().Msg("No documents to fetch")
		return result, nil
	}

	offset := 0
	if v, ok := params.Lookup(e.config.StartParam); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return result, fmt.Errorf("invalid %s parameter %q: %w", e.config.StartParam, v, err)
		}
		offset = parsed
	}
	if offset < 0 || offset > math.MaxInt-pageSize-requested {
		return result, fmt.Errorf("invalid %s offset %d", e.config.StartParam, offset)
	}

	e.logger.Info().
		Int("documents", requested).
		Int("pages", pagesNeeded).
		Int("page_size", pageSize).
		Msg("Starting paginated fetch")

	// The leftover row count applies to the last request only.
	defer params.Set(e.config.RowsParam, strconv.Itoa(pageSize))

	out := newArrayWriter(sink)
	if err := out.open(); err != nil {
		return result, err
	}

	for page := 0; page < pagesNeeded; page++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Int("page", page).Msg("Crawl cancelled between pages")
			return result, fmt.Errorf("crawl cancelled before page %d: %w", page, err)
		}

		rows := pageSize
		if page == pagesNeeded-1 && leftover != 0 {
			rows = leftover
		}
		params.Set(e.config.RowsParam, strconv.Itoa(rows))
		params.Set(e.config.StartParam, strconv.Itoa(offset))

		pageURL := query.BuildURL(e.config.BaseURL, params)
		body, err := e.fetcher.Get(ctx, pageURL)
		if err != nil {
			e.logger.Error().Err(err).Int("page", page).Msg("Page fetch failed")
			return result, fmt.Errorf("fetch page %d: %w", page, err)
		}

		docs, err := ExtractDocuments(body)
		if err != nil {
			e.logger.Error().Err(err).Int("page", page).Msg("Page could not be parsed")
			return result, fmt.Errorf("page %d: %w", page, err)
		}

		if err := out.writeDocuments(docs); err != nil {
			return result, err
		}

		result.Pages++
		result.Documents += len(docs)
		pagesFetchedTotal.Inc()
		documentsWrittenTotal.Add(float64(len(docs)))

		e.logger.Info().
			Int("page", page+1).
			Int("pages", pagesNeeded).
			Int("rows", rows).
			Int("start", offset).
			Int("documents", len(docs)).
			Msg("Fetched page")

		offset += pageSize
	}

	if err := out.close(); err != nil {
		return result, err
	}

	// The leftover row count applied to the last request only.
	params.Set(e.config.RowsParam, strconv.Itoa(pageSize))

	e.logger.Info().
		Int("pages", result.Pages).
		Int("documents", result.Documents).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// FetchSingle fetches one page with the current params and writes the raw
// body to sink unchanged.
func (e *Engine) FetchSingle(ctx context.Context, params *query.Params, sink io.Writer) error {
	body, err := e.fetcher.Get(ctx, query.BuildURL(e.config.BaseURL, params))
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	if _, err := io.WriteString(sink, body); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}
