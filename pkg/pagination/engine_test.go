package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/Sternrassler/plos-harvester/internal/testutil"
	"github.com/Sternrassler/plos-harvester/pkg/client"
	"github.com/Sternrassler/plos-harvester/pkg/query"
)

func testParams() *query.Params {
	p := query.NewParams()
	p.Set(query.ParamAPIKey, "test-key")
	p.Set(query.ParamDocType, "json")
	p.Set(query.ParamQuery, query.Encode(query.FieldEverything, "genomics"))
	p.Set(query.ParamRows, "100")
	p.Set(query.ParamStart, "0")
	return p
}

func testEngine(f Fetcher, pageSize int) *Engine {
	return NewEngine(f, Config{BaseURL: "http://h/search", PageSize: pageSize})
}

// decodeArray parses output as a JSON array of objects.
func decodeArray(t *testing.T, out string) []map[string]any {
	t.Helper()
	var docs []map[string]any
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
	return docs
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(newFakeFetcher(0), Config{})
	cfg := e.Config()

	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", cfg.PageSize)
	}
	if cfg.BaseURL != query.BaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, query.BaseURL)
	}
	if cfg.RowsParam != query.ParamRows || cfg.StartParam != query.ParamStart {
		t.Errorf("params = %q/%q", cfg.RowsParam, cfg.StartParam)
	}
}

func TestPaginate_LeftoverPage(t *testing.T) {
	f := newFakeFetcher(500)
	var out bytes.Buffer

	result, err := testEngine(f, 100).Paginate(context.Background(), testParams(), 210, &out)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if got, want := f.requestedRows(), []int{100, 100, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("requested rows = %v, want %v", got, want)
	}
	if result.Pages != 3 || result.Documents != 210 || result.Requested != 210 {
		t.Errorf("Result = %+v", result)
	}

	docs := decodeArray(t, out.String())
	if len(docs) != 210 {
		t.Errorf("documents in output = %d, want 210", len(docs))
	}
	if docs[0]["id"] != "doc-0" || docs[209]["id"] != "doc-209" {
		t.Errorf("unexpected first/last documents: %v, %v", docs[0], docs[209])
	}
}

func TestPaginate_StartOffsetAdvances(t *testing.T) {
	f := newFakeFetcher(500)
	params := testParams()

	if _, err := testEngine(f, 100).Paginate(context.Background(), params, 250, &bytes.Buffer{}); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	var starts []string
	for _, raw := range f.urls {
		u, _ := url.Parse(raw)
		starts = append(starts, u.Query().Get("start"))
	}
	if want := []string{"0", "100", "200"}; !reflect.DeepEqual(starts, want) {
		t.Errorf("start offsets = %v, want %v", starts, want)
	}

	if params.Get(query.ParamRows) != "100" {
		t.Errorf("rows after crawl = %q, want restored page size", params.Get(query.ParamRows))
	}
	if params.Get(query.ParamStart) != "200" {
		t.Errorf("start after crawl = %q, want 200", params.Get(query.ParamStart))
	}
}

func TestPaginate_ExactMultiple(t *testing.T) {
	f := newFakeFetcher(500)
	var out bytes.Buffer

	result, err := testEngine(f, 10).Paginate(context.Background(), testParams(), 30, &out)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if got, want := f.requestedRows(), []int{10, 10, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("requested rows = %v, want %v", got, want)
	}
	if result.Documents != 30 {
		t.Errorf("Documents = %d, want 30", result.Documents)
	}
}

func TestPaginate_ZeroDocuments(t *testing.T) {
	f := newFakeFetcher(500)
	var out bytes.Buffer

	result, err := testEngine(f, 100).Paginate(context.Background(), testParams(), 0, &out)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(f.urls) != 0 {
		t.Errorf("requests = %d, want 0", len(f.urls))
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing written", out.String())
	}
	if result.Pages != 0 {
		t.Errorf("Pages = %d, want 0", result.Pages)
	}
}

func TestPaginate_ProbesWhenUnspecified(t *testing.T) {
	f := newFakeFetcher(25)
	var out bytes.Buffer

	result, err := testEngine(f, 10).Paginate(context.Background(), testParams(), UnspecifiedCount, &out)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	// One probe plus three pages.
	if len(f.urls) != 4 {
		t.Errorf("requests = %d, want 4", len(f.urls))
	}
	if result.Requested != 25 || result.Documents != 25 {
		t.Errorf("Result = %+v", result)
	}
	if docs := decodeArray(t, out.String()); len(docs) != 25 {
		t.Errorf("documents in output = %d, want 25", len(docs))
	}
}

func TestPaginate_ProbeResolvesToZero(t *testing.T) {
	f := newFakeFetcher(0)
	var out bytes.Buffer

	if _, err := testEngine(f, 100).Paginate(context.Background(), testParams(), UnspecifiedCount, &out); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(f.urls) != 1 {
		t.Errorf("requests = %d, want only the probe", len(f.urls))
	}
	if strings.ContainsAny(out.String(), "[]") {
		t.Errorf("output = %q, want no brackets", out.String())
	}
}

func TestPaginate_ProbeUnknownCount(t *testing.T) {
	f := newFakeFetcher(0)
	f.failOn[0] = errFetchFailed
	var out bytes.Buffer

	_, err := testEngine(f, 100).Paginate(context.Background(), testParams(), UnspecifiedCount, &out)
	if !errors.Is(err, ErrCountUnknown) {
		t.Errorf("Paginate() error = %v, want ErrCountUnknown", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing written", out.String())
	}
}

func TestPaginate_MalformedPageIsFatal(t *testing.T) {
	f := newFakeFetcher(300)
	f.bodyOn[1] = `{"unexpected":true}`

	_, err := testEngine(f, 100).Paginate(context.Background(), testParams(), 300, &bytes.Buffer{})
	if !errors.Is(err, ErrMalformedPage) {
		t.Errorf("Paginate() error = %v, want ErrMalformedPage", err)
	}
	if len(f.urls) != 2 {
		t.Errorf("requests = %d, want 2 (crawl stops at the bad page)", len(f.urls))
	}
}

func TestPaginate_FetchFailureIsFatal(t *testing.T) {
	f := newFakeFetcher(300)
	f.failOn[2] = errFetchFailed

	result, err := testEngine(f, 100).Paginate(context.Background(), testParams(), 300, &bytes.Buffer{})
	if !errors.Is(err, errFetchFailed) {
		t.Errorf("Paginate() error = %v, want wrapped fetch error", err)
	}
	if result.Pages != 2 {
		t.Errorf("Pages = %d, want 2", result.Pages)
	}
}

func TestPaginate_SinkFailurePropagates(t *testing.T) {
	f := newFakeFetcher(300)

	_, err := testEngine(f, 100).Paginate(context.Background(), testParams(), 300, &failingWriter{limit: 1})
	if !errors.Is(err, errDiskFull) {
		t.Errorf("Paginate() error = %v, want errDiskFull", err)
	}
}

func TestPaginate_CancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &cancellingFetcher{fakeFetcher: newFakeFetcher(300), cancelAfter: 1, cancel: cancel}

	_, err := testEngine(f, 100).Paginate(ctx, testParams(), 300, &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Paginate() error = %v, want context.Canceled", err)
	}
	if len(f.urls) != 1 {
		t.Errorf("requests = %d, want 1", len(f.urls))
	}
}

func TestPaginate_NegativeCount(t *testing.T) {
	_, err := testEngine(newFakeFetcher(0), 100).Paginate(context.Background(), testParams(), -5, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error for negative count")
	}
}

func TestPaginate_ImpossibleCount(t *testing.T) {
	f := newFakeFetcher(0)
	f.numFound = strconv.Itoa(math.MaxInt)
	var out bytes.Buffer

	result, err := testEngine(f, 100).Paginate(context.Background(), testParams(), UnspecifiedCount, &out)
	if err == nil {
		t.Fatalf("Paginate() error = nil, result %+v", result)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing written", out.String())
	}
	if len(f.urls) != 1 {
		t.Errorf("requests = %d, want only the count request", len(f.urls))
	}

	if _, err := testEngine(f, 100).Paginate(context.Background(), testParams(), math.MaxInt-50, &out); err == nil {
		t.Error("expected error for count near the int limit")
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing written", out.String())
	}
}

func TestPaginate_RowsRestoredAfterFailure(t *testing.T) {
	f := newFakeFetcher(250)
	f.bodyOn[2] = `{"unexpected":true}`
	params := testParams()

	_, err := testEngine(f, 100).Paginate(context.Background(), params, 250, &bytes.Buffer{})
	if !errors.Is(err, ErrMalformedPage) {
		t.Fatalf("Paginate() error = %v, want ErrMalformedPage", err)
	}
	if got := f.requestedRows(); !reflect.DeepEqual(got, []int{100, 100, 50}) {
		t.Errorf("requested rows = %v", got)
	}
	if params.Get(query.ParamRows) != "100" {
		t.Errorf("rows after failed crawl = %q, want restored page size", params.Get(query.ParamRows))
	}
}

func TestPaginate_NegativeStartParam(t *testing.T) {
	params := testParams()
	params.Set(query.ParamStart, "-10")

	_, err := testEngine(newFakeFetcher(10), 100).Paginate(context.Background(), params, 10, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error for negative start offset")
	}
}

func TestPaginate_InvalidStartParam(t *testing.T) {
	params := testParams()
	params.Set(query.ParamStart, "abc")

	_, err := testEngine(newFakeFetcher(10), 100).Paginate(context.Background(), params, 10, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error for invalid start parameter")
	}
}

func TestPaginate_FragmentsRoundTrip(t *testing.T) {
	f := newFakeFetcher(95)
	perPage := 0
	var fragments []string
	for start := 0; start < 95; start += 20 {
		body, _ := f.Get(context.Background(), "http://h/search?rows=20&start="+strconv.Itoa(start))
		docs, err := ExtractDocuments(body)
		if err != nil {
			t.Fatalf("ExtractDocuments() error = %v", err)
		}
		perPage += len(docs)
		fragments = append(fragments, strings.Join(docs, documentSeparator))
	}

	docs := decodeArray(t, "["+strings.Join(fragments, documentSeparator)+"]")
	if len(docs) != perPage {
		t.Errorf("round trip count = %d, want %d", len(docs), perPage)
	}
}

func TestPaginate_WithResilientClient(t *testing.T) {
	mock := testutil.NewMockSearchAPI(210)
	defer mock.Close()
	mock.FailNext(500, 503)

	c, err := client.New(client.DefaultConfig())
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	engine := NewEngine(c, Config{BaseURL: mock.URL(), PageSize: 100})
	var out bytes.Buffer

	result, err := engine.Paginate(context.Background(), testParams(), UnspecifiedCount, &out)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	// Two failed attempts, the probe, then three pages.
	reqs := mock.Requests()
	if len(reqs) != 6 {
		t.Fatalf("requests = %d, want 6", len(reqs))
	}
	last := reqs[len(reqs)-1]
	if last.Rows != 10 || last.Start != 200 {
		t.Errorf("last request rows=%d start=%d, want rows=10 start=200", last.Rows, last.Start)
	}
	if last.APIKey != "test-key" {
		t.Errorf("api_key = %q, want test-key", last.APIKey)
	}

	docs := decodeArray(t, out.String())
	if len(docs) != 210 || result.Documents != 210 {
		t.Errorf("documents = %d (result %d), want 210", len(docs), result.Documents)
	}
	if !strings.Contains(out.String(), testutil.Document(42)) {
		t.Error("document text not preserved verbatim")
	}
}

func TestFetchSingle(t *testing.T) {
	f := newFakeFetcher(3)
	params := testParams()
	params.Set(query.ParamRows, "10")
	var out bytes.Buffer

	if err := testEngine(f, 10).FetchSingle(context.Background(), params, &out); err != nil {
		t.Fatalf("FetchSingle() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), `{"response":{"numFound":3`) {
		t.Errorf("output = %q, want raw response", out.String())
	}

	f.failOn[1] = errFetchFailed
	if err := testEngine(f, 10).FetchSingle(context.Background(), params, &out); !errors.Is(err, errFetchFailed) {
		t.Errorf("FetchSingle() error = %v, want errFetchFailed", err)
	}
}

// cancellingFetcher cancels the crawl context after cancelAfter requests.
type cancellingFetcher struct {
	*fakeFetcher
	cancelAfter int
	cancel      context.CancelFunc
}

func (c *cancellingFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	body, err := c.fakeFetcher.Get(ctx, rawURL)
	if len(c.urls) >= c.cancelAfter {
		c.cancel()
	}
	return body, err
}
