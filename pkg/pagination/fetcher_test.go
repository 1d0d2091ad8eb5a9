package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// fakeFetcher serves a generated corpus and records requested URLs.
type fakeFetcher struct {
	total    int
	urls     []string
	failOn   map[int]error  // request index -> error
	bodyOn   map[int]string // request index -> body override
	numFound string         // raw numFound override
}

func newFakeFetcher(total int) *fakeFetcher {
	return &fakeFetcher{
		total:  total,
		failOn: map[int]error{},
		bodyOn: map[int]string{},
	}
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (string, error) {
	idx := len(f.urls)
	f.urls = append(f.urls, rawURL)

	if err, ok := f.failOn[idx]; ok {
		return "", err
	}
	if body, ok := f.bodyOn[idx]; ok {
		return body, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	rows, _ := strconv.Atoi(q.Get("rows"))
	start, _ := strconv.Atoi(q.Get("start"))

	var docs []string
	for i := start; i < start+rows && i < f.total; i++ {
		docs = append(docs, fmt.Sprintf(`{"id":"doc-%d"}`, i))
	}

	numFound := strconv.Itoa(f.total)
	if f.numFound != "" {
		numFound = f.numFound
	}
	return fmt.Sprintf(`{"response":{"numFound":%s,"docs":[%s]}}`, numFound, strings.Join(docs, ",")), nil
}

// requestedRows returns the rows parameter of every recorded URL.
func (f *fakeFetcher) requestedRows() []int {
	out := make([]int, 0, len(f.urls))
	for _, raw := range f.urls {
		u, _ := url.Parse(raw)
		rows, _ := strconv.Atoi(u.Query().Get("rows"))
		out = append(out, rows)
	}
	return out
}

var errFetchFailed = errors.New("fetch failed")
