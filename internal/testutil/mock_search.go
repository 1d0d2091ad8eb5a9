// Package testutil provides testing utilities for the PLOS harvester.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// PageRequest records the pagination parameters of one received request.
type PageRequest struct {
	Rows   int
	Start  int
	APIKey string
	Query  string
}

// MockSearchAPI is a configurable mock of the PLOS search API. It serves a
// fixed corpus of documents, honouring the rows and start parameters.
type MockSearchAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	documents []string
	statuses  []int
	malformed map[int]string

	requests []PageRequest
}

// NewMockSearchAPI creates a mock API serving total generated documents.
func NewMockSearchAPI(total int) *MockSearchAPI {
	docs := make([]string, total)
	for i := range docs {
		docs[i] = Document(i)
	}
	return NewMockSearchAPIWithDocuments(docs)
}

// NewMockSearchAPIWithDocuments creates a mock API serving docs verbatim.
func NewMockSearchAPIWithDocuments(docs []string) *MockSearchAPI {
	mock := &MockSearchAPI{
		documents: docs,
		malformed: make(map[int]string),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// Document returns the JSON text of generated document i.
func Document(i int) string {
	return fmt.Sprintf(`{"id":"10.1371/journal.pone.%07d","title":["Document %d"],"score":%d.5}`, i, i, i)
}

// URL returns the search endpoint URL.
func (m *MockSearchAPI) URL() string {
	return m.server.URL + "/search"
}

// Close shuts down the mock server.
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// FailNext makes the next len(statuses) requests answer with those status
// codes, in order, before normal service resumes.
func (m *MockSearchAPI) FailNext(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statuses...)
}

// SetMalformed makes requests with the given start offset return body.
func (m *MockSearchAPI) SetMalformed(start int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformed[start] = body
}

// ClearMalformed restores normal pages for the given start offset.
func (m *MockSearchAPI) ClearMalformed(start int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.malformed, start)
}

// Requests returns the requests received so far.
func (m *MockSearchAPI) Requests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PageRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests received so far.
func (m *MockSearchAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockSearchAPI) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := strconv.Atoi(q.Get("rows"))
	if err != nil {
		rows = 10
	}
	start, _ := strconv.Atoi(q.Get("start"))

	m.mu.Lock()
	m.requests = append(m.requests, PageRequest{
		Rows:   rows,
		Start:  start,
		APIKey: q.Get("api_key"),
		Query:  q.Get("q"),
	})
	var status int
	if len(m.statuses) > 0 {
		status = m.statuses[0]
		m.statuses = m.statuses[1:]
	}
	malformed, isMalformed := m.malformed[start]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":"status %d"}`, status)
		return
	}

	if isMalformed {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(malformed))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m.page(start, rows)))
}

func (m *MockSearchAPI) page(start, rows int) string {
	total := len(m.documents)
	from := min(max(start, 0), total)
	to := min(from+max(rows, 0), total)

	return fmt.Sprintf(`{"response":{"numFound":%d,"start":%d,"maxScore":1.0,"docs":[%s]}}`,
		total, start, strings.Join(m.documents[from:to], ","))
}
