package pagination

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// JSON paths into a search API response.
const (
	DocsPath     = "response.docs"
	NumFoundPath = "response.numFound"
)

// ErrMalformedPage is returned when a page body is not a response object
// with a docs array.
var ErrMalformedPage = errors.New("malformed page response")

// ExtractDocuments returns the raw JSON text of every document in the
// page's docs array, in order.
func ExtractDocuments(body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPage)
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPage)
	}

	docs := gjson.Get(body, DocsPath)
	if !docs.IsArray() {
		return nil, fmt.Errorf("%w: %s is not an array", ErrMalformedPage, DocsPath)
	}

	var out []string
	docs.ForEach(func(_, doc gjson.Result) bool {
		out = append(out, doc.Raw)
		return true
	})

	return out, nil
}

// IsPage reports whether body is a response page ExtractDocuments accepts.
// It suits client.Config.Cacheable, keeping error pages out of the cache.
func IsPage(body string) bool {
	_, err := ExtractDocuments(body)
	return err == nil
}
