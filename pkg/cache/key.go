package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CredentialParams are query parameters never included in cache keys.
var CredentialParams = []string{"api_key"}

// CacheKey represents a unique identifier for a cached response.
type CacheKey struct {
	// Endpoint is host and path of the request (e.g., "api.plos.org/search")
	Endpoint string

	// QueryParams are the query parameters with credentials removed
	QueryParams url.Values
}

// KeyFromURL derives a CacheKey from a request URL.
func KeyFromURL(rawURL string) (CacheKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return CacheKey{}, fmt.Errorf("parse url: %w", err)
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return CacheKey{}, fmt.Errorf("parse query: %w", err)
	}
	for _, name := range CredentialParams {
		values.Del(name)
	}

	return CacheKey{
		Endpoint:    u.Host + u.Path,
		QueryParams: values,
	}, nil
}

// String generates a deterministic cache key string.
// Format: plos:endpoint:query1=val1:query2=val2
//
// Example:
//
//	plos:api.plos.org/search:q=everything:genomics:rows=100:start=0
func (k CacheKey) String() string {
	parts := []string{"plos"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}

// URL returns the credential-free form of the key as a URL-ish string.
func (k CacheKey) URL() string {
	if len(k.QueryParams) == 0 {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.QueryParams.Encode()
}
