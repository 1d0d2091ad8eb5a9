package query

import "strings"

// BuildURL appends params to base as key=value pairs in insertion order.
// The separator is always present, even when params is empty.
func BuildURL(base string, params *Params) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(QuerySeparator)

	for i, k := range params.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Get(k))
	}

	return b.String()
}
