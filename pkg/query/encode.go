package query

import "strings"

const (
	encodedSpace = "%20"
	encodedOr    = encodedSpace + "OR" + encodedSpace
	encodedAnd   = encodedSpace + "AND" + encodedSpace
)

// Encode turns a semicolon-delimited keyword list into a boolean OR
// expression scoped to fieldTag.
//
// Entries are trimmed and lowercased; empty entries are dropped. Entries
// containing a space become quoted phrase matches. Spaces are encoded as %20.
//
//	Encode("everything", "a;b c") == `everything:a%20OR%20"b%20c"`
//
// When no entry survives the result is fieldTag + ":" (see IsEmptyQuery).
func Encode(fieldTag, rawQuery string) string {
	var terms []string
	for _, keyword := range strings.Split(rawQuery, ";") {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(keyword, " ") {
			keyword = `"` + keyword + `"`
		}
		terms = append(terms, strings.ReplaceAll(keyword, " ", encodedSpace))
	}
	return fieldTag + ":" + strings.Join(terms, encodedOr)
}

// IsEmptyQuery reports whether encoded is the empty expression Encode yields
// for fieldTag when every keyword was blank.
func IsEmptyQuery(fieldTag, encoded string) bool {
	return encoded == fieldTag+":"
}

// OutputFields joins field names for the fl parameter.
func OutputFields(fields []string) string {
	return strings.Join(fields, ",")
}

// AndFields joins field:value terms with AND in insertion order.
func AndFields(terms *Params) string {
	parts := make([]string, 0, terms.Len())
	for _, k := range terms.Keys() {
		parts = append(parts, k+":"+terms.Get(k))
	}
	return strings.Join(parts, encodedAnd)
}
