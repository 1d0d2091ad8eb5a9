// Package query builds PLOS search API request URLs.
//
// A crawl starts from an ordered Params set holding the API key, the output
// format and field list, the filter and boolean query expressions, and the
// row/start pagination keys:
//
//	params := query.NewParams()
//	params.Set(query.ParamAPIKey, apiKey)
//	params.Set(query.ParamDocType, "json")
//	params.Set(query.ParamFields, query.OutputFields([]string{query.FieldTitle, query.FieldAuthor}))
//	params.Set(query.ParamQuery, query.Encode(query.FieldEverything, "machine learning;neuralnets"))
//
//	url := query.BuildURL(query.BaseURL, params)
//
// Values are stored as given. Encode and AndFields already percent-encode
// the spaces they introduce; callers passing other free text must encode it
// themselves.
package query
