// Package pagination turns a paginated search API result set into a single
// JSON array of documents.
//
// The engine issues one request per page, strictly in order, rewriting the
// rows and start parameters between requests. Each page's response.docs
// array is spliced into the output without re-encoding, so every document
// keeps its original JSON text.
//
// Example usage:
//
//	engine := pagination.NewEngine(fetcher, pagination.DefaultConfig())
//	result, err := engine.Paginate(ctx, params, pagination.UnspecifiedCount, file)
//
// The engine:
//   - Probes response.numFound when no document count is given
//   - Computes ceil(count / PageSize) pages, shrinking the last one to the leftover
//   - Writes "[" before the first page and "]" after the last
//   - Writes nothing at all when zero pages are needed
//   - Aborts the crawl on the first failed or malformed page
package pagination
