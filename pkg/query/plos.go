package query

// PLOS search API endpoint.
const (
	BaseURL        = "http://api.plos.org/search"
	QuerySeparator = "?"
)

// Request parameter names understood by the PLOS search API.
const (
	ParamAPIKey      = "api_key"
	ParamDocType     = "wt"
	ParamFields      = "fl"
	ParamFilterQuery = "fq"
	ParamQuery       = "q"
	ParamRows        = "rows"
	ParamStart       = "start"
)

// Searchable and returnable document fields.
const (
	FieldEverything  = "everything"
	FieldID          = "id"
	FieldAuthor      = "author"
	FieldTitle       = "title"
	FieldAbstract    = "abstract"
	FieldBody        = "body"
	FieldJournal     = "journal"
	FieldPublishDate = "publication_date"
	FieldDocType     = "doc_type"
	FieldScore       = "score"
)

// FilterFullText restricts results to full research articles.
const FilterFullText = FieldDocType + ":full"
