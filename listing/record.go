// Package listing compiles the declarative rule/function grammar described
// by a server-type file into a pipeline of steps, and applies that pipeline
// to raw LIST/NLST text to produce typed records. It is grounded on the
// original plugin's listing parser (original_source's parser2.cpp): a
// line-oriented DSL where a handful of primitive token functions advance a
// cursor across one line and optionally assign a named column.
package listing

// Kind classifies one parsed listing entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindLink
)

// Value is one column's parsed content: a rule can populate either (or
// both) the string and numeric form, since e.g. a size column wants both
// the literal text (for redisplay) and the parsed integer (for sorting).
type Value struct {
	Str    string
	Num    int64
	HasNum bool
}

// Item is one fully parsed listing row.
type Item struct {
	Name        string
	LinkTarget  string
	Kind        Kind
	Size        int64
	SizeUnknown bool
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	AssumedYear bool // year-correction candidate: subtract one if it lands in the future
	Columns     map[string]Value
}

// Listing is the outcome of parsing a full directory listing buffer.
type Listing struct {
	Items     []Item
	Truncated bool // a trailing partial row was dropped (listing-incomplete)
}
