package domain

import "fmt"

// OtherKind is the kind given to comment blocks that match no tag pattern.
const OtherKind = "other"

// SourceUnit is one input text and the path it was read from.
type SourceUnit struct {
	Path string
	Text string
}

type Location struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (l Location) String() string {
	if l.Path == "" {
		return "<unknown>"
	}
	if l.EndLine > l.StartLine {
		return fmt.Sprintf("%s:%d-%d", l.Path, l.StartLine, l.EndLine)
	}
	return fmt.Sprintf("%s:%d", l.Path, l.StartLine)
}

// CommentBlock is a contiguous run of prefixed lines with the prefix stripped.
type CommentBlock struct {
	Path      string
	StartLine int
	EndLine   int
	Lines     []string
}

// RawText returns the block body joined with newlines.
func (b CommentBlock) RawText() string {
	n := 0
	for _, l := range b.Lines {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range b.Lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

func (b CommentBlock) Location() Location {
	return Location{Path: b.Path, StartLine: b.StartLine, EndLine: b.EndLine}
}

// DocElement is a classified comment block.
type DocElement struct {
	QualifiedName string   `json:"qualified_name"`
	Kind          string   `json:"kind"`
	ParentHint    string   `json:"parent_hint,omitempty"`
	Body          []string `json:"body"`
	Location      Location `json:"location"`

	// Params and Returns come from Params:/Returns: sections of the body.
	Params  []Param `json:"params,omitempty"`
	Returns *Return `json:"returns,omitempty"`

	// Spans is filled by the resolver and covers Body joined with "\n".
	Spans []Span `json:"-"`
}

// Param is one entry of a Params: section. A parameter that is itself a
// callback or an object carries its own sections.
type Param struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Default     string  `json:"default,omitempty"`
	Optional    bool    `json:"optional,omitempty"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params,omitempty"`
	Returns     *Return `json:"returns,omitempty"`

	Spans []Span `json:"-"` // covers Description
}

// Return is the single entry of a Returns: section.
type Return struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`

	Spans []Span `json:"-"`
}

// SpanKind distinguishes plain text from reference tokens inside a body.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanResolved
	SpanUnresolved
)

// Span is a piece of an element body. For reference spans Text holds the
// literal marker plus identifier and Target the referenced qualified name.
type Span struct {
	Kind   SpanKind
	Text   string
	Target string
	// Element index of the canonical target; -1 when unresolved.
	TargetIndex int
}

// Symbol is the public view of a symbol table entry.
type Symbol struct {
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Anchor     string     `json:"anchor"`
	Location   Location   `json:"location"`
	Duplicates []Location `json:"duplicates,omitempty"`
}

// Stats summarizes a build.
type Stats struct {
	Units       int `json:"units"`
	CachedUnits int `json:"cached_units"`
	Blocks      int `json:"blocks"`
	Elements    int `json:"elements"`
	References  int `json:"references"`
	Resolved    int `json:"resolved"`
	Roots       int `json:"roots"`
}
