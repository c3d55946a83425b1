package analyzer

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"doclink/config"
	"doclink/internal/domain"
)

const (
	groupName   = "name"
	groupParent = "parent"
)

// TagParser classifies comment blocks with an ordered, table-driven list
// of patterns. The first pattern that matches a block decides its kind.
type TagParser struct {
	patterns []tagPattern
	sections *SectionParser
}

// ParserOption configures a TagParser.
type ParserOption func(*TagParser)

// WithSections lifts Params:/Returns: sections out of tagged elements.
// A nil parser leaves bodies as they are.
func WithSections(s *SectionParser) ParserOption {
	return func(p *TagParser) {
		p.sections = s
	}
}

type tagPattern struct {
	kind      string
	re        *regexp.Regexp
	nameIdx   int
	parentIdx int // -1 when the pattern has no parent group
}

// NewTagParser compiles the configured tags. Any problem is a
// *domain.ConfigError so it is reported once, before parsing starts.
func NewTagParser(tags []config.TagConfig, opts ...ParserOption) (*TagParser, error) {
	p := &TagParser{patterns: make([]tagPattern, 0, len(tags))}
	for _, opt := range opts {
		opt(p)
	}
	for i, tag := range tags {
		field := fmt.Sprintf("grammar.tags[%d] (%s)", i, tag.Kind)
		re, err := regexp.Compile(tag.Pattern)
		if err != nil {
			return nil, &domain.ConfigError{Field: field, Message: "invalid pattern", Err: err}
		}
		nameIdx := re.SubexpIndex(groupName)
		if nameIdx < 0 {
			return nil, domain.NewConfigError(field, "pattern %q has no (?P<%s>...) group", tag.Pattern, groupName)
		}
		p.patterns = append(p.patterns, tagPattern{
			kind:      tag.Kind,
			re:        re,
			nameIdx:   nameIdx,
			parentIdx: re.SubexpIndex(groupParent),
		})
	}
	return p, nil
}

// Parse turns a block into at most one element. Blank blocks produce no
// element; blocks that match no pattern become kind "other" under a name
// derived from their location. Both cases carry an unparsable-block
// warning, as does a tagged block whose sections are malformed.
func (p *TagParser) Parse(block domain.CommentBlock) (domain.DocElement, *domain.Diagnostic, bool) {
	loc := block.Location()

	first := -1
	for i, line := range block.Lines {
		if strings.TrimSpace(line) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		d := domain.Warn(domain.UnparsableBlock, loc, "empty comment block dropped")
		return domain.DocElement{}, &d, false
	}

	head := strings.TrimSpace(block.Lines[first])
	for _, pat := range p.patterns {
		m := pat.re.FindStringSubmatchIndex(head)
		if m == nil || m[2*pat.nameIdx] < 0 {
			continue
		}
		name := head[m[2*pat.nameIdx]:m[2*pat.nameIdx+1]]
		if name == "" {
			continue
		}

		el := domain.DocElement{
			QualifiedName: name,
			Kind:          pat.kind,
			Location:      loc,
		}
		if pat.parentIdx >= 0 && m[2*pat.parentIdx] >= 0 {
			el.ParentHint = head[m[2*pat.parentIdx]:m[2*pat.parentIdx+1]]
		}

		// Text around the tag on the same line opens the body.
		if rest := strings.TrimSpace(strings.TrimSpace(head[:m[0]]) + " " + strings.TrimSpace(head[m[1]:])); rest != "" {
			el.Body = append(el.Body, rest)
		}
		el.Body = append(el.Body, block.Lines[first+1:]...)

		var d *domain.Diagnostic
		if p.sections != nil {
			d = p.sections.Apply(&el)
		}
		return el, d, true
	}

	el := domain.DocElement{
		QualifiedName: SynthesizedName(loc),
		Kind:          domain.OtherKind,
		Body:          append([]string(nil), block.Lines[first:]...),
		Location:      loc,
	}
	d := domain.Warn(domain.UnparsableBlock, loc, "comment block matches no tag pattern, classified as %s", domain.OtherKind)
	return el, &d, true
}

// ParseAll parses every block of a sequence, returning the elements, the
// warnings and the number of blocks seen.
func (p *TagParser) ParseAll(blocks iter.Seq[domain.CommentBlock]) ([]domain.DocElement, []domain.Diagnostic, int) {
	var (
		elements []domain.DocElement
		diags    []domain.Diagnostic
		n        int
	)
	for block := range blocks {
		n++
		el, d, ok := p.Parse(block)
		if d != nil {
			diags = append(diags, *d)
		}
		if ok {
			elements = append(elements, el)
		}
	}
	return elements, diags, n
}

// Kinds returns the configured kinds in priority order.
func (p *TagParser) Kinds() []string {
	kinds := make([]string, len(p.patterns))
	for i, pat := range p.patterns {
		kinds[i] = pat.kind
	}
	return kinds
}

// SynthesizedName is the name given to untagged blocks. It contains a ':'
// so no reference token can ever spell it.
func SynthesizedName(loc domain.Location) string {
	return fmt.Sprintf("%s:%d", loc.Path, loc.StartLine)
}
