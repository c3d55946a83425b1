package linker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"doclink/internal/domain"
)

// CrossReference is one reference token found in an element body. It only
// lives for the duration of a resolve pass.
type CrossReference struct {
	Marker  string // literal token text, marker included
	Name    string // identifier after the marker
	Element int    // containing element
	Target  int    // canonical element index, -1 when unresolved
	start   int
	end     int
}

// Resolver turns reference tokens in element bodies into spans.
type Resolver struct {
	marker    rune
	qualified bool
}

// NewResolver creates a resolver for the given marker. With qualified set a
// token may continue over '.' followed by an identifier character.
func NewResolver(marker rune, qualified bool) *Resolver {
	return &Resolver{marker: marker, qualified: qualified}
}

// ResolveResult counts what a resolve pass saw.
type ResolveResult struct {
	References int
	Resolved   int
}

// Resolve scans every element body, parameter and return description
// against the complete table and attaches spans to them. It must only run
// after Build has seen every element, otherwise forward references cannot
// resolve.
func (r *Resolver) Resolve(t *SymbolTable) (ResolveResult, []domain.Diagnostic) {
	pass := &resolvePass{r: r, t: t}

	elements := t.Elements()
	for i := range elements {
		el := &elements[i]
		el.Spans = pass.text(el, i, strings.Join(el.Body, "\n"))

		// Parameters may be shared with a cached copy of the element.
		el.Params = pass.params(el, i, el.Params)
		if el.Returns != nil {
			el.Returns = pass.returns(el, i, *el.Returns)
		}
	}

	return pass.res, pass.diags
}

type resolvePass struct {
	r     *Resolver
	t     *SymbolTable
	res   ResolveResult
	diags []domain.Diagnostic
}

func (p *resolvePass) params(el *domain.DocElement, i int, params []domain.Param) []domain.Param {
	if len(params) == 0 {
		return params
	}
	out := make([]domain.Param, len(params))
	for k, prm := range params {
		prm.Spans = p.text(el, i, prm.Description)
		prm.Params = p.params(el, i, prm.Params)
		if prm.Returns != nil {
			prm.Returns = p.returns(el, i, *prm.Returns)
		}
		out[k] = prm
	}
	return out
}

func (p *resolvePass) returns(el *domain.DocElement, i int, ret domain.Return) *domain.Return {
	ret.Spans = p.text(el, i, ret.Description)
	return &ret
}

func (p *resolvePass) text(el *domain.DocElement, i int, text string) []domain.Span {
	t := p.t
	refs := p.r.scan(text, i)

	for k := range refs {
		ref := &refs[k]
		p.res.References++
		p.r.bind(t, ref)
		if ref.Target < 0 {
			p.diags = append(p.diags, domain.Warn(domain.UnresolvedReference, el.Location,
				"unresolved reference %q in %s", ref.Marker, el.QualifiedName))
			continue
		}
		p.res.Resolved++
		if t.Ambiguous(ref.Name) {
			d := domain.Warn(domain.AmbiguousReference, el.Location,
				"reference %q in %s is ambiguous, resolved to the first declaration at %s",
				ref.Marker, el.QualifiedName, t.Element(ref.Target).Location)
			for _, e := range t.Entries(ref.Name) {
				d.Related = append(d.Related, t.Element(e).Location)
			}
			p.diags = append(p.diags, d)
		}
	}

	return spans(text, refs)
}

// bind looks the reference up. A qualified token that does not resolve as
// a whole falls back to its longest resolvable leading segments; the rest
// of the token is left as text.
func (r *Resolver) bind(t *SymbolTable, ref *CrossReference) {
	ref.Target = -1
	name := ref.Name
	for {
		if idx, ok := t.Lookup(name); ok {
			ref.Target = idx
			ref.end -= len(ref.Name) - len(name)
			ref.Marker = ref.Marker[:len(ref.Marker)-(len(ref.Name)-len(name))]
			ref.Name = name
			return
		}
		if !r.qualified {
			return
		}
		dot := strings.LastIndexByte(name, '.')
		if dot < 0 {
			return
		}
		name = name[:dot]
	}
}

// scan finds every marker immediately followed by a maximal run of
// identifier characters.
func (r *Resolver) scan(text string, element int) []CrossReference {
	var refs []CrossReference
	markerLen := utf8.RuneLen(r.marker)

	for i := 0; i < len(text); {
		c, size := utf8.DecodeRuneInString(text[i:])
		if c != r.marker {
			i += size
			continue
		}

		end := r.identEnd(text, i+markerLen)
		if end == i+markerLen {
			i += size
			continue
		}
		refs = append(refs, CrossReference{
			Marker:  text[i:end],
			Name:    text[i+markerLen : end],
			Element: element,
			Target:  -1,
			start:   i,
			end:     end,
		})
		i = end
	}
	return refs
}

func (r *Resolver) identEnd(text string, pos int) int {
	end := identRun(text, pos)
	if end == pos || !r.qualified {
		return end
	}
	for end < len(text) && text[end] == '.' {
		next := identRun(text, end+1)
		if next == end+1 {
			break
		}
		end = next
	}
	return end
}

func identRun(text string, pos int) int {
	for pos < len(text) {
		c, size := utf8.DecodeRuneInString(text[pos:])
		if !IsIdentRune(c) {
			break
		}
		pos += size
	}
	return pos
}

// IsIdentRune reports whether c may appear in a reference identifier.
func IsIdentRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func spans(text string, refs []CrossReference) []domain.Span {
	var out []domain.Span
	last := 0
	for _, ref := range refs {
		if ref.start > last {
			out = append(out, domain.Span{Kind: domain.SpanText, Text: text[last:ref.start], TargetIndex: -1})
		}
		if ref.Target >= 0 {
			out = append(out, domain.Span{Kind: domain.SpanResolved, Text: ref.Marker, Target: ref.Name, TargetIndex: ref.Target})
		} else {
			out = append(out, domain.Span{Kind: domain.SpanUnresolved, Text: ref.Marker, Target: ref.Name, TargetIndex: -1})
		}
		last = ref.end
	}
	if last < len(text) {
		out = append(out, domain.Span{Kind: domain.SpanText, Text: text[last:], TargetIndex: -1})
	}
	return out
}
