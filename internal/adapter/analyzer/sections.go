package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"doclink/config"
	"doclink/internal/domain"
)

const (
	groupType     = "type"
	groupDefault  = "default"
	groupOptional = "optional"
)

// SectionParser lifts Params: and Returns: sections out of an element body
// into structured parameters. Sections nest by indentation: a parameter
// line indented one level deeper than its heading, its description
// continued two levels deeper, and the sections of a callback parameter
// one level below the parameter itself.
type SectionParser struct {
	indent   int
	params   *regexp.Regexp
	returns  *regexp.Regexp
	param    []*regexp.Regexp
	ret      *regexp.Regexp
	retTypes int
}

// NewSectionParser compiles the section grammar. It returns nil when
// sections are disabled.
func NewSectionParser(cfg config.SectionsConfig) (*SectionParser, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Indent < 1 {
		return nil, domain.NewConfigError("grammar.sections.indent", "indent must be at least 1, got %d", cfg.Indent)
	}

	p := &SectionParser{indent: cfg.Indent}
	var err error
	if p.params, err = compileSection("grammar.sections.params", cfg.Params); err != nil {
		return nil, err
	}
	if p.returns, err = compileSection("grammar.sections.returns", cfg.Returns); err != nil {
		return nil, err
	}
	if len(cfg.Param) == 0 {
		return nil, domain.NewConfigError("grammar.sections.param", "at least one parameter pattern is required")
	}
	for i, src := range cfg.Param {
		field := fmt.Sprintf("grammar.sections.param[%d]", i)
		re, err := compileSection(field, src, groupName, groupType)
		if err != nil {
			return nil, err
		}
		p.param = append(p.param, re)
	}
	if p.ret, err = compileSection("grammar.sections.return", cfg.Return, groupType); err != nil {
		return nil, err
	}
	p.retTypes = p.ret.SubexpIndex(groupType)
	return p, nil
}

func compileSection(field, src string, groups ...string) (*regexp.Regexp, error) {
	if src == "" {
		return nil, domain.NewConfigError(field, "pattern must not be empty")
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &domain.ConfigError{Field: field, Message: "invalid pattern", Err: err}
	}
	for _, g := range groups {
		if re.SubexpIndex(g) < 0 {
			return nil, domain.NewConfigError(field, "pattern %q has no (?P<%s>...) group", src, g)
		}
	}
	return re, nil
}

type sectionLine struct {
	indent int // in spaces
	text   string
	line   int // source line
}

type sectionError struct {
	line int
	msg  string
}

func (e *sectionError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.msg)
}

// Apply rewrites el in place when its body contains sections: everything
// from the first heading on becomes Params and Returns and the body keeps
// the prose before it. A malformed section leaves the element untouched
// and is reported as an unparsable-block warning.
func (p *SectionParser) Apply(el *domain.DocElement) *domain.Diagnostic {
	// The body starts on the tag line or the line after it.
	first := el.Location.EndLine - len(el.Body) + 1

	start := -1
	for i, l := range el.Body {
		if p.isHeading(strings.TrimSpace(l)) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var lines []sectionLine
	for i, l := range el.Body[start:] {
		text := strings.TrimSpace(l)
		if text == "" {
			continue
		}
		lines = append(lines, sectionLine{
			indent: len(l) - len(strings.TrimLeft(l, " \t")),
			text:   text,
			line:   first + start + i,
		})
	}

	c := &sectionCursor{p: p, lines: lines}
	var (
		params  []domain.Param
		returns *domain.Return
	)
	err := c.sections(lines[0].indent, &params, &returns)
	if err == nil && c.more() {
		err = c.errorf(c.peek(), "text %q after the sections", c.peek().text)
	}
	if err != nil {
		d := domain.Warn(domain.UnparsableBlock, el.Location,
			"malformed section in %s, kept as text: %v", el.QualifiedName, err)
		return &d
	}

	body := el.Body[:start]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	el.Body = body
	el.Params = params
	el.Returns = returns
	return nil
}

func (p *SectionParser) isHeading(text string) bool {
	return p.params.MatchString(text) || p.returns.MatchString(text)
}

type sectionCursor struct {
	p     *SectionParser
	lines []sectionLine
	pos   int
}

func (c *sectionCursor) more() bool {
	return c.pos < len(c.lines)
}

func (c *sectionCursor) peek() sectionLine {
	return c.lines[c.pos]
}

func (c *sectionCursor) errorf(l sectionLine, format string, args ...any) error {
	return &sectionError{line: l.line, msg: fmt.Sprintf(format, args...)}
}

// sections reads headings at exactly indent ind until the text dedents.
func (c *sectionCursor) sections(ind int, params *[]domain.Param, returns **domain.Return) error {
	for c.more() {
		l := c.peek()
		if l.indent < ind {
			return nil
		}
		if l.indent > ind {
			return c.errorf(l, "unexpected indentation before %q", l.text)
		}

		switch {
		case c.p.params.MatchString(l.text):
			c.pos++
			ps, err := c.paramList(l)
			if err != nil {
				return err
			}
			*params = append(*params, ps...)
		case c.p.returns.MatchString(l.text):
			if *returns != nil {
				return c.errorf(l, "second returns section")
			}
			c.pos++
			r, err := c.returnValue(l)
			if err != nil {
				return err
			}
			*returns = r
		default:
			return c.errorf(l, "expected a params or returns heading, got %q", l.text)
		}
	}
	return nil
}

func (c *sectionCursor) paramList(heading sectionLine) ([]domain.Param, error) {
	if !c.more() || c.peek().indent <= heading.indent {
		return nil, c.errorf(heading, "%q needs at least one parameter", heading.text)
	}

	ind := c.peek().indent
	var out []domain.Param
	for c.more() && c.peek().indent >= ind {
		l := c.peek()
		if l.indent > ind {
			return nil, c.errorf(l, "unexpected indentation before %q", l.text)
		}
		param, rest, ok := c.p.matchParam(l.text)
		if !ok {
			return nil, c.errorf(l, "malformed parameter %q", l.text)
		}
		c.pos++
		param.Description = c.description(ind, rest)

		if c.more() && c.peek().indent > ind {
			if err := c.sections(c.peek().indent, &param.Params, &param.Returns); err != nil {
				return nil, err
			}
		}
		out = append(out, param)
	}
	return out, nil
}

func (c *sectionCursor) returnValue(heading sectionLine) (*domain.Return, error) {
	if !c.more() || c.peek().indent <= heading.indent {
		return nil, c.errorf(heading, "%q needs a return type", heading.text)
	}
	l := c.peek()
	m := c.p.ret.FindStringSubmatchIndex(l.text)
	if m == nil {
		return nil, c.errorf(l, "malformed return %q", l.text)
	}
	c.pos++

	t := c.p.retTypes
	return &domain.Return{
		Type:        l.text[m[2*t]:m[2*t+1]],
		Description: c.description(l.indent, l.text[m[1]:]),
	}, nil
}

// description joins rest with the continuation lines, which sit two
// levels deeper than the line they continue.
func (c *sectionCursor) description(ind int, rest string) string {
	parts := []string{strings.TrimSpace(rest)}
	for c.more() && c.peek().indent >= ind+2*c.p.indent {
		parts = append(parts, c.peek().text)
		c.pos++
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (p *SectionParser) matchParam(text string) (domain.Param, string, bool) {
	for _, re := range p.param {
		m := re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		group := func(name string) string {
			i := re.SubexpIndex(name)
			if i < 0 || m[2*i] < 0 {
				return ""
			}
			return text[m[2*i]:m[2*i+1]]
		}
		param := domain.Param{
			Name:     group(groupName),
			Type:     group(groupType),
			Default:  group(groupDefault),
			Optional: group(groupOptional) != "",
		}
		if param.Name == "" {
			continue
		}
		return param, text[m[1]:], true
	}
	return domain.Param{}, "", false
}
