package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"iter"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"doclink/config"
	"doclink/internal/adapter/doctree"
	"doclink/internal/adapter/linker"
	"doclink/internal/domain"
)

const (
	defaultLinkTemplate   = `<a href="#{{.Anchor}}">{{.Name}}</a>`
	defaultParamTemplate  = `<li>{{.Type}} {{.Name}}{{.Description}}{{if .Params}}<ul>{{.Params}}</ul>{{end}}{{.Returns}}</li>`
	defaultReturnTemplate = `<span>Returns: {{.Type}}</span>{{.Description}}`
)

// NodeView is the data a kind template is executed with.
type NodeView struct {
	Name      string
	ShortName string
	Kind      string
	Anchor    string
	Parent    string
	Body      template.HTML
	Params    template.HTML // rendered param entries
	Returns   template.HTML
	Children  template.HTML
	Members   []MemberGroup // Children grouped by kind
	Location  string
	Depth     int
}

// MemberGroup is the children of one kind, in tree order.
type MemberGroup struct {
	Kind  string
	Title string // plural heading, e.g. "Functions"
	Items []template.HTML
}

// ParamView is the data the param template is executed with.
type ParamView struct {
	Name        string
	Type        string
	Default     string
	Optional    bool
	Description template.HTML
	Params      template.HTML
	Returns     template.HTML
}

// ReturnView is the data the return template is executed with.
type ReturnView struct {
	Type        string
	Description template.HTML
}

// LinkView is the data the link template is executed with.
type LinkView struct {
	Name   string // target qualified name
	Anchor string
	Text   string // reference token as written, marker included
	Kind   string
}

// TOCView is the data the toc template is executed with, once per entry.
type TOCView struct {
	Name      string
	ShortName string
	Kind      string
	Anchor    string
	Depth     int
	Children  template.HTML
}

// PageView is the data the page template is executed with.
type PageView struct {
	Title   string
	TOC     template.HTML
	Intro   template.HTML
	Content template.HTML
}

// Options are the parts of the output that do not come from templates.
type Options struct {
	Title string
	Intro []byte // markdown
	// Code is the inline code pattern; group 1 becomes <code>.
	Code string
}

// Fragment is the rendered HTML of one node, children included.
type Fragment struct {
	Node   int
	Anchor string
	Kind   string
	HTML   template.HTML
}

// Renderer executes the configured templates over a document tree.
type Renderer struct {
	kinds map[string]*template.Template
	page  *template.Template
	toc   *template.Template
	link  *template.Template
	param *template.Template
	ret   *template.Template
	code  *regexp.Regexp
	title string
	intro template.HTML
}

// NewRenderer compiles the template set for the given kinds. Every kind
// needs a template and every non-reserved template needs a kind; each
// template is also executed once against sample data so that field errors
// surface here and not halfway through a page.
func NewRenderer(templates map[string]string, kinds []string, opts Options) (*Renderer, error) {
	r := &Renderer{
		kinds: make(map[string]*template.Template, len(kinds)),
		title: opts.Title,
	}

	declared := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		declared[k] = true
		src, ok := templates[k]
		if !ok {
			return nil, domain.NewConfigError("templates", "no template for kind %q", k)
		}
		tmpl, err := compile(k, src, sampleNode)
		if err != nil {
			return nil, err
		}
		r.kinds[k] = tmpl
	}

	// Map order would make the reported key vary between runs.
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !declared[k] && !config.IsReservedTemplate(k) {
			return nil, domain.NewConfigError("templates."+k, "template for undeclared kind %q", k)
		}
	}

	var err error
	if src, ok := templates[config.TemplatePage]; ok {
		if r.page, err = compile(config.TemplatePage, src, samplePage); err != nil {
			return nil, err
		}
	}
	if src, ok := templates[config.TemplateTOC]; ok {
		if r.toc, err = compile(config.TemplateTOC, src, sampleTOC); err != nil {
			return nil, err
		}
	}
	linkSrc, ok := templates[config.TemplateLink]
	if !ok {
		linkSrc = defaultLinkTemplate
	}
	if r.link, err = compile(config.TemplateLink, linkSrc, sampleLink); err != nil {
		return nil, err
	}
	paramSrc, ok := templates[config.TemplateParam]
	if !ok {
		paramSrc = defaultParamTemplate
	}
	if r.param, err = compile(config.TemplateParam, paramSrc, sampleParam); err != nil {
		return nil, err
	}
	retSrc, ok := templates[config.TemplateReturn]
	if !ok {
		retSrc = defaultReturnTemplate
	}
	if r.ret, err = compile(config.TemplateReturn, retSrc, sampleReturn); err != nil {
		return nil, err
	}

	if opts.Code != "" {
		if r.code, err = regexp.Compile(opts.Code); err != nil {
			return nil, &domain.ConfigError{Field: "grammar.code", Message: "invalid pattern", Err: err}
		}
		if r.code.NumSubexp() < 1 {
			return nil, domain.NewConfigError("grammar.code", "pattern %q has no capture group", opts.Code)
		}
	}

	if len(opts.Intro) > 0 {
		var buf bytes.Buffer
		if err := goldmark.Convert(opts.Intro, &buf); err != nil {
			return nil, fmt.Errorf("render intro: %w", err)
		}
		r.intro = template.HTML(buf.String())
	}

	return r, nil
}

var (
	sampleNode = NodeView{
		Name: "Sample.member", ShortName: "member", Kind: "sample", Anchor: "sample-sample-member",
		Parent: "Sample", Location: "sample.src:1", Params: "<li></li>", Returns: "<span></span>",
		Members: []MemberGroup{{Kind: "sample", Title: "Samples", Items: []template.HTML{"<div></div>"}}},
	}
	sampleParam  = ParamView{Name: "count", Type: "int", Default: "1", Optional: true, Params: "<li></li>", Returns: "<span></span>"}
	sampleReturn = ReturnView{Type: "int"}
	sampleTOC  = TOCView{Name: "Sample", ShortName: "Sample", Kind: "sample", Anchor: "sample-sample"}
	sampleLink = LinkView{Name: "Sample", Anchor: "sample-sample", Text: "@Sample", Kind: "sample"}
	samplePage = PageView{Title: "Sample"}
)

func compile(key, src string, sample any) (*template.Template, error) {
	field := "templates." + key
	tmpl, err := template.New(key).Parse(src)
	if err != nil {
		return nil, &domain.ConfigError{Field: field, Message: "invalid template", Err: err}
	}
	if err := tmpl.Execute(io.Discard, sample); err != nil {
		return nil, &domain.ConfigError{Field: field, Message: "template fails on sample data", Err: err}
	}
	return tmpl, nil
}

// pass holds the memoized output of one render over one tree.
type pass struct {
	r     *Renderer
	table *linker.SymbolTable
	tree  *doctree.Tree
	html  []template.HTML
	done  []bool
}

func (r *Renderer) newPass(tree *doctree.Tree, table *linker.SymbolTable) *pass {
	return &pass{
		r:     r,
		table: table,
		tree:  tree,
		html:  make([]template.HTML, tree.Len()),
		done:  make([]bool, tree.Len()),
	}
}

// Fragments walks the tree in pre-order and yields one fragment per node.
// A node's fragment already contains its children, so callers composing a
// page only need the roots.
func (r *Renderer) Fragments(tree *doctree.Tree, table *linker.SymbolTable) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		p := r.newPass(tree, table)
		for i := range tree.Walk() {
			out, err := p.node(i)
			el := table.Element(i)
			if !yield(Fragment{Node: i, Anchor: table.Anchor(i), Kind: el.Kind, HTML: out}, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Fragment renders the subtree rooted at node i.
func (r *Renderer) Fragment(tree *doctree.Tree, table *linker.SymbolTable, i int) (Fragment, error) {
	out, err := r.newPass(tree, table).node(i)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Node: i, Anchor: table.Anchor(i), Kind: table.Element(i).Kind, HTML: out}, nil
}

func (p *pass) node(i int) (template.HTML, error) {
	if p.done[i] {
		return p.html[i], nil
	}

	var (
		children strings.Builder
		members  []MemberGroup
		groups   = make(map[string]int)
	)
	for _, c := range p.tree.Nodes[i].Children {
		out, err := p.node(c)
		if err != nil {
			return "", err
		}
		children.WriteString(string(out))
		children.WriteByte('\n')

		kind := p.table.Element(c).Kind
		g, ok := groups[kind]
		if !ok {
			g = len(members)
			groups[kind] = g
			members = append(members, MemberGroup{Kind: kind, Title: GroupTitle(kind)})
		}
		members[g].Items = append(members[g].Items, out)
	}

	el := p.table.Element(i)
	body, err := p.body(el)
	if err != nil {
		return "", err
	}
	params, err := p.params(el, el.Params)
	if err != nil {
		return "", err
	}
	returns, err := p.returns(el, el.Returns)
	if err != nil {
		return "", err
	}

	view := NodeView{
		Name:      el.QualifiedName,
		ShortName: ShortName(el.Kind, el.QualifiedName),
		Kind:      el.Kind,
		Anchor:    p.table.Anchor(i),
		Body:      body,
		Params:    params,
		Returns:   returns,
		Children:  template.HTML(strings.TrimSuffix(children.String(), "\n")),
		Members:   members,
		Location:  el.Location.String(),
		Depth:     p.tree.Nodes[i].Depth,
	}
	if parent := p.tree.Nodes[i].Parent; parent >= 0 {
		view.Parent = p.table.Element(parent).QualifiedName
	}

	tmpl, ok := p.r.kinds[el.Kind]
	if !ok {
		return "", domain.NewConfigError("templates", "no template for kind %q", el.Kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render %s at %s: %w", el.QualifiedName, el.Location, err)
	}

	p.html[i] = template.HTML(buf.String())
	p.done[i] = true
	return p.html[i], nil
}

type line struct {
	html  strings.Builder
	blank bool
}

func (p *pass) body(el *domain.DocElement) (template.HTML, error) {
	return p.spans(el, el.Spans, strings.Join(el.Body, "\n"))
}

func (p *pass) params(el *domain.DocElement, params []domain.Param) (template.HTML, error) {
	var out strings.Builder
	for _, prm := range params {
		desc, err := p.spans(el, prm.Spans, prm.Description)
		if err != nil {
			return "", err
		}
		nested, err := p.params(el, prm.Params)
		if err != nil {
			return "", err
		}
		returns, err := p.returns(el, prm.Returns)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		err = p.r.param.Execute(&buf, ParamView{
			Name:        prm.Name,
			Type:        prm.Type,
			Default:     prm.Default,
			Optional:    prm.Optional,
			Description: desc,
			Params:      nested,
			Returns:     returns,
		})
		if err != nil {
			return "", fmt.Errorf("render param %s of %s: %w", prm.Name, el.QualifiedName, err)
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.Write(buf.Bytes())
	}
	return template.HTML(out.String()), nil
}

func (p *pass) returns(el *domain.DocElement, ret *domain.Return) (template.HTML, error) {
	if ret == nil {
		return "", nil
	}
	desc, err := p.spans(el, ret.Spans, ret.Description)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := p.r.ret.Execute(&buf, ReturnView{Type: ret.Type, Description: desc}); err != nil {
		return "", fmt.Errorf("render return of %s: %w", el.QualifiedName, err)
	}
	return template.HTML(buf.String()), nil
}

// spans renders resolved text. Text is escaped, resolved references go
// through the link template, unresolved ones stay literal. Blank lines
// separate paragraphs. Without spans raw is rendered as plain text.
func (p *pass) spans(el *domain.DocElement, spans []domain.Span, raw string) (template.HTML, error) {
	if spans == nil && raw != "" {
		spans = []domain.Span{{Kind: domain.SpanText, Text: raw, TargetIndex: -1}}
	}

	cur := &line{blank: true}
	lines := []*line{cur}
	for _, s := range spans {
		switch s.Kind {
		case domain.SpanResolved:
			target := p.table.Element(s.TargetIndex)
			var buf bytes.Buffer
			err := p.r.link.Execute(&buf, LinkView{
				Name:   target.QualifiedName,
				Anchor: p.table.Anchor(s.TargetIndex),
				Text:   s.Text,
				Kind:   target.Kind,
			})
			if err != nil {
				return "", fmt.Errorf("render link %s in %s: %w", s.Text, el.QualifiedName, err)
			}
			cur.html.Write(buf.Bytes())
			cur.blank = false
		case domain.SpanUnresolved:
			cur.html.WriteString(template.HTMLEscapeString(s.Text))
			cur.blank = false
		default:
			for k, part := range strings.Split(s.Text, "\n") {
				if k > 0 {
					cur = &line{blank: true}
					lines = append(lines, cur)
				}
				cur.html.WriteString(p.r.inline(part))
				if strings.TrimSpace(part) != "" {
					cur.blank = false
				}
			}
		}
	}

	var (
		out  strings.Builder
		para []string
	)
	flush := func() {
		if len(para) == 0 {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString("<p>")
		out.WriteString(strings.Join(para, "\n"))
		out.WriteString("</p>")
		para = para[:0]
	}
	for _, l := range lines {
		if l.blank {
			flush()
			continue
		}
		para = append(para, l.html.String())
	}
	flush()

	return template.HTML(out.String()), nil
}

// inline escapes one line of text and marks inline code.
func (r *Renderer) inline(s string) string {
	s = template.HTMLEscapeString(s)
	if r.code == nil {
		return s
	}
	return r.code.ReplaceAllString(s, "<code>$1</code>")
}

// Page renders the whole tree: every root fragment, wrapped with the table
// of contents and intro by the page template. Without a page template the
// content is returned on its own.
func (r *Renderer) Page(tree *doctree.Tree, table *linker.SymbolTable) (string, error) {
	p := r.newPass(tree, table)

	var content strings.Builder
	for _, root := range tree.Roots {
		out, err := p.node(root)
		if err != nil {
			return "", err
		}
		content.WriteString(string(out))
		content.WriteByte('\n')
	}

	if r.page == nil {
		return content.String(), nil
	}

	toc, err := r.TOC(tree, table)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = r.page.Execute(&buf, PageView{
		Title:   r.title,
		TOC:     toc,
		Intro:   r.intro,
		Content: template.HTML(content.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

// TOC renders the table of contents. Elements of kind "other" have no
// heading to point at and are left out together with their subtree.
func (r *Renderer) TOC(tree *doctree.Tree, table *linker.SymbolTable) (template.HTML, error) {
	if r.toc == nil {
		return "", nil
	}

	var entry func(i int) (string, error)
	entry = func(i int) (string, error) {
		var children strings.Builder
		for _, c := range tree.Nodes[i].Children {
			if table.Element(c).Kind == domain.OtherKind {
				continue
			}
			out, err := entry(c)
			if err != nil {
				return "", err
			}
			children.WriteString(out)
		}
		el := table.Element(i)
		var buf bytes.Buffer
		err := r.toc.Execute(&buf, TOCView{
			Name:      el.QualifiedName,
			ShortName: ShortName(el.Kind, el.QualifiedName),
			Kind:      el.Kind,
			Anchor:    table.Anchor(i),
			Depth:     tree.Nodes[i].Depth,
			Children:  template.HTML(children.String()),
		})
		if err != nil {
			return "", fmt.Errorf("render toc entry %s: %w", el.QualifiedName, err)
		}
		buf.WriteByte('\n')
		return buf.String(), nil
	}

	var out strings.Builder
	for _, root := range tree.Roots {
		if table.Element(root).Kind == domain.OtherKind {
			continue
		}
		s, err := entry(root)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return template.HTML(out.String()), nil
}

// GroupTitle is the heading for the members of one kind: the kind
// capitalized and pluralized.
func GroupTitle(kind string) string {
	if kind == "" {
		return ""
	}
	var title string
	switch {
	case strings.HasSuffix(kind, "y") && len(kind) > 1 && !strings.ContainsRune("aeiou", rune(kind[len(kind)-2])):
		title = kind[:len(kind)-1] + "ies"
	case strings.HasSuffix(kind, "s"), strings.HasSuffix(kind, "x"),
		strings.HasSuffix(kind, "ch"), strings.HasSuffix(kind, "sh"):
		title = kind + "es"
	default:
		title = kind + "s"
	}
	c, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(c)) + title[size:]
}

// ShortName is the last dotted segment of a qualified name. Synthesized
// names of untagged blocks are paths and are kept whole.
func ShortName(kind, name string) string {
	if kind == domain.OtherKind {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}
