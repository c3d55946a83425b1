package render

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"doclink/config"
	"doclink/internal/adapter/doctree"
	"doclink/internal/adapter/linker"
	"doclink/internal/domain"
)

func element(name, kind, parent string, line int, body ...string) domain.DocElement {
	return domain.DocElement{
		QualifiedName: name,
		Kind:          kind,
		ParentHint:    parent,
		Body:          body,
		Location:      domain.Location{Path: "src.js", StartLine: line, EndLine: line + len(body)},
	}
}

func prepare(t *testing.T, elements ...domain.DocElement) (*doctree.Tree, *linker.SymbolTable) {
	t.Helper()
	table, _ := linker.Build(elements)
	linker.NewResolver('@', false).Resolve(table)
	tree, _ := doctree.Assemble(table)
	return tree, table
}

func defaultRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	cfg := config.DefaultConfig()
	if opts.Code == "" {
		opts.Code = cfg.Grammar.Code
	}
	r, err := NewRenderer(cfg.Templates, cfg.Kinds(), opts)
	require.NoError(t, err)
	return r
}

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func find(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byID(doc *html.Node, id string) *html.Node {
	nodes := find(doc, func(n *html.Node) bool { return attr(n, "id") == id })
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func TestPage_ResolvedReferenceLinksToTarget(t *testing.T) {
	tree, table := prepare(t,
		element("Foo", "class", "", 1),
		element("Bar", "class", "", 4, "@Foo does X."),
	)
	r := defaultRenderer(t, Options{Title: "Docs"})

	out, err := r.Page(tree, table)
	require.NoError(t, err)
	doc := parse(t, out)

	target := byID(doc, "class-foo")
	require.NotNil(t, target)

	bar := byID(doc, "class-bar")
	require.NotNil(t, bar)
	links := find(bar, func(n *html.Node) bool { return n.Data == "a" && attr(n, "href") == "#class-foo" })
	require.Len(t, links, 1)
	assert.Equal(t, "Foo", text(links[0]))
	assert.Contains(t, text(bar), "Foo does X.")
}

func TestPage_UnresolvedReferenceStaysLiteral(t *testing.T) {
	tree, table := prepare(t, element("Bar", "class", "", 4, "@Foo does X."))
	r := defaultRenderer(t, Options{})

	out, err := r.Page(tree, table)
	require.NoError(t, err)
	assert.Contains(t, out, "@Foo does X.")

	bar := byID(parse(t, out), "class-bar")
	require.NotNil(t, bar)
	assert.Empty(t, find(bar, func(n *html.Node) bool { return n.Data == "a" && attr(n, "class") == "ref" }))
}

func TestPage_BodyIsEscapedAndSplitIntoParagraphs(t *testing.T) {
	tree, table := prepare(t, element("A", "class", "", 1, "first <b>line</b>", "still first", "", "second & last"))
	r := defaultRenderer(t, Options{})

	out, err := r.Page(tree, table)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>first &lt;b&gt;line&lt;/b&gt;\nstill first</p>")
	assert.Contains(t, out, "<p>second &amp; last</p>")
}

func TestPage_NestsChildrenAndBuildsTOC(t *testing.T) {
	tree, table := prepare(t,
		element("Docatron", "class", "", 1, "A class."),
		element("Docatron.doit", "function", "Docatron", 5, "Does it."),
		element("src.js:9", domain.OtherKind, "", 9, "Loose prose."),
	)
	r := defaultRenderer(t, Options{Title: "API", Intro: []byte("# Welcome\n\nHello.")})

	out, err := r.Page(tree, table)
	require.NoError(t, err)
	doc := parse(t, out)

	parent := byID(doc, "class-docatron")
	require.NotNil(t, parent)
	child := byID(parent, "function-docatron-doit")
	require.NotNil(t, child, "method rendered inside its class")
	assert.Contains(t, text(child), "doit")

	toc := byID(doc, "toc")
	require.NotNil(t, toc)
	var hrefs []string
	for _, a := range find(toc, func(n *html.Node) bool { return n.Data == "a" }) {
		hrefs = append(hrefs, attr(a, "href"))
	}
	assert.Equal(t, []string{"#class-docatron", "#function-docatron-doit"}, hrefs)

	titles := find(doc, func(n *html.Node) bool { return n.Data == "title" })
	require.Len(t, titles, 1)
	assert.Equal(t, "API", text(titles[0]))

	h1 := find(doc, func(n *html.Node) bool { return n.Data == "h1" })
	require.Len(t, h1, 1)
	assert.Equal(t, "Welcome", text(h1[0]))

	assert.NotNil(t, byID(doc, "other-src-js-9"))
}

func TestFragments_PreOrderOnePerNode(t *testing.T) {
	tree, table := prepare(t,
		element("A", "class", "", 1),
		element("A.b", "method", "A", 2),
		element("C", "class", "", 3),
	)
	r := defaultRenderer(t, Options{})

	var anchors []string
	for f, err := range r.Fragments(tree, table) {
		require.NoError(t, err)
		anchors = append(anchors, f.Anchor)
		assert.Contains(t, string(f.HTML), `id="`+f.Anchor+`"`)
	}
	assert.Equal(t, []string{"class-a", "method-a-b", "class-c"}, anchors)
}

func TestPage_WithoutPageTemplate(t *testing.T) {
	templates := map[string]string{
		"class":          `<section id="{{.Anchor}}">{{.Body}}</section>`,
		domain.OtherKind: `<div>{{.Body}}</div>`,
	}
	r, err := NewRenderer(templates, []string{"class", domain.OtherKind}, Options{})
	require.NoError(t, err)

	tree, table := prepare(t, element("Foo", "class", "", 1), element("Bar", "class", "", 2, "see @Foo"))
	out, err := r.Page(tree, table)
	require.NoError(t, err)
	assert.Equal(t, "<section id=\"class-foo\"></section>\n<section id=\"class-bar\"><p>see <a href=\"#class-foo\">Foo</a></p></section>\n", out)
}

func TestNewRenderer_ConfigErrors(t *testing.T) {
	kinds := []string{"class", domain.OtherKind}
	valid := map[string]string{"class": `{{.Name}}`, domain.OtherKind: `{{.Body}}`}

	tests := []struct {
		name  string
		edit  func(map[string]string)
		field string
	}{
		{"missing kind template", func(m map[string]string) { delete(m, "class") }, "templates"},
		{"undeclared kind", func(m map[string]string) { m["widget"] = "x" }, "templates.widget"},
		{"parse failure", func(m map[string]string) { m["class"] = "{{.Name" }, "templates.class"},
		{"unknown field", func(m map[string]string) { m["class"] = "{{.Nope}}" }, "templates.class"},
		{"bad link", func(m map[string]string) { m[config.TemplateLink] = "{{.Missing}}" }, "templates.link"},
		{"bad param", func(m map[string]string) { m[config.TemplateParam] = "{{.Anchor}}" }, "templates.param"},
		{"bad return", func(m map[string]string) { m[config.TemplateReturn] = "{{.Name}}" }, "templates.return"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := make(map[string]string)
			for k, v := range valid {
				m[k] = v
			}
			tt.edit(m)
			_, err := NewRenderer(m, kinds, Options{})
			require.Error(t, err)
			var ce *domain.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "doit", ShortName("function", "Docatron.doit"))
	assert.Equal(t, "Docatron", ShortName("class", "Docatron"))
	assert.Equal(t, "src/a.js:3", ShortName(domain.OtherKind, "src/a.js:3"))
}

func TestTOC_SkipsOther(t *testing.T) {
	tree, table := prepare(t, element("a.js:1", domain.OtherKind, "", 1, "prose"))
	toc, err := defaultRenderer(t, Options{}).TOC(tree, table)
	require.NoError(t, err)
	assert.Empty(t, toc)
	assert.True(t, slices.Equal(tree.Roots, []int{0}))
}

func TestFragment_Subtree(t *testing.T) {
	tree, table := prepare(t,
		element("A", "class", "", 1),
		element("A.b", "method", "A", 2, "inner"),
		element("C", "class", "", 3),
	)
	f, err := defaultRenderer(t, Options{}).Fragment(tree, table, 0)
	require.NoError(t, err)
	assert.Equal(t, "class-a", f.Anchor)
	assert.Contains(t, string(f.HTML), `id="method-a-b"`)
	assert.NotContains(t, string(f.HTML), `id="class-c"`)
}

func TestPage_ParamsAndReturns(t *testing.T) {
	doit := element("Docatron.doit", "function", "", 5, "Do some stuff.")
	doit.Params = []domain.Param{
		{Name: "food", Type: "int", Default: "5", Description: "Food to eat"},
		{Name: "cheese", Type: "function", Description: "a callback",
			Params: []domain.Param{{Name: "data", Type: "string", Optional: true, Description: "from @Docatron"}}},
	}
	doit.Returns = &domain.Return{Type: "int", Description: "How much food got eaten"}

	tree, table := prepare(t, element("Docatron", "class", "", 1), doit)
	out, err := defaultRenderer(t, Options{}).Page(tree, table)
	require.NoError(t, err)

	item := byID(parse(t, out), "function-docatron-doit")
	require.NotNil(t, item)

	var headings []string
	for _, h := range find(item, func(n *html.Node) bool { return n.Data == "h4" }) {
		headings = append(headings, text(h))
	}
	assert.Equal(t, []string{"int food: 5", "function cheese", "optional string data"}, headings)

	returns := find(item, func(n *html.Node) bool { return attr(n, "class") == "return-heading" })
	require.Len(t, returns, 1)
	assert.Equal(t, "Returns: int", text(returns[0]))
	assert.Contains(t, text(item), "How much food got eaten")

	links := find(item, func(n *html.Node) bool { return n.Data == "a" && attr(n, "href") == "#class-docatron" })
	assert.Len(t, links, 1, "references in parameter descriptions are linked")
}

func TestPage_MembersGroupedByKind(t *testing.T) {
	tree, table := prepare(t,
		element("Docatron", "class", "", 1),
		element("Docatron.name", "property", "Docatron", 3),
		element("Docatron.doit", "function", "Docatron", 5),
		element("Docatron.run", "function", "Docatron", 7),
	)
	out, err := defaultRenderer(t, Options{}).Page(tree, table)
	require.NoError(t, err)

	class := byID(parse(t, out), "class-docatron")
	require.NotNil(t, class)
	var sections []string
	for _, h := range find(class, func(n *html.Node) bool { return attr(n, "class") == "prop-heading" }) {
		sections = append(sections, text(h))
	}
	assert.Equal(t, []string{"Properties:", "Functions:"}, sections)
	assert.Len(t, find(class, func(n *html.Node) bool { return n.Data == "li" }), 3)
}

func TestPage_InlineCode(t *testing.T) {
	tree, table := prepare(t, element("A", "function", "", 1, "returns the sum of |a| and |b<c|, not | a |"))
	out, err := defaultRenderer(t, Options{}).Page(tree, table)
	require.NoError(t, err)
	assert.Contains(t, out, "returns the sum of <code>a</code> and <code>b&lt;c</code>, not | a |")

	r, err := NewRenderer(config.DefaultConfig().Templates, config.DefaultConfig().Kinds(), Options{})
	require.NoError(t, err)
	out, err = r.Page(tree, table)
	require.NoError(t, err)
	assert.NotContains(t, out, "<code>", "an empty pattern turns inline code off")
}

func TestNewRenderer_CodePatternErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, pattern := range []string{"(", `\|\w+\|`} {
		_, err := NewRenderer(cfg.Templates, cfg.Kinds(), Options{Code: pattern})
		var ce *domain.ConfigError
		require.ErrorAs(t, err, &ce, pattern)
		assert.Equal(t, "grammar.code", ce.Field)
	}
}

func TestGroupTitle(t *testing.T) {
	assert.Equal(t, "Functions", GroupTitle("function"))
	assert.Equal(t, "Properties", GroupTitle("property"))
	assert.Equal(t, "Classes", GroupTitle("class"))
	assert.Equal(t, "Keys", GroupTitle("key"))
	assert.Equal(t, "", GroupTitle(""))
}
