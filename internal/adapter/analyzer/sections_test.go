package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclink/config"
	"doclink/internal/domain"
)

func sectionParser(t *testing.T) *TagParser {
	t.Helper()
	cfg := config.DefaultConfig()
	sections, err := NewSectionParser(cfg.Grammar.Sections)
	require.NoError(t, err)
	p, err := NewTagParser(cfg.Grammar.Tags, WithSections(sections))
	require.NoError(t, err)
	return p
}

func TestSections_FunctionParamsAndReturn(t *testing.T) {
	p := sectionParser(t)

	el, diag, ok := p.Parse(block(
		"function Docatron.doit",
		"Do some stuff.",
		"Params:",
		"  food (5) {int}: Food to eat",
		"  cheese {function}: a callback",
		"",
		"Returns:",
		"  {int}: How much food got eaten",
	))
	require.True(t, ok)
	assert.Nil(t, diag)

	assert.Equal(t, "function", el.Kind)
	assert.Equal(t, "Docatron.doit", el.QualifiedName)
	assert.Equal(t, "Docatron", el.ParentHint)
	assert.Equal(t, []string{"Do some stuff."}, el.Body)
	assert.Equal(t, []domain.Param{
		{Name: "food", Type: "int", Default: "5", Description: "Food to eat"},
		{Name: "cheese", Type: "function", Description: "a callback"},
	}, el.Params)
	require.NotNil(t, el.Returns)
	assert.Equal(t, domain.Return{Type: "int", Description: "How much food got eaten"}, *el.Returns)
}

func TestSections_NestedCallbackParams(t *testing.T) {
	p := sectionParser(t)

	el, diag, ok := p.Parse(block(
		"class Docatron",
		"This class parses the doc.",
		"    WEIRD INDENT",
		"",
		"Params:",
		"  files {string[]}: The files to parse. If this is a really long description",
		"      then we can continue two indents in and the parser will be very happy",
		"      about this @Docatron.",
		"",
		"  token ('///') {string}: The token to start on.",
		"",
		"  callback {function}: The callback function",
		"    Params:",
		"      data {string}: Some data this is a super",
		"          long description too.",
		"",
		"      callback2 {function}: Another callback",
		"",
		"        Params:",
		"          data2 {string}: More data!",
		"",
		"    Returns:",
		"      {string}: The return value",
	))
	require.True(t, ok)
	require.Nil(t, diag)

	assert.Equal(t, []string{"This class parses the doc.", "    WEIRD INDENT"}, el.Body)
	require.Len(t, el.Params, 3)
	assert.Equal(t, "string[]", el.Params[0].Type)
	assert.Equal(t, "The files to parse. If this is a really long description "+
		"then we can continue two indents in and the parser will be very happy about this @Docatron.",
		el.Params[0].Description)
	assert.Equal(t, "'///'", el.Params[1].Default)
	assert.Nil(t, el.Returns)

	callback := el.Params[2]
	assert.Equal(t, "callback", callback.Name)
	require.Len(t, callback.Params, 2)
	assert.Equal(t, "Some data this is a super long description too.", callback.Params[0].Description)
	require.Len(t, callback.Params[1].Params, 1)
	assert.Equal(t, "data2", callback.Params[1].Params[0].Name)
	require.NotNil(t, callback.Returns)
	assert.Equal(t, "string", callback.Returns.Type)
	assert.Equal(t, "The return value", callback.Returns.Description)
}

func TestSections_OptionalParam(t *testing.T) {
	p := sectionParser(t)

	el, diag, _ := p.Parse(block(
		"@function fetch",
		"Params:",
		"  [limit] (10) {int}: Page size",
		"  [cursor] {string}: Where to resume",
	))
	require.Nil(t, diag)
	assert.Equal(t, []domain.Param{
		{Name: "limit", Type: "int", Default: "10", Optional: true, Description: "Page size"},
		{Name: "cursor", Type: "string", Optional: true, Description: "Where to resume"},
	}, el.Params)
}

func TestSections_MalformedKeepsBody(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"empty params", []string{"function f", "Params:"}},
		{"param without type", []string{"function f", "Params:", "  food: no type"}},
		{"return without type", []string{"function f", "Returns:", "  How much"}},
		{"two returns", []string{"function f", "Returns:", "  {int}: a", "Returns:", "  {int}: b"}},
		{"text after sections", []string{"function f", "  Params:", "    a {int}: x", "trailing prose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sectionParser(t)
			el, diag, ok := p.Parse(block(tt.lines...))
			require.True(t, ok)
			require.NotNil(t, diag)
			assert.Equal(t, domain.UnparsableBlock, diag.Kind)
			assert.Contains(t, diag.Message, "line")
			assert.Equal(t, tt.lines[1:], el.Body)
			assert.Empty(t, el.Params)
			assert.Nil(t, el.Returns)
		})
	}
}

func TestSections_ErrorLineNumber(t *testing.T) {
	p := sectionParser(t)
	// block() starts at line 3, so the bad parameter sits on line 6.
	_, diag, _ := p.Parse(block("function f", "Params:", "  a {int}: fine", "  broken"))
	require.NotNil(t, diag)
	assert.Contains(t, diag.Message, "line 6")
}

func TestSections_NoHeadingLeavesBody(t *testing.T) {
	p := sectionParser(t)
	el, diag, _ := p.Parse(block("class Plain", "Nothing structured.", "  indented: {not a param}"))
	assert.Nil(t, diag)
	assert.Equal(t, []string{"Nothing structured.", "  indented: {not a param}"}, el.Body)
	assert.Nil(t, el.Params)
}

func TestSections_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Grammar.Sections.Enabled = false
	sections, err := NewSectionParser(cfg.Grammar.Sections)
	require.NoError(t, err)
	assert.Nil(t, sections)

	p, err := NewTagParser(cfg.Grammar.Tags, WithSections(sections))
	require.NoError(t, err)
	el, _, _ := p.Parse(block("function f", "Params:", "  a {int}: x"))
	assert.Equal(t, []string{"Params:", "  a {int}: x"}, el.Body)
}

func TestNewSectionParser_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*config.SectionsConfig)
		field string
	}{
		{"bad indent", func(c *config.SectionsConfig) { c.Indent = 0 }, "grammar.sections.indent"},
		{"bad heading", func(c *config.SectionsConfig) { c.Params = "(" }, "grammar.sections.params"},
		{"no params", func(c *config.SectionsConfig) { c.Param = nil }, "grammar.sections.param"},
		{"param without type", func(c *config.SectionsConfig) { c.Param = []string{`^(?P<name>\w+):`} }, "grammar.sections.param[0]"},
		{"return without type", func(c *config.SectionsConfig) { c.Return = `^\{\w+\}:` }, "grammar.sections.return"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig().Grammar.Sections
			tt.edit(&cfg)
			_, err := NewSectionParser(cfg)
			var ce *domain.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
