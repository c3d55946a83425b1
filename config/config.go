package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"doclink/internal/domain"
)

// Reserved template keys. Every other key in Templates names a kind.
const (
	TemplatePage   = "page"
	TemplateTOC    = "toc"
	TemplateLink   = "link"
	TemplateParam  = "param"
	TemplateReturn = "return"
)

// Config holds all configuration for doclink.
type Config struct {
	Grammar   GrammarConfig     `yaml:"grammar"`
	Templates map[string]string `yaml:"templates"`
	Index     IndexConfig       `yaml:"index"`
	Output    OutputConfig      `yaml:"output"`
	Cache     CacheConfig       `yaml:"cache"`
	Serve     ServeConfig       `yaml:"serve"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// GrammarConfig describes how doc comments are recognized and classified.
type GrammarConfig struct {
	Prefix string `yaml:"prefix"`
	Marker string `yaml:"marker"` // single character introducing a cross-reference
	// QualifiedRefs lets a reference token continue across '.' separated segments.
	QualifiedRefs bool        `yaml:"qualified_refs"`
	Tags          []TagConfig `yaml:"tags"` // priority order, first match wins
	// Code marks inline code in bodies; group 1 is wrapped in <code>.
	// Empty disables it.
	Code     string         `yaml:"code"`
	Sections SectionsConfig `yaml:"sections"`
}

// SectionsConfig describes the Params:/Returns: sections of a body.
// Parameter patterns must define "name" and "type" groups and may define
// "default" and "optional"; the return pattern must define "type".
// Whatever follows a match on its line starts the description.
type SectionsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Indent  int      `yaml:"indent"` // spaces per nesting level
	Params  string   `yaml:"params"` // heading of a parameter list
	Returns string   `yaml:"returns"`
	Param   []string `yaml:"param"` // tried in order
	Return  string   `yaml:"return"`
}

// TagConfig maps a regular expression to a kind. The pattern must define a
// "name" capture group and may define a "parent" group.
type TagConfig struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

// IndexConfig holds source discovery configuration.
type IndexConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
}

// OutputConfig holds rendering output configuration.
type OutputConfig struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
	Intro string `yaml:"intro"` // markdown file rendered above the docs
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Grammar: GrammarConfig{
			Prefix: "///",
			Marker: "@",
			Tags:   defaultTags(),
			Code:   `\|([^\s|]+)\|`,
			Sections: SectionsConfig{
				Enabled: true,
				Indent:  2,
				Params:  `(?i)^(params|parameters|props|properties):\s*$`,
				Returns: `(?i)^returns:\s*$`,
				Param: []string{
					`^(?P<optional>\[)(?P<name>[\w-]+)\]\s+(?:\((?P<default>(?:\\.|[^)])+)\)\s+)?\{(?P<type>[^}]+)\}:`,
					`^(?P<name>[\w-]+)\s+(?:\((?P<default>(?:\\.|[^)])+)\)\s+)?\{(?P<type>[^}]+)\}:`,
				},
				Return: `^\{(?P<type>[^}]+)\}:`,
			},
		},
		Templates: defaultTemplates(),
		Index: IndexConfig{
			Includes: []string{"**/*.go", "**/*.js", "**/*.ts", "**/*.java", "**/*.c", "**/*.cpp", "**/*.h", "**/*.rs", "**/*.cs", "**/*.swift"},
			Excludes: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/dist/**", "**/build/**", "**/*.min.js"},
			Workers:  4,
		},
		Output: OutputConfig{
			Path:  filepath.Join("docs", "index.html"),
			Title: "API Reference",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaultTags accepts "@kind Name rest of line" and, without the marker,
// only a bare "kind Name" line so that prose starting with a kind word is
// not taken for a declaration.
func defaultTags() []TagConfig {
	const name = `(?P<name>(?:(?P<parent>[\w.]+)\.)?\w+)`
	kinds := []string{"module", "class", "object", "function", "method", "property", "field", "event"}
	tags := make([]TagConfig, 0, 2*len(kinds))
	for _, k := range kinds {
		tags = append(tags,
			TagConfig{Kind: k, Pattern: `^@` + k + `\s+` + name},
			TagConfig{Kind: k, Pattern: `^` + k + `\s+` + name + `\s*$`},
		)
	}
	return tags
}

const itemTemplate = `<div class="item item-{{.Kind}} depth-{{.Depth}}" id="{{.Anchor}}">
{{if eq .Depth 0}}<h2>{{.Kind}} {{.Name}}</h2>{{else}}<h3>{{.Kind}} {{.ShortName}}<a class="anchor-link" href="#{{.Anchor}}"></a></h3>{{end}}
{{.Body}}
{{if .Params}}<div><span class="param-heading">Params:</span>
<ul>
{{.Params}}
</ul></div>{{end}}
{{.Returns}}
{{if .Members}}<div class="members">
{{range .Members}}<span class="prop-heading">{{.Title}}:</span>
<ul>
{{range .Items}}<li>
{{.}}
</li>
{{end}}</ul>
{{end}}</div>{{end}}
</div>`

func defaultTemplates() map[string]string {
	t := map[string]string{
		TemplatePage: `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" type="text/css" href="css/style.css">
</head>
<body>
<!-- START TOC -->
<div id="toc"><ul>
{{.TOC}}
</ul></div>
<!-- END TOC -->
{{if .Intro}}<div class="intro">
{{.Intro}}
</div>{{end}}
<!-- START DOCS -->
{{.Content}}
<!-- END DOCS -->
</body>
</html>
`,
		TemplateTOC:  `<li><a href="#{{.Anchor}}">{{.Name}}</a>{{if .Children}}<ul>{{.Children}}</ul>{{end}}</li>`,
		TemplateLink: `<a class="ref" href="#{{.Anchor}}">{{.Name}}</a>`,
		TemplateParam: `<li>
<h4>{{if .Optional}}<span class="optional">optional</span> {{end}}{{.Type}} {{.Name}}{{if .Default}}: {{.Default}}{{end}}</h4>
{{.Description}}
{{if .Params}}<div><span class="param-heading">Params:</span>
<ul>
{{.Params}}
</ul></div>{{end}}
{{.Returns}}
</li>`,
		TemplateReturn: `<span class="return-heading">Returns: {{.Type}}</span>
{{.Description}}`,
		domain.OtherKind: `<div class="item item-other" id="{{.Anchor}}">
{{.Body}}
</div>`,
	}
	for _, tag := range defaultTags() {
		t[tag.Kind] = itemTemplate
	}
	return t
}

// Kinds returns the kinds the grammar can produce, in tag order, followed
// by the implicit "other" kind.
func (c *Config) Kinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, t := range c.Grammar.Tags {
		if !seen[t.Kind] {
			seen[t.Kind] = true
			kinds = append(kinds, t.Kind)
		}
	}
	if !seen[domain.OtherKind] {
		kinds = append(kinds, domain.OtherKind)
	}
	return kinds
}

// IsReservedTemplate reports whether key names a structural template rather than a kind.
func IsReservedTemplate(key string) bool {
	switch key {
	case TemplatePage, TemplateTOC, TemplateLink, TemplateParam, TemplateReturn:
		return true
	}
	return false
}

// Validate checks the parts of the grammar that need no compilation.
// Pattern and template checks happen where they are compiled.
func (c *Config) Validate() error {
	if c.Grammar.Prefix == "" {
		return domain.NewConfigError("grammar.prefix", "prefix must not be empty")
	}
	if utf8.RuneCountInString(c.Grammar.Marker) != 1 {
		return domain.NewConfigError("grammar.marker", "marker must be exactly one character, got %q", c.Grammar.Marker)
	}
	for i, t := range c.Grammar.Tags {
		if t.Kind == "" {
			return domain.NewConfigError(fmt.Sprintf("grammar.tags[%d]", i), "kind must not be empty")
		}
		if IsReservedTemplate(t.Kind) {
			return domain.NewConfigError(fmt.Sprintf("grammar.tags[%d]", i), "kind %q is a reserved template name", t.Kind)
		}
	}
	if c.Grammar.Sections.Enabled && c.Grammar.Sections.Indent < 1 {
		return domain.NewConfigError("grammar.sections.indent", "indent must be at least 1, got %d", c.Grammar.Sections.Indent)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// A templates section replaces the defaults instead of merging into
	// them, otherwise default kinds would linger next to a custom grammar.
	var raw struct {
		Templates map[string]string `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Templates != nil {
		cfg.Templates = raw.Templates
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for doclink.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "doclink.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".doclink", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CacheDBPath returns the path to the element cache database.
func CacheDBPath(dir string) string {
	return filepath.Join(dir, ".doclink", "cache.db")
}

// EnsureDoclinkDir ensures the .doclink directory exists.
func EnsureDoclinkDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".doclink"), 0755)
}
