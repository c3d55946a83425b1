package linker

import (
	"strconv"
	"strings"

	"doclink/internal/domain"
)

// SymbolTable maps qualified names to the elements declaring them. Entries
// for a name keep insertion order; the first one is canonical. The table
// is read-only once Build returns.
type SymbolTable struct {
	elements []domain.DocElement
	byName   map[string][]int
	names    []string // first-seen order
	anchors  []string // per element index
}

// Build registers every element in order and reports duplicate names. The
// elements slice is shared with the table; callers may still attach spans.
func Build(elements []domain.DocElement) (*SymbolTable, []domain.Diagnostic) {
	t := &SymbolTable{
		elements: elements,
		byName:   make(map[string][]int, len(elements)),
		anchors:  make([]string, len(elements)),
	}

	var diags []domain.Diagnostic
	usedAnchors := make(map[string]bool, len(elements))

	for i := range elements {
		el := &elements[i]
		entries, seen := t.byName[el.QualifiedName]
		if !seen {
			t.names = append(t.names, el.QualifiedName)
		} else {
			first := elements[entries[0]].Location
			d := domain.Warn(domain.DuplicateSymbol, el.Location,
				"duplicate symbol %q, first declared at %s; references resolve to the first declaration",
				el.QualifiedName, first)
			d.Related = []domain.Location{first}
			diags = append(diags, d)
		}
		t.byName[el.QualifiedName] = append(entries, i)

		base := Slug(el.Kind, el.QualifiedName)
		anchor := base
		for n := 2; usedAnchors[anchor]; n++ {
			anchor = base + "-" + strconv.Itoa(n)
		}
		usedAnchors[anchor] = true
		t.anchors[i] = anchor
	}

	return t, diags
}

// Lookup returns the index of the canonical element for name.
func (t *SymbolTable) Lookup(name string) (int, bool) {
	entries, ok := t.byName[name]
	if !ok {
		return -1, false
	}
	return entries[0], true
}

// Entries returns every element index registered under name, canonical first.
func (t *SymbolTable) Entries(name string) []int {
	return t.byName[name]
}

func (t *SymbolTable) Ambiguous(name string) bool {
	return len(t.byName[name]) > 1
}

// Names returns the registered names in first-seen order.
func (t *SymbolTable) Names() []string {
	return t.names
}

func (t *SymbolTable) Len() int {
	return len(t.names)
}

func (t *SymbolTable) Element(i int) *domain.DocElement {
	return &t.elements[i]
}

func (t *SymbolTable) Elements() []domain.DocElement {
	return t.elements
}

// Anchor returns the unique fragment identifier of element i.
func (t *SymbolTable) Anchor(i int) string {
	return t.anchors[i]
}

// Symbols lists the table in first-seen order.
func (t *SymbolTable) Symbols() []domain.Symbol {
	symbols := make([]domain.Symbol, 0, len(t.names))
	for _, name := range t.names {
		entries := t.byName[name]
		canonical := t.elements[entries[0]]
		sym := domain.Symbol{
			Name:     name,
			Kind:     canonical.Kind,
			Anchor:   t.anchors[entries[0]],
			Location: canonical.Location,
		}
		for _, i := range entries[1:] {
			sym.Duplicates = append(sym.Duplicates, t.elements[i].Location)
		}
		symbols = append(symbols, sym)
	}
	return symbols
}

// Slug builds a fragment identifier from kind and name: lower case, with
// every character outside [a-z0-9_-] replaced by '-'.
func Slug(kind, name string) string {
	var sb strings.Builder
	sb.Grow(len(kind) + len(name) + 1)
	write := func(s string) {
		for _, r := range strings.ToLower(s) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
				sb.WriteRune(r)
			default:
				sb.WriteByte('-')
			}
		}
	}
	write(kind)
	sb.WriteByte('-')
	write(name)
	return sb.String()
}
