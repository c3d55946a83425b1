package analyzer

import (
	"iter"
	"slices"
	"strings"

	"doclink/internal/domain"
)

// CommentExtractor finds runs of lines that start with a fixed doc-comment
// prefix. It holds no per-unit state and is safe for concurrent use.
type CommentExtractor struct {
	prefix string
}

func NewCommentExtractor(prefix string) *CommentExtractor {
	return &CommentExtractor{prefix: prefix}
}

// Blocks yields the comment blocks of unit in file order. The sequence is
// lazy and can be ranged over any number of times.
func (e *CommentExtractor) Blocks(unit domain.SourceUnit) iter.Seq[domain.CommentBlock] {
	return func(yield func(domain.CommentBlock) bool) {
		var current *domain.CommentBlock

		lineNumber := 0
		for line := range strings.Lines(unit.Text) {
			lineNumber++
			line = strings.TrimRight(line, "\r\n")

			body, ok := e.StripPrefix(line)
			if !ok {
				if current != nil {
					if !yield(*current) {
						return
					}
					current = nil
				}
				continue
			}

			if current == nil {
				current = &domain.CommentBlock{
					Path:      unit.Path,
					StartLine: lineNumber,
				}
			}
			current.EndLine = lineNumber
			current.Lines = append(current.Lines, body)
		}

		if current != nil {
			yield(*current)
		}
	}
}

// Extract collects every block of unit.
func (e *CommentExtractor) Extract(unit domain.SourceUnit) []domain.CommentBlock {
	return slices.Collect(e.Blocks(unit))
}

// StripPrefix reports whether line is a doc-comment line and returns its
// content with the prefix and at most one following space removed.
func (e *CommentExtractor) StripPrefix(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, e.prefix) {
		return "", false
	}
	body := trimmed[len(e.prefix):]
	body = strings.TrimPrefix(body, " ")
	return body, true
}
