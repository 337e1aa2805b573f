package coverage

import (
	"regexp"
	"strings"
)

// CSSRule is one style rule located in raw stylesheet text. Start and
// End are byte offsets into the original text (selector start through
// the closing brace), so they can be intersected with coverage ranges
// sampled against the same text.
type CSSRule struct {
	Selector string
	Start    int64
	End      int64
}

// Grouping at-rules whose bodies contain nested style rules worth
// descending into. Everything else at-rule shaped is skipped whole.
var groupingAtRules = map[string]bool{
	"@media":    true,
	"@supports": true,
	"@layer":    true,
}

var (
	wsRe = regexp.MustCompile(`\s+`)
	// A declaration that leaked into selector position: a property
	// name followed by a colon and whitespace. Pseudo-classes and
	// pseudo-elements (a:hover, p::before) have no space after the
	// colon, so they pass.
	declRe = regexp.MustCompile(`^[a-zA-Z-]+\s*:\s`)
)

// ExtractCSSRules scans raw CSS text and returns every style rule it
// can identify, in document order. This is a heuristic, non-AST
// scanner: it tolerates one level of rule nesting, descends into
// grouping at-rules, and skips the rest. It may miscount rules in
// deeply nested or pathologically minified input; its output feeds
// coverage attribution hints, not exact accounting.
func ExtractCSSRules(text string) []CSSRule {
	var rules []CSSRule
	scanCSSBlock(text, 0, int64(len(text)), &rules)
	return rules
}

// scanCSSBlock walks text[from:to) emitting style rules. Offsets are
// absolute within the original text.
func scanCSSBlock(text string, from, to int64, rules *[]CSSRule) {
	selStart := int64(-1)
	var sel strings.Builder

	i := from
	for i < to {
		c := text[i]
		switch {
		case c == '/' && i+1 < to && text[i+1] == '*':
			i = skipComment(text, i, to)
			continue
		case c == '{':
			selector := normalizeSelector(sel.String())
			bodyEnd := matchingBrace(text, i, to)
			if strings.HasPrefix(selector, "@") {
				name := selector
				if sp := strings.IndexAny(selector, " \t("); sp > 0 {
					name = selector[:sp]
				}
				if groupingAtRules[name] {
					scanCSSBlock(text, i+1, bodyEnd, rules)
				}
			} else if validSelector(selector) && selStart >= 0 {
				end := bodyEnd
				if end < to {
					end++ // include the closing brace
				}
				*rules = append(*rules, CSSRule{Selector: selector, Start: selStart, End: end})
			}
			sel.Reset()
			selStart = -1
			i = bodyEnd + 1
			continue
		case c == ';' || c == '}':
			// at-rule statement (@import ...;) or stray close
			sel.Reset()
			selStart = -1
		default:
			if selStart < 0 && !isCSSSpace(c) {
				selStart = i
			}
			sel.WriteByte(c)
		}
		i++
	}
}

// skipComment advances past a /* ... */ comment, returning the offset
// after the terminator (or to, for an unterminated comment).
func skipComment(text string, i, to int64) int64 {
	i += 2
	for i+1 < to {
		if text[i] == '*' && text[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return to
}

// matchingBrace returns the offset of the brace closing the block
// opened at open. Unbalanced input resolves to to.
func matchingBrace(text string, open, to int64) int64 {
	depth := 0
	for i := open; i < to; i++ {
		switch text[i] {
		case '/':
			if i+1 < to && text[i+1] == '*' {
				i = skipComment(text, i, to) - 1
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return to
}

func normalizeSelector(raw string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(raw, " "))
}

// validSelector applies the filters that keep non-rules out of the
// output: empty selectors, bare braces, at-rules, and declarations
// that slipped into selector position.
func validSelector(sel string) bool {
	if sel == "" || sel == "{" || sel == "}" {
		return false
	}
	if strings.HasPrefix(sel, "@") {
		return false
	}
	if strings.ContainsAny(sel, ";") {
		return false
	}
	if declRe.MatchString(sel) {
		return false
	}
	return true
}

func isCSSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
