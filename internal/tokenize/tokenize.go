package tokenize

import (
	"strings"
)

// Options selects the splitting strategy and post-processing of Tokenize.
type Options struct {
	// Delimiters are literal split strings. Empty strings are ignored.
	Delimiters []string

	// UseNull splits on NUL and takes priority over Delimiters.
	UseNull bool

	// KeepEmpty keeps empty pieces in the output.
	KeepEmpty bool

	// Strip trims leading and trailing whitespace from each piece before the
	// emptiness check.
	Strip bool
}

// Tokenize splits text into tokens according to opts.
//
// Strategy, in priority order:
//  1. UseNull: split on "\x00".
//  2. Delimiters: split on any of the literal delimiters.
//  3. Otherwise: split on line boundaries (\n, \r\n, \r).
//
// Every piece is then optionally stripped, and empty pieces are dropped unless
// KeepEmpty is set. A trailing separator produces a trailing empty piece that
// follows the same rule. Empty input yields no tokens.
func Tokenize(text string, opts Options) []string {
	if text == "" {
		return nil
	}

	var parts []string
	switch delims := nonEmpty(opts.Delimiters); {
	case opts.UseNull:
		parts = strings.Split(text, "\x00")
	case len(delims) > 0:
		parts = SplitLiteral(text, delims)
	default:
		parts = SplitLines(text)
	}

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if opts.Strip {
			part = strings.TrimSpace(part)
		}
		if part == "" && !opts.KeepEmpty {
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

// SplitLines splits text on universal line boundaries. "\r\n" counts as one
// boundary, and a bare "\r" is a boundary of its own. The final piece after
// the last boundary is always returned, even when empty.
func SplitLines(text string) []string {
	parts := make([]string, 0, strings.Count(text, "\n")+1)
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			parts = append(parts, text[start:i])
			start = i + 1
		case '\r':
			parts = append(parts, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

// SplitLiteral splits text on every occurrence of any delimiter.
//
// The scan always cuts at the leftmost match. When several delimiters match
// at the same position the one listed first wins, as in a regular expression
// alternation of the literals. Delimiters must be non-empty.
//
// Each delimiter's next match is cached and searched again only once the scan
// has moved past it, so the text is scanned about once per delimiter.
func SplitLiteral(text string, delimiters []string) []string {
	next := make([]int, len(delimiters))
	for i, d := range delimiters {
		next[i] = strings.Index(text, d)
	}

	var parts []string
	start := 0
	for {
		at, size := -1, 0
		for i, d := range delimiters {
			if next[i] >= 0 && next[i] < start {
				if j := strings.Index(text[start:], d); j >= 0 {
					next[i] = start + j
				} else {
					next[i] = -1
				}
			}
			// Strict comparison keeps the earlier delimiter on ties.
			if next[i] >= 0 && (at < 0 || next[i] < at) {
				at, size = next[i], len(d)
			}
		}
		if at < 0 {
			break
		}
		parts = append(parts, text[start:at])
		start = at + size
	}
	return append(parts, text[start:])
}

func nonEmpty(delimiters []string) []string {
	out := make([]string, 0, len(delimiters))
	for _, d := range delimiters {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
