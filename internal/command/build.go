// Package command builds the concrete shell command for one token by
// substituting it into the user's template.
//
// Quoting uses github.com/alessio/shellescape, which follows the same rules
// as Python's shlex.quote: tokens made only of safe characters are left
// alone, everything else is wrapped in single quotes with embedded single
// quotes escaped as '"'"'. The empty token becomes ''.
package command

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Quote returns token escaped so that a POSIX shell parses it as exactly
// one word with the original value.
func Quote(token string) string {
	return shellescape.Quote(token)
}

// Build replaces every occurrence of placeholder in template with token.
// When quote is true the token is shell-quoted first. Substitution is not
// recursive: placeholder text inside the token is inserted literally.
func Build(template, placeholder, token string, quote bool) string {
	if quote {
		token = Quote(token)
	}
	return strings.ReplaceAll(template, placeholder, token)
}

// Builder binds a template and its substitution settings so callers can
// build commands token by token.
type Builder struct {
	Template    string
	Placeholder string
	Quote       bool
}

// Build returns the command for token.
func (b Builder) Build(token string) string {
	return Build(b.Template, b.Placeholder, token, b.Quote)
}
