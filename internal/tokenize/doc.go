// Package tokenize turns raw standard input into the ordered token sequence
// consumed by the executor.
//
// Input is first decoded into text (Decode) using an encoding resolved through
// golang.org/x/text and a malformed-input policy. The text is then split
// (Tokenize) on NUL bytes, on a set of literal delimiters, or on universal line
// boundaries (\n, \r\n and bare \r), in that priority order.
//
// Delimiters are matched with a plain multi-literal scan rather than a regular
// expression, so no pattern escaping is involved.
package tokenize
