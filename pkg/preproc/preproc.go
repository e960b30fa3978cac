// Package preproc implements the comment stripper (A3): a small pre-lexing
// pass that removes comments while preserving line numbers for everything
// downstream.
package preproc

import "strings"

// Options configures the stripping pass. The language has no macro
// preprocessor, so there is nothing here yet beyond a placeholder for
// future flags; kept as a struct (rather than a bare function) to match
// the shape callers expect from the rest of the pipeline's stage options.
type Options struct{}

// Strip removes `//` line comments and nestable `/* ... */` block comments
// from source, replacing them with nothing except for embedded newlines,
// which are preserved so that line numbers in the stripped text still match
// the original file.
func Strip(source string, _ *Options) (string, error) {
	var b strings.Builder
	b.Grow(len(source))

	runes := []rune(source)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i = skipBlockComment(runes, i, &b)
		default:
			b.WriteRune(ch)
			i++
		}
	}
	return b.String(), nil
}

// skipBlockComment consumes a `/*`-introduced comment, tracking nesting
// depth so `/* outer /* inner */ still-outer */` closes correctly, and
// writes every newline it passes over to out so line counts survive.
func skipBlockComment(runes []rune, start int, out *strings.Builder) int {
	i := start + 2 // consume "/*"
	depth := 1
	for i < len(runes) && depth > 0 {
		switch {
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			depth++
			i += 2
		case runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/':
			depth--
			i += 2
		default:
			if runes[i] == '\n' {
				out.WriteRune('\n')
			}
			i++
		}
	}
	return i
}
