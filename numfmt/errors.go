package numfmt

import "fmt"

// ParseError is returned by [Parse] when a format string does not match the
// number-format grammar. Format is the text the failing rule was applied to
// (the whole format string, one section's body, or a condition tag's
// contents) and Offset is a byte offset within that text, not within the
// whole format string. Parsing stops at the first section that fails.
type ParseError struct {
	Offset   int
	Expected string
	Format   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("numfmt: parse %q: offset %d: expected %s", e.Format, e.Offset, e.Expected)
}

// FormatError is returned by the renderers for value/template mismatches
// that can only be detected at format time: a fixed-denominator fraction
// whose numerator exceeds its template's digit budget, an impossible
// serial-date conversion, and
// similar runtime-only failures.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "numfmt: format: " + e.Msg }

// UnsupportedFormatError is reserved for recognized-but-unimplemented
// features, such as some era/calendar combinations the grammar accepts but
// the renderer only stubs.
type UnsupportedFormatError struct {
	Msg string
}

func (e *UnsupportedFormatError) Error() string { return "numfmt: unsupported: " + e.Msg }

func parseErrf(format string, offset int, expected string) error {
	return &ParseError{Offset: offset, Expected: expected, Format: format}
}

func formatErrf(msg string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(msg, args...)}
}
