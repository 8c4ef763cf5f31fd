// Package numfmt implements the Office Open XML number-format
// mini-language (ECMA-376 §18.8.31 / MS-OE376 §2.1.739): parsing a format
// string into an AST with [Parse] and rendering a [Value] through it with
// [Format] / [FormatWithParsed].
package numfmt

import (
	"fmt"

	"github.com/TsubasaBE/go-numfmt/styles"
)

// FormatValue renders a raw cell value v using the given number format, the
// single-call convenience entry point grounded on the teacher's original
// FormatValue.
//
//   - numFmtID is the numFmtId from the XF record (0 = General).
//   - fmtStr is the custom format string from the BrtFmt record; pass ""
//     for built-in IDs that have no custom override.
//   - date1904 should match [workbook.Workbook.Date1904].
//
// The dynamic type of v must be one of: nil, string, bool, float64. Any
// other type falls back to [fmt.Sprint]. A string renders through the
// format's text section when it has one and passes through verbatim
// otherwise (or when the format does not parse). A bool renders as the
// literal "TRUE"/"FALSE", matching the teacher's original short-circuit.
func FormatValue(v any, numFmtID int, fmtStr string, date1904 bool) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		out, err := Format(NewString(val), ResolveFormatString(numFmtID, fmtStr), date1904, nil)
		if err != nil {
			return val
		}
		return out
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		effective := ResolveFormatString(numFmtID, fmtStr)
		out, err := Format(NewNumber(val), effective, date1904, nil)
		if err != nil || out == "" {
			return renderGeneralValue(val)
		}
		return out
	default:
		return fmt.Sprint(v)
	}
}

// ResolveFormatString returns the effective format string for a cell's XF
// style: fmtStr when non-empty, the built-in string for numFmtID when
// known, or "General". Grounded on the teacher's original resolveFormat.
func ResolveFormatString(numFmtID int, fmtStr string) string {
	if fmtStr != "" {
		return fmtStr
	}
	if s, ok := styles.BuiltInNumFmt[numFmtID]; ok {
		return s
	}
	return "General"
}

// Format parses format and renders v through it in one call. date1904
// selects the 1904 date system (matching workbook.Workbook.Date1904);
// locale may be nil to use the default '.'/',' separators.
//
// Callers rendering many cells that share a format string should call
// [Parse] once and reuse the result with [FormatWithParsed] instead.
func Format(v Value, format string, date1904 bool, locale *LocaleConfig) (string, error) {
	nf, err := Parse(format)
	if err != nil {
		return "", err
	}
	return FormatWithParsed(v, nf, date1904, locale)
}

// FormatWithParsed renders v through an already-parsed format, per spec
// §4.2's dispatch rules: a string is routed to a text section if one
// exists (returned verbatim otherwise); a number or boolean (coerced to
// 1.0/0.0) is routed by sign and/or condition to a positive/negative/zero/
// conditional-General section, then rendered and decorated.
func FormatWithParsed(v Value, nf NumFormat, date1904 bool, locale *LocaleConfig) (string, error) {
	if v.Kind() == KindString {
		sec, isText := dispatchString(nf, v.str)
		if !isText {
			return v.str, nil
		}
		tb, ok := sec.Body.(TextBody)
		if !ok {
			return v.str, nil
		}
		return decorateSection(renderTextBody(v.str, tb), sec), nil
	}

	val := v.asNumber()

	if cg, ok := nf.(ConditionalGeneral); ok {
		if !evalCondition(val, cg.Section.Condition) {
			return renderGeneralValue(val), nil
		}
		body, err := renderBody(val, cg.Section.Body, false, date1904, locale)
		if err != nil {
			return "", err
		}
		return decorateSection(body, cg.Section), nil
	}

	sec, renderVal, suppressSign := dispatchNumeric(nf, val)
	body, err := renderBody(renderVal, sec.Body, suppressSign, date1904, locale)
	if err != nil {
		return "", err
	}
	return decorateSection(body, sec), nil
}
