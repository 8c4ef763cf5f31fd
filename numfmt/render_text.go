package numfmt

import "strings"

// renderTextBody renders a string value through a [TextBody] template per
// spec §4.6: `@` substitutes value at its position, `*x` fill emits five
// repetitions, `_x` spacer emits one space. A template with no `@` is pure
// literal text and the value is not shown, matching Excel's handling of a
// literal-only text section. Grounded on the original Rust format_text.
func renderTextBody(value string, tb TextBody) string {
	var sb strings.Builder
	for _, el := range tb.Elements {
		switch el.Kind {
		case TextAt:
			sb.WriteString(value)
		case TextAmPm:
			if el.AmPm == AmPmSimple {
				sb.WriteString("A/P")
			} else {
				sb.WriteString("AM/PM")
			}
		case TextLiteral:
			sb.WriteString(el.Str)
		case TextFill:
			sb.WriteString(strings.Repeat(string(el.Rune), 5))
		case TextSpaceWidth:
			sb.WriteByte(' ')
		case TextEscaped, TextBare:
			sb.WriteRune(el.Rune)
		}
	}
	return sb.String()
}
