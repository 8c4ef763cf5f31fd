package numfmt

// parseTextBody parses a text template per spec §3/§4.6: `@` placeholder,
// AM/PM, embedded literals, fill, spacer, and bare characters.
func parseTextBody(s string) (Body, error) {
	runes := []rune(s)
	var tb TextBody
	i := 0
	for i < len(runes) {
		if ls, ok := scanLiteral(runes, i); ok {
			switch ls.kind {
			case "quote":
				tb.Elements = append(tb.Elements, TextElement{Kind: TextLiteral, Str: ls.str})
			case "escape":
				tb.Elements = append(tb.Elements, TextElement{Kind: TextEscaped, Rune: ls.r})
			case "fill":
				tb.Elements = append(tb.Elements, TextElement{Kind: TextFill, Rune: ls.r})
			case "space":
				tb.Elements = append(tb.Elements, TextElement{Kind: TextSpaceWidth, Rune: ls.r})
			}
			i += ls.n
			continue
		}

		ch := runes[i]
		switch {
		case ch == '@':
			tb.Elements = append(tb.Elements, TextElement{Kind: TextAt})
			tb.HasAt = true
			i++
		case upperEq(runes, i, "AM/PM"):
			tb.Elements = append(tb.Elements, TextElement{Kind: TextAmPm, AmPm: AmPmFull})
			i += 5
		case upperEq(runes, i, "A/P"):
			tb.Elements = append(tb.Elements, TextElement{Kind: TextAmPm, AmPm: AmPmSimple})
			i += 3
		default:
			tb.Elements = append(tb.Elements, TextElement{Kind: TextBare, Rune: ch})
			i++
		}
	}
	return tb, nil
}
