package numfmt

import "strings"

// parseNumberBody parses a plain-number template per spec §3's "Number
// body" production: digit tokens, embedded literals, an optional percent
// flag, and an optional scientific-notation exponent part.
func parseNumberBody(s string) (NumberBody, error) {
	runes := []rune(s)
	var nb NumberBody
	i := 0

	for i < len(runes) {
		if ls, ok := scanLiteral(runes, i); ok {
			switch ls.kind {
			case "quote":
				nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumLiteral, Str: ls.str})
			case "escape":
				nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumEscaped, Rune: ls.r})
			case "fill":
				nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumFill, Rune: ls.r})
			case "space":
				nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumSpaceWidth, Rune: ls.r})
			}
			i += ls.n
			continue
		}

		ch := runes[i]
		switch {
		case ch == '[':
			end := indexRune(runes, i+1, ']')
			if end < 0 {
				end = len(runes) - 1
			}
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumLiteral, Str: string(runes[i : end+1])})
			i = end + 1

		case ch == '0':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumZero})
			i++
		case ch == '#':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumLazy})
			i++
		case ch == '?':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumSpace})
			i++
		case ch == '.':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumDecimalPoint})
			i++
		case ch == ',':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumThousandsSep})
			i++
		case ch == '%':
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumPercent})
			nb.HasPercent = true
			i++

		case (ch == 'e' || ch == 'E') && i+1 < len(runes) && (runes[i+1] == '+' || runes[i+1] == '-'):
			plus := runes[i+1] == '+'
			i += 2
			var expToks []NumberToken
		expLoop:
			for i < len(runes) {
				switch runes[i] {
				case '0':
					expToks = append(expToks, NumberToken{Kind: NumZero})
					i++
				case '#':
					expToks = append(expToks, NumberToken{Kind: NumLazy})
					i++
				default:
					break expLoop
				}
			}
			nb.Exp = &ExponentPart{Plus: plus, Tokens: expToks}

		default:
			nb.Tokens = append(nb.Tokens, NumberToken{Kind: NumLiteral, Str: string(ch)})
			i++
		}
	}

	// Trailing `,` tokens (with no digit placeholder after them) scale the
	// value by 1000 per comma rather than rendering as grouping separators.
	lastDigit := -1
	for idx, t := range nb.Tokens {
		if t.Kind == NumZero || t.Kind == NumLazy || t.Kind == NumSpace {
			lastDigit = idx
		}
	}
	scale := 0
	var kept []NumberToken
	for idx, t := range nb.Tokens {
		if idx > lastDigit && t.Kind == NumThousandsSep {
			scale++
			continue
		}
		kept = append(kept, t)
	}
	nb.Tokens = kept
	nb.TrailingScale = scale

	hasDigit := false
	percentAtBothEnds := false
	for idx, t := range nb.Tokens {
		if t.Kind == NumZero || t.Kind == NumLazy || t.Kind == NumSpace {
			hasDigit = true
		}
		if t.Kind == NumPercent && idx == 0 {
			percentAtBothEnds = len(nb.Tokens) > 0 && nb.Tokens[len(nb.Tokens)-1].Kind == NumPercent
		}
	}
	if !hasDigit && nb.Exp == nil {
		return NumberBody{}, parseErrf(s, 0, "at least one digit placeholder")
	}
	if percentAtBothEnds {
		return NumberBody{}, parseErrf(s, 0, "percent token at both ends")
	}
	return nb, nil
}

// parseFracTokens scans a numerator/denominator template: digit
// placeholders, literal digits (which fix the denominator), and '%'.
func parseFracTokens(s string) []FracToken {
	var toks []FracToken
	for _, ch := range s {
		switch {
		case ch == '0':
			toks = append(toks, FracToken{Kind: FracZero})
		case ch == '#':
			toks = append(toks, FracToken{Kind: FracLazy})
		case ch == '?':
			toks = append(toks, FracToken{Kind: FracSpace})
		case ch == '%':
			toks = append(toks, FracToken{Kind: FracPercent})
		case ch >= '0' && ch <= '9':
			toks = append(toks, FracToken{Kind: FracDigit, Digit: byte(ch)})
		}
	}
	return toks
}

// tryParseFractionBody implements spec §4.1's fraction grammar: an
// optional integer-part template and separator, a numerator template, `/`,
// and a denominator template, with optional trailing AM/PM. Returns
// ok == false (no error) when s does not have fraction shape, so the
// caller's ordered choice can fall through to the next alternative.
func tryParseFractionBody(s string) (FractionBody, bool, error) {
	runes := []rune(s)
	slashIdx := -1
	inQuote := false
	for i, ch := range runes {
		if ch == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if ch == '/' {
			slashIdx = i
			break
		}
	}
	if slashIdx < 0 {
		return FractionBody{}, false, nil
	}

	left := string(runes[:slashIdx])
	right := string(runes[slashIdx+1:])

	var fb FractionBody
	rightTrim := right
	upper := strings.ToUpper(rightTrim)
	if idx := strings.Index(upper, "AM/PM"); idx >= 0 {
		fb.AmPm = append(fb.AmPm, AmPmFull)
		rightTrim = rightTrim[:idx]
	} else if idx := strings.Index(upper, "A/P"); idx >= 0 {
		fb.AmPm = append(fb.AmPm, AmPmSimple)
		rightTrim = rightTrim[:idx]
	}

	denomToks := parseFracTokens(rightTrim)
	if len(denomToks) == 0 {
		return FractionBody{}, false, nil
	}

	leftTrim := strings.TrimRight(left, " ")
	numeratorSrc := leftTrim
	var intPart []NumberToken
	if sp := strings.LastIndexByte(leftTrim, ' '); sp >= 0 {
		intSrc := leftTrim[:sp]
		numeratorSrc = leftTrim[sp+1:]
		if intSrc != "" {
			if ib, err := parseNumberBody(intSrc); err == nil {
				intPart = ib.Tokens
			}
		}
	}

	numToks := parseFracTokens(numeratorSrc)
	if len(numToks) == 0 {
		return FractionBody{}, false, nil
	}

	fb.IntegerPart = intPart
	fb.Numerator = numToks
	fb.Denominator = denomToks
	return fb, true, nil
}
