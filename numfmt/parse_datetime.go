package numfmt

import "strings"

// parseDatetimeBody parses a date-time template into the `(dt1?, general?,
// dt2?)` triple described in spec §3, applying the `m`/`.`/`/` ambiguity
// resolution rules from spec §4.1.
func parseDatetimeBody(s string) (Body, error) {
	left, hasGeneral, right := splitGeneralMarker(s)

	var pre, post *DatetimeRun
	if hasGeneral {
		if strings.TrimSpace(left) != "" {
			c := scanDatetimeComponents([]rune(left))
			resolveMinuteAmbiguity(c)
			if len(c) > 0 {
				pre = &DatetimeRun{Components: c}
			}
		}
		if strings.TrimSpace(right) != "" {
			c := scanDatetimeComponents([]rune(right))
			resolveMinuteAmbiguity(c)
			if len(c) > 0 {
				post = &DatetimeRun{Components: c}
			}
		}
	} else {
		c := scanDatetimeComponents([]rune(s))
		resolveMinuteAmbiguity(c)
		if len(c) > 0 {
			pre = &DatetimeRun{Components: c}
		}
	}

	hasToken := false
	for _, run := range []*DatetimeRun{pre, post} {
		if run == nil {
			continue
		}
		for _, c := range run.Components {
			if c.Kind == CompToken {
				hasToken = true
			}
		}
	}
	if !hasToken {
		return nil, parseErrf(s, 0, "at least one date-time token")
	}

	return DatetimeBody{Pre: pre, HasGeneral: hasGeneral, Post: post}, nil
}

// splitGeneralMarker splits s at a bare, case-insensitive "General" marker
// (used by the rare combined template `(dt1) General (dt2)`).
func splitGeneralMarker(s string) (left string, hasGeneral bool, right string) {
	lower := strings.ToLower(s)
	idx := strings.Index(lower, "general")
	if idx < 0 {
		return s, false, ""
	}
	return s[:idx], true, s[idx+len("general"):]
}

// scanDatetimeComponents tokenizes a date-time template: quoted/escaped/
// fill/spacer literals, elapsed-time bracket tags (`[h]`, `[mm]`, `[ss]`),
// AM/PM markers, sub-second `.0`/`.00`/`.000`, date/time separators, and
// the letter-run tokens y/m/d/h/s/g/e, plus `b1`/`b2`. `m`/`mm` are
// tentatively classified as month; [resolveMinuteAmbiguity] reclassifies
// them afterward.
func scanDatetimeComponents(runes []rune) []DatetimeComponent {
	var comps []DatetimeComponent
	i := 0
	for i < len(runes) {
		if ls, ok := scanLiteral(runes, i); ok {
			switch ls.kind {
			case "quote":
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: ls.str})
			case "escape":
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: string(ls.r)})
			case "fill":
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: strings.Repeat(string(ls.r), 5)})
			case "space":
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: " "})
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
			inner := strings.ToLower(string(runes[i+1 : end]))
			switch inner {
			case "h", "hh":
				comps = append(comps, DatetimeComponent{Kind: CompToken, Token: DateTimeToken{Kind: DTAbsHour, Width: len(inner)}})
			case "m", "mm":
				comps = append(comps, DatetimeComponent{Kind: CompToken, Token: DateTimeToken{Kind: DTAbsMinute, Width: len(inner)}})
			case "s", "ss":
				comps = append(comps, DatetimeComponent{Kind: CompToken, Token: DateTimeToken{Kind: DTAbsSecond, Width: len(inner)}})
			default:
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: string(runes[i : end+1])})
			}
			i = end + 1

		case upperEq(runes, i, "AM/PM"):
			comps = append(comps, DatetimeComponent{Kind: CompAmPm, AmPm: AmPmFull})
			i += 5
		case upperEq(runes, i, "A/P"):
			comps = append(comps, DatetimeComponent{Kind: CompAmPm, AmPm: AmPmSimple})
			i += 3

		case ch == '.' && followedByZeros(runes, i):
			n := countZeros(runes, i+1)
			comps = append(comps, DatetimeComponent{Kind: CompToken, Token: DateTimeToken{Kind: DTSubSecond, Width: n}})
			i += 1 + n

		case ch == '/':
			comps = append(comps, DatetimeComponent{Kind: CompDateSep, Sep: '/'})
			i++
		case ch == ':':
			comps = append(comps, DatetimeComponent{Kind: CompTimeSep, Sep: ':'})
			i++

		case (ch == 'b' || ch == 'B') && i+1 < len(runes) && (runes[i+1] == '1' || runes[i+1] == '2'):
			variant := int(runes[i+1] - '0')
			comps = append(comps, DatetimeComponent{Kind: CompToken, Token: DateTimeToken{Kind: DTCalendarB, Width: variant}})
			i += 2

		case isDatetimeLetter(ch):
			letter := toLowerRune(ch)
			j := i
			for j < len(runes) && toLowerRune(runes[j]) == letter {
				j++
			}
			width := j - i
			if tok, known := classifyLetterToken(letter, width); known {
				comps = append(comps, DatetimeComponent{Kind: CompToken, Token: tok})
			} else {
				comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: string(runes[i:j])})
			}
			i = j

		default:
			comps = append(comps, DatetimeComponent{Kind: CompLiteral, Literal: string(ch)})
			i++
		}
	}
	return comps
}

func isDatetimeLetter(ch rune) bool {
	switch toLowerRune(ch) {
	case 'y', 'm', 'd', 'h', 's', 'g', 'e':
		return true
	}
	return false
}

func toLowerRune(ch rune) rune {
	if ch >= 'A' && ch <= 'Z' {
		return ch + ('a' - 'A')
	}
	return ch
}

func upperEq(runes []rune, i int, target string) bool {
	t := []rune(target)
	if i+len(t) > len(runes) {
		return false
	}
	for k, tr := range t {
		if toLowerRune(runes[i+k]) != toLowerRune(tr) {
			return false
		}
	}
	return true
}

func followedByZeros(runes []rune, i int) bool {
	return i+1 < len(runes) && runes[i+1] == '0'
}

func countZeros(runes []rune, i int) int {
	n := 0
	for n < 3 && i+n < len(runes) && runes[i+n] == '0' {
		n++
	}
	return n
}

// classifyLetterToken maps a lowercased letter and its run width to a
// [DateTimeToken], per spec §4.4's width table. `m` is tentatively Month;
// see [resolveMinuteAmbiguity].
func classifyLetterToken(letter rune, width int) (DateTimeToken, bool) {
	switch letter {
	case 'y':
		if width >= 4 {
			return DateTimeToken{Kind: DTYear, Width: 4}, true
		}
		return DateTimeToken{Kind: DTYear, Width: 2}, true
	case 'm':
		w := width
		if w > 5 {
			w = 5
		}
		return DateTimeToken{Kind: DTMonth, Width: w}, true
	case 'd':
		w := width
		if w > 4 {
			w = 4
		}
		return DateTimeToken{Kind: DTDay, Width: w}, true
	case 'h':
		w := 1
		if width >= 2 {
			w = 2
		}
		return DateTimeToken{Kind: DTHour, Width: w}, true
	case 's':
		w := 1
		if width >= 2 {
			w = 2
		}
		return DateTimeToken{Kind: DTSecond, Width: w}, true
	case 'g':
		w := width
		if w > 3 {
			w = 3
		}
		return DateTimeToken{Kind: DTEraG, Width: w}, true
	case 'e':
		w := 1
		if width >= 2 {
			w = 2
		}
		return DateTimeToken{Kind: DTEraYear, Width: w}, true
	}
	return DateTimeToken{}, false
}

// resolveMinuteAmbiguity reclassifies tentative Month tokens of width 1-2
// as Minute when adjacent (skipping separators/literals) to an Hour or
// elapsed-hour token on the left or a Second or elapsed-second token on the
// right, per spec §4.1/§9.
func resolveMinuteAmbiguity(comps []DatetimeComponent) {
	for i := range comps {
		c := &comps[i]
		if c.Kind != CompToken || c.Token.Kind != DTMonth || c.Token.Width > 2 {
			continue
		}
		if leftIsHour(comps, i) || rightIsSecond(comps, i) {
			c.Token.Kind = DTMinute
		}
	}
}

func leftIsHour(comps []DatetimeComponent, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch comps[j].Kind {
		case CompToken:
			return comps[j].Token.Kind == DTHour || comps[j].Token.Kind == DTAbsHour
		case CompDateSep, CompTimeSep, CompLiteral:
			continue
		default:
			return false
		}
	}
	return false
}

func rightIsSecond(comps []DatetimeComponent, i int) bool {
	for j := i + 1; j < len(comps); j++ {
		switch comps[j].Kind {
		case CompToken:
			return comps[j].Token.Kind == DTSecond || comps[j].Token.Kind == DTAbsSecond
		case CompDateSep, CompTimeSep, CompLiteral:
			continue
		default:
			return false
		}
	}
	return false
}
