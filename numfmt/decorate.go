package numfmt

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/TsubasaBE/go-numfmt/internal/locale"
)

// decorateSection applies a section's color/locale/Thai-era decorations to
// an already-rendered body, in that order, per spec §4.7: each decoration
// prepends its own literal bracketed marker ("[Red]", "[THAI]", ...) to the
// output — these are part of the public rendering contract, not a display
// attribute that disappears once there's no rich-text channel to carry it.
// Grounded on the original Rust formatter's apply_section_decorations /
// format_with_color / format_defined_color.
func decorateSection(body string, sec Section) string {
	out := body

	if sec.Color != nil {
		out = "[" + colorMarker(*sec.Color) + "]" + out
	}

	if sec.Locale != nil && sec.Locale.CurrencySymbol != "" {
		out = currencyPrefix(sec.Locale.CurrencySymbol) + out
	}

	for _, p := range sec.Prefixes {
		if p == "t" || strings.EqualFold(p, "THAI") {
			out = "[THAI]" + out
		}
	}

	return out
}

var colorNames = map[DefinedColor]string{
	ColorBlack:   "Black",
	ColorBlue:    "Blue",
	ColorCyan:    "Cyan",
	ColorGreen:   "Green",
	ColorMagenta: "Magenta",
	ColorRed:     "Red",
	ColorWhite:   "White",
	ColorYellow:  "Yellow",
}

// colorMarker renders a PartColor's bracket-tag body (without the
// brackets): "Red" for a named color, "ColorN" for an indexed one.
func colorMarker(c PartColor) string {
	if c.Named {
		return colorNames[c.Color]
	}
	return "Color" + strconv.Itoa(c.Index)
}

// currencyPrefix normalizes symbol through an ISO 4217 lookup when it is a
// recognized currency code, and returns it verbatim otherwise (a literal
// glyph such as "$" or "€").
func currencyPrefix(symbol string) string {
	if unit, ok := locale.Currency(symbol); ok {
		return unit.String()
	}
	return symbol
}

// ResolveLanguage resolves a [LocaleID]'s decoded LCID to a BCP-47
// language.Tag, falling back to language.Und when the tag carries no
// recognizable LCID or none at all.
func ResolveLanguage(id *LocaleID) language.Tag {
	if id == nil || id.LanguageInfo == nil {
		return language.Und
	}
	return locale.Language(id.LanguageInfo.LID)
}
