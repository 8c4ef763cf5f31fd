// Package locale resolves the decoded LCID and currency-symbol portions of
// a number format's `[$symbol-HEX]` tag into golang.org/x/text values.
package locale

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// lcidToBCP47 maps common Windows LCIDs (the low 16 bits of a locale tag's
// hex payload) to BCP-47 language tags. This is a bounded, practical
// subset of the full Windows LCID table, covering the locales that appear
// in real-world workbooks.
var lcidToBCP47 = map[uint16]string{
	0x0401: "ar-SA",
	0x0404: "zh-TW",
	0x0405: "cs-CZ",
	0x0406: "da-DK",
	0x0407: "de-DE",
	0x0408: "el-GR",
	0x0409: "en-US",
	0x040b: "fi-FI",
	0x040c: "fr-FR",
	0x040d: "he-IL",
	0x040e: "hu-HU",
	0x0410: "it-IT",
	0x0411: "ja-JP",
	0x0412: "ko-KR",
	0x0413: "nl-NL",
	0x0414: "nb-NO",
	0x0415: "pl-PL",
	0x0416: "pt-BR",
	0x0419: "ru-RU",
	0x041d: "sv-SE",
	0x041e: "th-TH",
	0x041f: "tr-TR",
	0x0421: "id-ID",
	0x042a: "vi-VN",
	0x0804: "zh-CN",
	0x080a: "es-MX",
	0x0809: "en-GB",
	0x0816: "pt-PT",
	0x0c0a: "es-ES",
	0x0c0c: "fr-CA",
}

// Language resolves a decoded LCID to a language.Tag, falling back to
// language.Und when the LCID is outside the bounded lookup table.
func Language(lcid uint16) language.Tag {
	if tag, ok := lcidToBCP47[lcid]; ok {
		if t, err := language.Parse(tag); err == nil {
			return t
		}
	}
	return language.Und
}

// Currency resolves symbol as an ISO 4217 currency code (e.g. "USD"). It
// reports ok == false for a literal currency glyph (e.g. "$", "€") that
// isn't a recognized ISO code, in which case callers should fall back to
// the raw symbol text.
func Currency(symbol string) (currency.Unit, bool) {
	u, err := currency.ParseISO(symbol)
	if err != nil {
		return currency.Unit{}, false
	}
	return u, true
}
