package numfmt

import (
	"fmt"
	"sync"

	"github.com/TsubasaBE/go-numfmt/styles"
)

// builtinFormats lazily parses styles.BuiltInNumFmt's static format strings
// into cached [NumFormat] values, exactly once. Grounded on the original
// Rust builtin.rs's `BUILTIN_FORMATS: OnceLock<BTreeMap<u8, NumFormat>>`.
//
// styles.BuiltInNumFmt is embedded compile-time data, not user input: per
// spec §6, a format string that fails to parse here is a programmer error
// in the embedded table, not a recoverable runtime condition, so it panics
// rather than silently dropping the id — the same contract as
// regexp.MustCompile or template.Must for known-good static input.
var builtinFormats = sync.OnceValue(func() map[int]NumFormat {
	out := make(map[int]NumFormat, len(styles.BuiltInNumFmt))
	for id, s := range styles.BuiltInNumFmt {
		nf, err := Parse(s)
		if err != nil {
			panic(fmt.Sprintf("numfmt: built-in format %d (%q) failed to parse: %v", id, s, err))
		}
		out[id] = nf
	}
	return out
})

// BuiltinFormat returns the parsed built-in number format for numFmtID
// (0-49 per ECMA-376 §18.8.30's static subset), or ok == false when id has
// no statically representable format string (locale-dependent built-ins,
// or an id outside the built-in range).
func BuiltinFormat(numFmtID int) (NumFormat, bool) {
	nf, ok := builtinFormats()[numFmtID]
	return nf, ok
}
