package numfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// convertSerial converts an Excel serial (fractional days since the epoch)
// to a UTC time.Time, honoring the legacy day-60 leap-year bug. Grounded on
// the teacher's numfmt.convertSerial; kept UTC-based rather than switching
// to Local, per spec §4.4.
func convertSerial(serial float64, date1904 bool) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 {
		return time.Time{}, fmt.Errorf("invalid serial %v", serial)
	}
	fracSec := int64(math.Round((serial - math.Trunc(serial)) * 86400))
	if fracSec < 0 {
		fracSec = 0
	} else if fracSec > 86399 {
		fracSec = 86399
	}
	if date1904 {
		base := time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
		intPart := int(serial)
		return base.Add(time.Duration(intPart)*24*time.Hour + time.Duration(fracSec)*time.Second), nil
	}
	base := time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	intPart := int(serial)
	var t time.Time
	switch {
	case intPart == 0:
		t = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(fracSec) * time.Second)
	case intPart >= 61:
		t = base.Add(time.Duration(intPart-1)*24*time.Hour + time.Duration(fracSec)*time.Second)
	default:
		t = base.Add(time.Duration(intPart)*24*time.Hour + time.Duration(fracSec)*time.Second)
	}
	return t, nil
}

// renderDatetime renders serial under a [DatetimeBody], per spec §4.4: the
// Pre run, then General (if present), then the Post run, with a single
// shared AM/PM pre-scan converting every hour token in the body to 12-hour.
func renderDatetime(serial float64, db DatetimeBody, date1904 bool) (string, error) {
	t, err := convertSerial(serial, date1904)
	if err != nil {
		return "", formatErrf("render date-time: %v", err)
	}

	hasAmPm := runHasAmPm(db.Pre) || runHasAmPm(db.Post)

	var sb strings.Builder
	if db.Pre != nil {
		renderDatetimeRun(&sb, db.Pre, t, serial, hasAmPm)
	}
	if db.HasGeneral {
		sb.WriteString(renderGeneralValue(serial))
	}
	if db.Post != nil {
		renderDatetimeRun(&sb, db.Post, t, serial, hasAmPm)
	}
	return sb.String(), nil
}

func runHasAmPm(run *DatetimeRun) bool {
	if run == nil {
		return false
	}
	for _, c := range run.Components {
		if c.Kind == CompAmPm {
			return true
		}
	}
	return false
}

func renderDatetimeRun(sb *strings.Builder, run *DatetimeRun, t time.Time, serial float64, hasAmPm bool) {
	for _, c := range run.Components {
		switch c.Kind {
		case CompToken:
			sb.WriteString(renderDateTimeToken(c.Token, t, serial, hasAmPm))
		case CompDateSep, CompTimeSep:
			sb.WriteRune(c.Sep)
		case CompAmPm:
			sb.WriteString(renderAmPm(t, c.AmPm))
		case CompLiteral:
			sb.WriteString(c.Literal)
		}
	}
}

func renderAmPm(t time.Time, kind AmPmKind) string {
	pm := t.Hour() >= 12
	if kind == AmPmSimple {
		if pm {
			return "P"
		}
		return "A"
	}
	if pm {
		return "PM"
	}
	return "AM"
}

// renderDateTimeToken renders a single width-qualified date/time token.
// Grounded on the teacher's renderDateToken/renderElapsed.
func renderDateTimeToken(tok DateTimeToken, t time.Time, serial float64, hasAmPm bool) string {
	switch tok.Kind {
	case DTYear:
		if tok.Width >= 4 {
			return fmt.Sprintf("%04d", t.Year())
		}
		return fmt.Sprintf("%02d", t.Year()%100)

	case DTMonth:
		switch tok.Width {
		case 5:
			return t.Month().String()[:1]
		case 4:
			return t.Month().String()
		case 3:
			return t.Month().String()[:3]
		case 2:
			return fmt.Sprintf("%02d", int(t.Month()))
		default:
			return strconv.Itoa(int(t.Month()))
		}

	case DTMinute:
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", t.Minute())
		}
		return strconv.Itoa(t.Minute())

	case DTDay:
		switch tok.Width {
		case 4:
			return t.Weekday().String()
		case 3:
			return t.Weekday().String()[:3]
		case 2:
			return fmt.Sprintf("%02d", t.Day())
		default:
			return strconv.Itoa(t.Day())
		}

	case DTHour:
		h := t.Hour()
		if hasAmPm {
			h = h % 12
			if h == 0 {
				h = 12
			}
		}
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", h)
		}
		return strconv.Itoa(h)

	case DTSecond:
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", t.Second())
		}
		return strconv.Itoa(t.Second())

	case DTSubSecond:
		digits := fmt.Sprintf("%09d", t.Nanosecond())
		if tok.Width <= 0 || tok.Width > len(digits) {
			return digits
		}
		return digits[:tok.Width]

	case DTAbsHour:
		h := int(serial * 24)
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", h)
		}
		return strconv.Itoa(h)

	case DTAbsMinute:
		m := int(serial * 24 * 60)
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", m)
		}
		return strconv.Itoa(m)

	case DTAbsSecond:
		s := int(serial * 24 * 3600)
		if tok.Width >= 2 {
			return fmt.Sprintf("%02d", s)
		}
		return strconv.Itoa(s)

	case DTEraG:
		if t.Year() >= 1 {
			return "A.D."
		}
		return "B.C."

	case DTEraYear:
		return strconv.Itoa(t.Year())

	case DTCalendarB:
		// Non-Gregorian calendar variants (Hijri/Japanese era counting) are
		// recognized by the parser but not modeled by the renderer.
		return ""
	}
	return ""
}
