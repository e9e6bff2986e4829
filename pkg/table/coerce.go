package table

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Location is the time zone upstream dates are interpreted in.
var Location = time.FixedZone("CST", 8*60*60)

// Tokens upstream endpoints use for "no value".
var missingTokens = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"---":  {},
	"null": {},
	"None": {},
	"nan":  {},
	"NaN":  {},
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"20060102",
}

// Coerce converts a raw value into the column type. It never fails:
// values that cannot be converted become nil, the missing value.
func Coerce(v any, typ ColumnType) any {
	switch typ {
	case TypeFloat:
		return toFloat(v)
	case TypeInt:
		return toInt(v)
	case TypeDate:
		return toTime(v, true)
	case TypeDateTime:
		return toTime(v, false)
	default:
		return toString(v)
	}
}

func toString(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil
	}
	return strings.TrimSpace(s)
}

// cleanNumeric strips thousands separators and a percent sign.
// It returns "" for missing-value tokens.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := missingTokens[s]; ok {
		return ""
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	return strings.TrimSpace(s)
}

func toFloat(v any) any {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case nil, bool:
		return nil
	case string:
		s := cleanNumeric(x)
		if s == "" {
			return nil
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		f, err = cast.ToFloat64E(v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func toInt(v any) any {
	switch x := v.(type) {
	case nil, bool:
		return nil
	case string:
		s := cleanNumeric(x)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case json.Number:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n
		}
	case uint:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	case float64, float32:
		// handled below
	default:
		if n, err := cast.ToInt64E(v); err == nil {
			return n
		}
	}

	f, ok := toFloat(v).(float64)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if !ok || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	return int64(f)
}

func fromUint(n uint64) any {
	if n > math.MaxInt64 {
		return nil
	}
	return int64(n)
}

func toTime(v any, dateOnly bool) any {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = x.In(Location)
	case string:
		parsed, ok := parseTimeString(x)
		if !ok {
			return nil
		}
		t = parsed
	default:
		ms, ok := toInt(v).(int64)
		if !ok {
			return nil
		}
		t = time.UnixMilli(ms).In(Location)
	}

	if dateOnly {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, Location)
	}
	return t
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if _, ok := missingTokens[s]; ok {
		return time.Time{}, false
	}

	// Epoch milliseconds delivered as text.
	if len(s) >= 12 && isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).In(Location), true
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, Location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
