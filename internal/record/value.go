package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order by Time. Layouts without a zone are parsed
// in the caller's location.
var dateLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// String converts a scalar value to its string form.
// Objects and arrays are not scalars and report ok == false.
func String(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return formatFloat(float64(val)), true
	case float64:
		return formatFloat(val), true
	case json.Number:
		return val.String(), true
	case time.Time:
		return val.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// Number converts numeric values and numeric strings to float64.
// NaN and booleans are not numbers.
func Number(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint64:
		f = float64(val)
	case float32:
		f = float64(val)
	case float64:
		f = val
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Truthy reports the boolean reading of v: booleans as-is, numbers when
// non-zero, strings via strconv.ParseBool and otherwise when non-empty.
// Absent values are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
		return val != ""
	default:
		if n, ok := Number(v); ok {
			return n != 0
		}
		return true
	}
}

// Time parses a date value. Strings are tried against RFC 3339 and the common
// date/datetime layouts; layouts without a zone are read in loc (time.Local if
// nil). Numbers are Unix milliseconds. Unparseable values report ok == false.
func Time(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, l := range dateLayouts {
			var (
				t   time.Time
				err error
			)
			if l.zoned {
				t, err = time.Parse(l.layout, s)
			} else {
				t, err = time.ParseInLocation(l.layout, s, loc)
			}
			if err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		if n, ok := Number(v); ok {
			return time.UnixMilli(int64(n)).In(loc), true
		}
		return time.Time{}, false
	}
}

// Strings returns the string elements of an array value. Non-string elements
// are skipped. A []string is returned as-is.
func Strings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
