package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Canonical layouts accepted for string input, tried in order. The first is
// also the canonical output format, so normalizing a canonical string is
// idempotent.
var stringLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04", // locale form DD/MM/YYYY HH:MM
	"02/01/2006",
	"2006-01-02",
}

// NormalizeStrict converts an input of unknown shape into a clinic-local
// timestamp. Accepted shapes: time.Time, a layout string, a 5-element numeric
// array [year, month(1-based), day, hour, minute], a map with year/month/day
// and optional hour/minute, epoch milliseconds, or json.RawMessage holding any
// of those. Unparsable input is rejected; this is the only normalization path
// allowed to feed a write.
func NormalizeStrict(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: empty date", ErrValidation)
	case time.Time:
		if x.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero date", ErrValidation)
		}
		return x.In(time.Local), nil
	case string:
		return parseDateString(x)
	case json.RawMessage:
		return parseRawDate(x)
	case []byte:
		return parseRawDate(x)
	case []any:
		return parseDateArray(x)
	case map[string]any:
		return parseDateObject(x)
	case float64:
		return fromEpochMillis(int64(x)), nil
	case int64:
		return fromEpochMillis(x), nil
	case int:
		return fromEpochMillis(int64(x)), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: numeric date %q", ErrValidation, x.String())
		}
		return fromEpochMillis(n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported date shape %T", ErrValidation, v)
	}
}

// Normalize is the lenient, display-grade variant: unparsable or empty input
// logs a warning and substitutes now instead of failing. Never use it for a
// value that feeds a write.
func Normalize(v any, now time.Time, log zerolog.Logger) time.Time {
	t, err := NormalizeStrict(v)
	if err != nil {
		log.Warn().Err(err).Interface("input", v).Msg("unparsable date, substituting current time")
		return now.In(time.Local)
	}
	return t
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date string", ErrValidation)
	}
	for _, layout := range stringLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.In(time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable date %q", ErrValidation, s)
}

func parseRawDate(raw []byte) (time.Time, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date payload: %v", ErrValidation, err)
	}
	return NormalizeStrict(v)
}

// parseDateArray handles [year, month, day, hour, minute]. Months arrive
// 1-based; time.Month is also 1-based, so no shift is applied here.
func parseDateArray(arr []any) (time.Time, error) {
	if len(arr) < 3 {
		return time.Time{}, fmt.Errorf("%w: date array needs at least [year, month, day]", ErrValidation)
	}
	nums := make([]int, 5)
	for i := 0; i < len(arr) && i < 5; i++ {
		n, ok := toInt(arr[i])
		if !ok {
			return time.Time{}, fmt.Errorf("%w: non-numeric date array element %v", ErrValidation, arr[i])
		}
		nums[i] = n
	}
	return buildDate(nums[0], nums[1], nums[2], nums[3], nums[4])
}

func parseDateObject(obj map[string]any) (time.Time, error) {
	year, okY := intField(obj, "year")
	month, okM := intField(obj, "month")
	day, okD := intField(obj, "day")
	if !okY || !okM || !okD {
		return time.Time{}, fmt.Errorf("%w: date object needs year, month and day", ErrValidation)
	}
	hour, _ := intField(obj, "hour")
	minute, _ := intField(obj, "minute")
	return buildDate(year, month, day, hour, minute)
}

func buildDate(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: date components out of range %04d-%02d-%02d %02d:%02d",
			ErrValidation, year, month, day, hour, minute)
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}

func fromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(time.Local)
}

func intField(obj map[string]any, key string) (int, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

// SameDay reports whether two timestamps fall on the same calendar day,
// comparing date components only.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayBounds returns [midnight, next midnight) for the day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
