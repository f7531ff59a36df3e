package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/govpipe/errors"
)

// CanonicalDateLayout is the single date format emitted by the transformer
const CanonicalDateLayout = time.RFC3339

// dateLayouts are tried in order. Slash dates are day-first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var externalRefPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// IsPresent reports whether a raw value carries data.
// nil, empty and whitespace-only strings are absent.
func IsPresent(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

// AsString renders a scalar raw value as trimmed text
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(CanonicalDateLayout), true
	case fmt.Stringer:
		return strings.TrimSpace(x.String()), true
	default:
		return "", false
	}
}

// ParseInt coerces a raw value to an integer.
// Whole floats ("3.0", 3.0) are accepted; fractional values are not.
func ParseInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return checkRange(int64(x))
	case int64:
		return checkRange(x)
	case float64:
		return floatToInt(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return checkRange(i)
		}
		f, err := x.Float64()
		if err != nil {
			return 0, errors.Newf("%q is not a number", x.String())
		}
		return floatToInt(f)
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return checkRange(i)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Newf("%q is not a number", s)
		}
		return floatToInt(f)
	default:
		return 0, errors.Newf("unsupported value type %T", v)
	}
}

// checkRange bounds counts to int32 so downstream arithmetic cannot overflow
func checkRange(i int64) (int, error) {
	if i > math.MaxInt32 || i < math.MinInt32 {
		return 0, errors.Newf("%d is out of range", i)
	}
	return int(i), nil
}

func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errors.Newf("%v is not a whole number", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errors.Newf("%v is out of range", f)
	}
	return int(f), nil
}

// ParseDate parses a raw date value into UTC. Values without a zone are
// taken as UTC.
func ParseDate(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), nil
	}
	s, ok := AsString(v)
	if !ok || s == "" {
		return time.Time{}, errors.Newf("unsupported date value %v", v)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf("cannot parse date %q", s)
}

// FormatDate renders a date in the canonical layout
func FormatDate(t time.Time) string {
	return t.UTC().Format(CanonicalDateLayout)
}

// ValidExternalRef reports whether s is an acceptable idempotency key
func ValidExternalRef(s string) bool {
	return externalRefPattern.MatchString(s)
}
