package etl

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	errMissing     = errors.New("missing")
	errUnparseable = errors.New("unparseable")
)

// Timestamp layouts accepted from batch sources.  Layouts without a zone
// are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// toFloat accepts JSON numbers, Go numeric types and numeric strings.
// NaN and infinities are rejected.
func toFloat(v any) (float64, error) {
	if !present(v) {
		return 0, errMissing
	}
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, errUnparseable
		}
		f = n
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errUnparseable
		}
		f = n
	default:
		return 0, errUnparseable
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errUnparseable
	}
	return f, nil
}

// toInt is toFloat restricted to integral values: 40 and "40.0" pass,
// 40.5 does not.
func toInt(v any) (int64, error) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, errUnparseable
	}
	return int64(f), nil
}

func toString(v any) (string, error) {
	if !present(v) {
		return "", errMissing
	}
	s, ok := v.(string)
	if !ok {
		return "", errUnparseable
	}
	return strings.TrimSpace(s), nil
}

// toBool accepts JSON booleans and the strings true/false, 1/0.
func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, errMissing
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		case "":
			return false, errMissing
		}
	}
	return false, errUnparseable
}

// toTime parses a timestamp string in one of timeLayouts, or a unix
// epoch in seconds.
func toTime(v any) (time.Time, error) {
	if !present(v) {
		return time.Time{}, errMissing
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errUnparseable
	}
	secs, err := toInt(v)
	if err != nil || secs <= 0 {
		return time.Time{}, errUnparseable
	}
	return time.Unix(secs, 0).UTC(), nil
}

// dayOf truncates t to midnight of its UTC day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
