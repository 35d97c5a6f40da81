package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var timeType = reflect.TypeOf(time.Time{})

// ParseTimestamp accepts the timestamp shapes seen on the wire: native
// time.Time from Firestore, epoch milliseconds from JSON, RFC 3339 strings,
// and the {_seconds,_nanoseconds} object the admin SDK serializes.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil timestamp")
		}
		return *t, nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.UnixMilli(n).UTC(), nil
		}
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", t, err)
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", t, err)
		}
		return parsed, nil
	case map[string]any:
		secs, ok1 := t["_seconds"]
		nanos, ok2 := t["_nanoseconds"]
		if !ok1 {
			secs, ok1 = t["seconds"]
			nanos, ok2 = t["nanoseconds"]
		}
		if !ok1 {
			return time.Time{}, fmt.Errorf("timestamp object without seconds")
		}
		s, err := toInt64(secs)
		if err != nil {
			return time.Time{}, err
		}
		var ns int64
		if ok2 {
			if ns, err = toInt64(nanos); err != nil {
				return time.Time{}, err
			}
		}
		return time.Unix(s, ns).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("unsupported number type %T", v)
}

func timestampHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != timeType {
			return data, nil
		}
		return ParseTimestamp(data)
	}
}

func Millis(t time.Time) int64 { return t.UnixMilli() }
