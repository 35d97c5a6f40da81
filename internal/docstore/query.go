package docstore

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"

	"hangoutsync/internal/remote"
)

// Evaluate filters, orders and limits docs the way a remote.Query asks.
// Backends load a collection and hand it here so both agree on semantics.
// Ties on the order field break by document id.
func Evaluate(q remote.Query, docs []remote.Document) []remote.Document {
	out := make([]remote.Document, 0, len(docs))
	for _, d := range docs {
		if Matches(q, d.Data) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if q.Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Matches reports whether data satisfies every equality filter in q.
func Matches(q remote.Query, data map[string]any) bool {
	for _, f := range q.Where {
		if !equal(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// FilterChanges narrows a change batch to q's filters. A modification that
// no longer matches is reported as a removal.
func FilterChanges(q remote.Query, changes []remote.Change) []remote.Change {
	if len(q.Where) == 0 {
		return changes
	}
	out := make([]remote.Change, 0, len(changes))
	for _, c := range changes {
		switch {
		case c.Kind == remote.Removed:
			out = append(out, c)
		case Matches(q, c.Doc.Data):
			out = append(out, c)
		case c.Kind == remote.Modified:
			out = append(out, remote.Change{Kind: remote.Removed, Doc: remote.Document{ID: c.Doc.ID}})
		}
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case time.Time:
		return float64(n.UnixMilli()), true
	}
	return 0, false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := number(v); ok {
		return 2
	}
	switch v.(type) {
	case bool:
		return 1
	case string:
		return 3
	}
	return 4
}

func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case 2:
		x, _ := number(a)
		y, _ := number(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}
