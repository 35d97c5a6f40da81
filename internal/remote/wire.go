package remote

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Frame is one message on the websocket watch feed. The first frame after
// connect carries the current result set as additions.
type Frame struct {
	Changes []Change    `json:"changes,omitempty"`
	Error   *FrameError `json:"error,omitempty"`
}

type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FrameError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Values encodes q as URL parameters for the document and watch endpoints.
// Filters travel as repeated "where" parameters of the form field==<json>.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("collection", q.Collection)
	if q.OrderBy != "" {
		v.Set("orderBy", q.OrderBy)
	}
	if q.Descending {
		v.Set("desc", "true")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for _, f := range q.Where {
		raw, err := json.Marshal(f.Value)
		if err != nil {
			continue
		}
		v.Add("where", f.Field+"=="+string(raw))
	}
	return v
}

// ParseQuery is the inverse of Query.Values.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Collection: strings.Trim(v.Get("collection"), "/"),
		OrderBy:    v.Get("orderBy"),
	}
	if !ValidCollection(q.Collection) {
		return Query{}, fmt.Errorf("collection %q: %w", q.Collection, ErrBadPath)
	}
	if d := v.Get("desc"); d != "" {
		desc, err := strconv.ParseBool(d)
		if err != nil {
			return Query{}, fmt.Errorf("desc: %w", err)
		}
		q.Descending = desc
	}
	if l := v.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("limit %q: invalid", l)
		}
		q.Limit = n
	}
	for _, w := range v["where"] {
		field, raw, ok := strings.Cut(w, "==")
		if !ok || field == "" {
			return Query{}, fmt.Errorf("where %q: expected field==value", w)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return Query{}, fmt.Errorf("where %q: %w", w, err)
		}
		q.Where = append(q.Where, Filter{Field: field, Value: value})
	}
	return q, nil
}
