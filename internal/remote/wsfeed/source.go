// Package wsfeed is the remote.Source for the functions server: point reads
// and queries over HTTP, live diffs over the websocket watch feed.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type Options struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// Token returns the current bearer session token. Empty means anonymous.
	Token   func() string
	Timeout time.Duration
	Logger  *slog.Logger
	Dialer  *websocket.Dialer
}

type Source struct {
	http   *resty.Client
	base   *url.URL
	token  func() string
	dialer *websocket.Dialer
	logger *slog.Logger
}

var (
	_ remote.Source = (*Source)(nil)
	_ remote.Writer = (*Source)(nil)
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type documentsResponse struct {
	Documents []remote.Document `json:"documents"`
}

func New(opts Options) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("wsfeed: invalid base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: opts.Timeout}
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}

	c := resty.New().
		SetBaseURL(base.String()).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	return &Source{http: c, base: base, token: token, dialer: dialer, logger: logger}, nil
}

func (s *Source) request(ctx context.Context) *resty.Request {
	req := s.http.R().SetContext(ctx).SetError(&errorEnvelope{})
	if tok := s.token(); tok != "" {
		req.SetAuthToken(tok)
	}
	return req
}

func docsPath(segments ...string) string {
	var b strings.Builder
	b.WriteString("/v1/docs")
	for _, seg := range segments {
		for _, part := range strings.Split(strings.Trim(seg, "/"), "/") {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(part))
		}
	}
	return b.String()
}

func (s *Source) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var doc remote.Document
	resp, err := s.request(ctx).SetResult(&doc).Get(docsPath(collection, id))
	if err != nil {
		return remote.Document{}, fmt.Errorf("wsfeed: get %s/%s: %w", collection, id, err)
	}
	if err := statusError(resp); err != nil {
		return remote.Document{}, fmt.Errorf("wsfeed: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *Source) Fetch(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	params := q.Values()
	params.Del("collection")

	var out documentsResponse
	resp, err := s.request(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&out).
		Get(docsPath(q.Collection))
	if err != nil {
		return nil, fmt.Errorf("wsfeed: fetch %s: %w", q, err)
	}
	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("wsfeed: fetch %s: %w", q, err)
	}
	return out.Documents, nil
}

type mergeRequest struct {
	Fields map[string]any `json:"fields"`
}

// Merge patches fields onto a document through the document write endpoint.
func (s *Source) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	resp, err := s.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mergeRequest{Fields: fields}).
		Patch(docsPath(collection, id))
	if err != nil {
		return fmt.Errorf("wsfeed: merge %s/%s: %w", collection, id, err)
	}
	if err := statusError(resp); err != nil {
		return fmt.Errorf("wsfeed: merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Code != "" {
		msg = env.Error.Code + ": " + env.Error.Message
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthorized)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, domain.ErrForbidden)
	}
	return errors.New(msg)
}

func (s *Source) watchURL(q remote.Query) string {
	u := *s.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/watch"
	u.RawQuery = q.Values().Encode()
	return u.String()
}

// Watch dials the watch feed and relays frames until ctx is cancelled or
// the connection fails. A failure is delivered as a final error event.
func (s *Source) Watch(ctx context.Context, q remote.Query) (<-chan remote.Event, error) {
	header := http.Header{}
	if tok := s.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.watchURL(q), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsfeed: watch %s: handshake status %d: %w", q, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wsfeed: watch %s: %w", q, err)
	}
	conn.SetReadLimit(4 << 20)

	out := make(chan remote.Event, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var frame remote.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("wsfeed: watch stream ended", "query", q.String(), "err", err)
				s.deliver(ctx, out, remote.Event{Err: err})
				return
			}
			if frame.Error != nil {
				s.deliver(ctx, out, remote.Event{Err: frame.Error})
				return
			}
			if len(frame.Changes) == 0 {
				continue
			}
			if !s.deliver(ctx, out, remote.Event{Changes: frame.Changes}) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Source) deliver(ctx context.Context, out chan<- remote.Event, ev remote.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
