// Package gateway calls the functions server's callable RPCs. Preconditions
// are checked locally before anything is sent, and nothing is retried.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hangoutsync/internal/functions"
)

var callDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "hangoutsync",
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Latency of callable RPCs by outcome.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"function", "outcome"},
)

type Options struct {
	BaseURL string
	// Token returns the bearer session token sent with every call.
	Token   func() string
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	http   *resty.Client
	token  func() string
	logger *slog.Logger
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("gateway: base url required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}

	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(0)

	return &Client{http: c, token: token, logger: logger}, nil
}

type validator interface {
	Validate() error
}

func call[Req validator, Resp any](ctx context.Context, c *Client, name string, req Req) (Resp, error) {
	var zero Resp
	if err := req.Validate(); err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	start := time.Now()
	var out functions.Result[Resp]
	r := c.http.R().
		SetContext(ctx).
		SetBody(functions.Call[Req]{Data: req}).
		SetResult(&out).
		SetError(&errorEnvelope{})
	if tok := c.token(); tok != "" {
		r.SetAuthToken(tok)
	}

	resp, err := r.Post(functions.Path(name))
	if err != nil {
		callDuration.WithLabelValues(name, "transport_error").Observe(time.Since(start).Seconds())
		c.logger.Error("gateway: call failed", "function", name, "err", err)
		return zero, transportError(name, err)
	}
	if resp.IsError() {
		callDuration.WithLabelValues(name, "error").Observe(time.Since(start).Seconds())
		rerr := responseError(name, resp)
		c.logger.Warn("gateway: call rejected", "function", name, "status", resp.StatusCode(), "code", rerr.Code)
		return zero, rerr
	}
	callDuration.WithLabelValues(name, "ok").Observe(time.Since(start).Seconds())
	return out.Result, nil
}

func (c *Client) SendFriendRequest(ctx context.Context, req functions.SendFriendRequestRequest) (string, error) {
	res, err := call[functions.SendFriendRequestRequest, functions.SendFriendRequestResponse](ctx, c, functions.SendFriendRequest, req)
	if err != nil {
		return "", err
	}
	if res.NotificationID == "" {
		return "", badResponse(functions.SendFriendRequest, "missing notificationId")
	}
	return res.NotificationID, nil
}

func (c *Client) UnsendFriendRequest(ctx context.Context, req functions.UnsendFriendRequestRequest) error {
	res, err := call[functions.UnsendFriendRequestRequest, functions.SuccessResponse](ctx, c, functions.UnsendFriendRequest, req)
	if err != nil {
		return err
	}
	return requireSuccess(functions.UnsendFriendRequest, res)
}

func (c *Client) RespondToFriendRequest(ctx context.Context, req functions.RespondToFriendRequestRequest) error {
	res, err := call[functions.RespondToFriendRequestRequest, functions.SuccessResponse](ctx, c, functions.RespondToFriendRequest, req)
	if err != nil {
		return err
	}
	return requireSuccess(functions.RespondToFriendRequest, res)
}

func (c *Client) UpdateNotificationStatus(ctx context.Context, req functions.UpdateNotificationStatusRequest) error {
	res, err := call[functions.UpdateNotificationStatusRequest, functions.SuccessResponse](ctx, c, functions.UpdateNotificationStatus, req)
	if err != nil {
		return err
	}
	return requireSuccess(functions.UpdateNotificationStatus, res)
}

func (c *Client) CreateHangout(ctx context.Context, req functions.CreateHangoutRequest) (string, error) {
	res, err := call[functions.CreateHangoutRequest, functions.CreateHangoutResponse](ctx, c, functions.CreateHangout, req)
	if err != nil {
		return "", err
	}
	if res.HangoutID == "" {
		return "", badResponse(functions.CreateHangout, "missing hangoutId")
	}
	return res.HangoutID, nil
}

func (c *Client) SearchServiceAPIKey(ctx context.Context) (string, error) {
	res, err := call[noPreconditions, functions.SearchServiceAPIKeyResponse](ctx, c, functions.GetSearchServiceAPIKey, noPreconditions{})
	if err != nil {
		return "", err
	}
	if res.APIKey == "" {
		return "", badResponse(functions.GetSearchServiceAPIKey, "missing apiKey")
	}
	return res.APIKey, nil
}

type noPreconditions functions.SearchServiceAPIKeyRequest

func (noPreconditions) Validate() error { return nil }
