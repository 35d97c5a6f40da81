package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/service"
)

const healthTimeout = time.Second

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error
	// Shutdown is closed when the server stops; open watch feeds end then.
	Shutdown <-chan struct{}

	Docs          docstore.Store
	Accounts      *service.AccountService
	Friends       *service.FriendsService
	Hangouts      *service.HangoutService
	Notifications *service.NotificationService
	Secrets       *service.SecretService

	// LoginWindow and LoginMax bound sign-in attempts per ip and account.
	LoginWindow time.Duration
	LoginMax    int
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = 5 * time.Minute
	}
	if opts.LoginMax <= 0 {
		opts.LoginMax = 10
	}

	api := &api{
		logger:        logger,
		dbPing:        opts.DBPing,
		shutdown:      opts.Shutdown,
		docs:          opts.Docs,
		accounts:      opts.Accounts,
		friends:       opts.Friends,
		hangouts:      opts.Hangouts,
		notifications: opts.Notifications,
		secrets:       opts.Secrets,
		loginLimiter:  newAttemptLimiter(opts.LoginWindow, opts.LoginMax),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	api.callables = api.functionHandlers()

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	publicMux.Handle("GET /metrics", promhttp.Handler())

	if api.accounts == nil {
		apiMux.HandleFunc("/v1/", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		apiMux.HandleFunc("POST /v1/auth/google", api.handleAuthGoogle)
		apiMux.HandleFunc("POST /v1/auth/apple", api.handleAuthApple)

		apiMux.HandleFunc("POST /v1/functions/{name}", api.requireAuth(api.handleFunction))
		apiMux.HandleFunc("GET /v1/docs/{path...}", api.requireAuth(api.handleDocsGet))
		apiMux.HandleFunc("PATCH /v1/docs/{path...}", api.requireAuth(api.handleDocsPatch))
		apiMux.HandleFunc("GET /v1/watch", api.requireAuth(api.handleWatch))

		if api.notifications != nil {
			apiMux.HandleFunc("POST /v1/notifications/tokens", api.requireAuth(api.handleNotificationsTokenUpsert))
			apiMux.HandleFunc("DELETE /v1/notifications/tokens", api.requireAuth(api.handleNotificationsTokenDelete))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler does not populate wildcards, so matched requests go back
		// through the mux to get PathValue filled in.
		if _, pattern := apiMux.Handler(r); pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		apiMux.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = withUIDHolder(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger   *slog.Logger
	dbPing   func(context.Context) error
	shutdown <-chan struct{}

	docs          docstore.Store
	accounts      *service.AccountService
	friends       *service.FriendsService
	hangouts      *service.HangoutService
	notifications *service.NotificationService
	secrets       *service.SecretService
	callables     map[string]http.HandlerFunc

	loginLimiter *attemptLimiter
	upgrader     websocket.Upgrader
}
