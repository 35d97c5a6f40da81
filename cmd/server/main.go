package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	secretmanager "google.golang.org/api/secretmanager/v1"

	"hangoutsync/internal/auth"
	"hangoutsync/internal/config"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/httpapi"
	"hangoutsync/internal/notifications"
	"hangoutsync/internal/service"
	"hangoutsync/internal/store/postgres"
	"hangoutsync/internal/store/sqlite"
)

// backend is what the services need from either store.
type backend struct {
	docs     docstore.Store
	accounts service.AccountsStore
	tokens   service.NotificationTokensStore
	ping     func(context.Context) error
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := docstore.NewHub(cfg.WatchBuffer, logger)
	be, err := openBackend(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error("db open failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer be.close()

	base := service.Base{Docs: be.docs, Logger: logger}

	notes := &service.NotificationService{Base: base, Tokens: be.tokens}
	if cfg.PushEnabled() {
		sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			logger.Error("fcm setup failed", "err", err)
			os.Exit(1)
		}
		notes.Sender = sender
		logger.Info("push notifications enabled", "project", cfg.FCMProjectID)
	} else {
		logger.Info("push notifications disabled")
	}

	secrets, err := searchKeySource(ctx, cfg)
	if err != nil {
		logger.Error("secret manager setup failed", "err", err)
		os.Exit(1)
	}

	accounts := &service.AccountService{
		Base:     base,
		Accounts: be.accounts,
		Tokens:   auth.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL),
	}
	if len(cfg.GoogleClientIDs) > 0 {
		accounts.Google = auth.GoogleVerifier(cfg.GoogleClientIDs)
	}
	if len(cfg.AppleClientIDs) > 0 {
		accounts.Apple = auth.AppleVerifier(cfg.AppleClientIDs)
	}

	shutdown := make(chan struct{})
	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:        logger,
		IsProd:        cfg.IsProd(),
		DBPing:        be.ping,
		Shutdown:      shutdown,
		Docs:          be.docs,
		Accounts:      accounts,
		Friends:       &service.FriendsService{Base: base, Notifier: notes},
		Hangouts:      &service.HangoutService{Base: base, Notifier: notes},
		Notifications: notes,
		Secrets:       &service.SecretService{Source: secrets},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		close(shutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config, hub *docstore.Hub, logger *slog.Logger) (backend, error) {
	if cfg.DBDriver == "postgres" {
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return backend{}, err
		}
		docs := postgres.NewDocumentStore(pool, hub)
		go func() {
			if err := docs.Listen(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change listener stopped", "err", err)
			}
		}()
		return backend{
			docs:     docs,
			accounts: postgres.NewAccountsStore(pool),
			tokens:   postgres.NewNotificationTokensStore(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	}

	store, err := sqlite.New(cfg.SQLitePath, hub)
	if err != nil {
		return backend{}, err
	}
	logger.Info("using sqlite store", "path", cfg.SQLitePath)
	return backend{
		docs:     store,
		accounts: store,
		tokens:   store,
		close:    func() { _ = store.Close() },
	}, nil
}

func searchKeySource(ctx context.Context, cfg config.Config) (service.SecretSource, error) {
	if cfg.SearchKeySecret == "" {
		return service.StaticSecret(cfg.SearchKeyFallback), nil
	}
	svc, err := secretmanager.NewService(ctx)
	if err != nil {
		return nil, err
	}
	return service.SecretManagerSource(svc, cfg.SearchKeySecret), nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
