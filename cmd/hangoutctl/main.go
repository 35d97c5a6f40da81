package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"hangoutsync/internal/client"
)

var (
	cfg     settings
	rootCmd = &cobra.Command{
		Use:           "hangoutctl",
		Short:         "Command line client for the hangouts sync server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	var err error
	cfg, err = loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.BaseURL, "api", "a", cfg.BaseURL, "Server base URL")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Session token")
	flags.StringVarP(&cfg.UID, "uid", "u", cfg.UID, "Signed-in user id")
	flags.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Inbox page size")
	flags.BoolVar(&cfg.Offline, "offline", cfg.Offline, "Serve documents from --fixture instead of the server")
	flags.StringVar(&cfg.Fixture, "fixture", cfg.Fixture, "JSON fixture for --offline")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Verbose logging")

	rootCmd.AddCommand(
		newLoginCmd(),
		newWatchCmd(),
		newFriendsCmd(),
		newNotificationsCmd(),
		newHangoutsCmd(),
		newSearchKeyCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
}

// withSession runs fn against a session for the configured user and closes
// it afterwards.
func withSession(ctx context.Context, fn func(*client.Session) error) error {
	return withSessionErrors(ctx, nil, fn)
}

// withSessionErrors is withSession with subscription failures routed to
// onError.
func withSessionErrors(ctx context.Context, onError func(error), fn func(*client.Session) error) error {
	logger := newLogger()
	deps, release, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()
	deps.OnError = onError
	sess, err := client.NewSession(deps, client.SessionOptions{PageSize: cfg.PageSize})
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
