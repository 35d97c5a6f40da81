package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"hangoutsync/internal/client"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/gateway"
	"hangoutsync/internal/remote"
	"hangoutsync/internal/remote/firestore"
	"hangoutsync/internal/remote/memsource"
	"hangoutsync/internal/remote/wsfeed"
)

// settings come from HANGOUT_* variables; flags override them.
type settings struct {
	BaseURL  string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	Token    string        `envconfig:"TOKEN"`
	UID      string        `envconfig:"UID"`
	PageSize int           `envconfig:"PAGE_SIZE" default:"50"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"20s"`
	Debug    bool          `envconfig:"DEBUG"`

	// Offline serves documents from Fixture in memory. Callables fail.
	Offline bool   `envconfig:"OFFLINE"`
	Fixture string `envconfig:"FIXTURE"`

	// FirestoreProject reads documents straight from Firestore instead of
	// the server's document endpoints. Callables still go to BaseURL.
	FirestoreProject     string `envconfig:"FIRESTORE_PROJECT"`
	FirestoreCredentials string `envconfig:"FIRESTORE_CREDENTIALS"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := envconfig.Process("HANGOUT", &s); err != nil {
		return settings{}, err
	}
	return s, nil
}

var errOffline = errors.New("offline: callable functions are unavailable")

type offlineGateway struct{}

func (offlineGateway) SendFriendRequest(context.Context, functions.SendFriendRequestRequest) (string, error) {
	return "", errOffline
}
func (offlineGateway) UnsendFriendRequest(context.Context, functions.UnsendFriendRequestRequest) error {
	return errOffline
}
func (offlineGateway) RespondToFriendRequest(context.Context, functions.RespondToFriendRequestRequest) error {
	return errOffline
}
func (offlineGateway) UpdateNotificationStatus(context.Context, functions.UpdateNotificationStatusRequest) error {
	return errOffline
}
func (offlineGateway) CreateHangout(context.Context, functions.CreateHangoutRequest) (string, error) {
	return "", errOffline
}
func (offlineGateway) SearchServiceAPIKey(context.Context) (string, error) { return "", errOffline }

// fixture maps collection path to document id to fields.
type fixture map[string]map[string]map[string]any

func loadFixture(path string, src *memsource.Source) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("fixture %s: %w", path, err)
	}
	for collection, docs := range fx {
		if !remote.ValidCollection(collection) {
			return fmt.Errorf("fixture %s: %q: %w", path, collection, remote.ErrBadPath)
		}
		for id, data := range docs {
			src.Set(collection, id, data)
		}
	}
	return nil
}

// connect builds the client dependencies for s. The returned func releases
// whatever connect opened.
func connect(ctx context.Context, s settings, logger *slog.Logger) (client.Deps, func(), error) {
	deps := client.Deps{
		Identity: client.NewIdentity(s.UID, s.Token),
		Logger:   logger,
		OnError: func(err error) {
			logger.Warn("subscription failed", "err", err)
		},
	}
	noop := func() {}

	if s.Offline {
		src := memsource.New()
		if err := loadFixture(s.Fixture, src); err != nil {
			return client.Deps{}, noop, err
		}
		deps.Source, deps.Writer, deps.Gateway = src, src, offlineGateway{}
		return deps, noop, nil
	}

	token := func() string { return s.Token }
	gw, err := gateway.New(gateway.Options{BaseURL: s.BaseURL, Token: token, Timeout: s.Timeout, Logger: logger})
	if err != nil {
		return client.Deps{}, noop, err
	}
	deps.Gateway = gw

	if s.FirestoreProject != "" {
		fs, err := firestore.Open(ctx, s.FirestoreProject, s.FirestoreCredentials, logger)
		if err != nil {
			return client.Deps{}, noop, err
		}
		deps.Source, deps.Writer = fs, fs
		return deps, func() { _ = fs.Close() }, nil
	}

	feed, err := wsfeed.New(wsfeed.Options{BaseURL: s.BaseURL, Token: token, Timeout: s.Timeout, Logger: logger})
	if err != nil {
		return client.Deps{}, noop, err
	}
	deps.Source, deps.Writer = feed, feed
	return deps, noop, nil
}
