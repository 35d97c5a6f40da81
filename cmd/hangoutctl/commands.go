package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hangoutsync/internal/client"
	"hangoutsync/internal/domain"
)

// watchTarget loads one model and returns the store change signal and a
// snapshot printer for it.
type watchTarget func(ctx context.Context, s *client.Session) (<-chan struct{}, func(), func() any, error)

var watchTargets = map[string]watchTarget{
	"friends": func(ctx context.Context, s *client.Session) (<-chan struct{}, func(), func() any, error) {
		if err := s.Social.Load(ctx); err != nil {
			return nil, nil, nil, err
		}
		ch, cancel := s.Social.FriendsStore().Subscribe()
		return ch, cancel, func() any { return s.Social.Friends() }, nil
	},
	"requests": func(ctx context.Context, s *client.Session) (<-chan struct{}, func(), func() any, error) {
		if err := s.Social.Load(ctx); err != nil {
			return nil, nil, nil, err
		}
		ch, cancel := s.Social.RequestsStore().Subscribe()
		return ch, cancel, func() any { return s.Social.Requests() }, nil
	},
	"notifications": func(ctx context.Context, s *client.Session) (<-chan struct{}, func(), func() any, error) {
		if err := s.Inbox.Load(ctx); err != nil {
			return nil, nil, nil, err
		}
		ch, cancel := s.Inbox.Store().Subscribe()
		return ch, cancel, func() any { return s.Inbox.All() }, nil
	},
	"hangouts": func(ctx context.Context, s *client.Session) (<-chan struct{}, func(), func() any, error) {
		if err := s.Hangouts.Load(ctx); err != nil {
			return nil, nil, nil, err
		}
		ch, cancel := s.Hangouts.Store().Subscribe()
		return ch, cancel, func() any { return s.Hangouts.List() }, nil
	},
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "watch friends|requests|notifications|hangouts",
		Short:     "Print a collection and reprint it on every change until interrupted",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"friends", "requests", "notifications", "hangouts"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			failures := make(chan error, 1)
			onError := func(err error) {
				select {
				case failures <- err:
				default:
				}
			}
			return withSessionErrors(ctx, onError, func(s *client.Session) error {
				changed, cancel, snapshot, err := watchTargets[args[0]](ctx, s)
				if err != nil {
					return err
				}
				defer cancel()
				return watchLoop(ctx, changed, failures, func() error {
					return printJSON(os.Stdout, snapshot())
				})
			})
		},
	}
}

// watchLoop prints once and then on every change. It returns nil when ctx
// ends and the error when a subscription fails.
func watchLoop(ctx context.Context, changed <-chan struct{}, failures <-chan error, render func() error) error {
	if err := render(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failures:
			return fmt.Errorf("watch: %w", err)
		case <-changed:
			if err := render(); err != nil {
				return err
			}
		}
	}
}

func newFriendsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "friends", Short: "Friends and friend requests"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List friends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				if err := s.Social.Load(cmd.Context()); err != nil {
					return err
				}
				return printJSON(os.Stdout, s.Social.Friends())
			})
		},
	})

	var username string
	var avatars []string
	request := &cobra.Command{
		Use:   "request UID",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				if err := s.Social.Load(cmd.Context()); err != nil {
					return err
				}
				req, err := s.Social.SendFriendRequest(cmd.Context(), args[0], username, avatars)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, req)
			})
		},
	}
	request.Flags().StringVar(&username, "username", "", "Your username, shown to the target (required)")
	request.Flags().StringSliceVar(&avatars, "avatar", nil, "Avatar URL (repeatable, at least one)")
	_ = request.MarkFlagRequired("username")
	cmd.AddCommand(request)

	cmd.AddCommand(&cobra.Command{
		Use:   "unsend UID",
		Short: "Withdraw an outstanding friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				if err := s.Social.Load(cmd.Context()); err != nil {
					return err
				}
				return s.Social.UnsendFriendRequest(cmd.Context(), args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accept UID",
		Short: "Accept the friend request UID sent you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				return s.Social.AcceptFriendRequest(cmd.Context(), args[0])
			})
		},
	})

	var notificationID string
	reject := &cobra.Command{
		Use:   "reject UID",
		Short: "Reject the friend request UID sent you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				return s.Social.RejectFriendRequest(cmd.Context(), args[0], notificationID)
			})
		},
	}
	reject.Flags().StringVar(&notificationID, "notification", "", "Inbox entry to mark rejected as well")
	cmd.AddCommand(reject)
	return cmd
}

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Inbox operations"}

	var unread bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List inbox entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				if err := s.Inbox.Load(cmd.Context()); err != nil {
					return err
				}
				if unread {
					return printJSON(os.Stdout, s.Inbox.Unread())
				}
				return printJSON(os.Stdout, s.Inbox.All())
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "Only unseen entries")
	cmd.AddCommand(list)

	setStatus := func(use, short string, apply func(*client.Inbox) func(context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd.Context(), func(s *client.Session) error {
					if err := s.Inbox.Load(cmd.Context()); err != nil {
						return err
					}
					return apply(s.Inbox)(cmd.Context(), args[0])
				})
			},
		}
	}
	cmd.AddCommand(
		setStatus("read", "Mark an entry read", func(in *client.Inbox) func(context.Context, string) error { return in.MarkRead }),
		setStatus("accept", "Mark an entry accepted", func(in *client.Inbox) func(context.Context, string) error { return in.Accept }),
		setStatus("reject", "Mark an entry rejected", func(in *client.Inbox) func(context.Context, string) error { return in.Reject }),
	)
	return cmd
}

func newHangoutsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "hangouts", Short: "Hangout operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your hangouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				if err := s.Hangouts.Load(cmd.Context()); err != nil {
					return err
				}
				return printJSON(os.Stdout, s.Hangouts.List())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Read a hangout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *client.Session) error {
				h, err := s.Hangouts.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, h)
			})
		},
	})

	var (
		draft          client.Draft
		duration, vibe string
		vibeSlider     float64
		location       string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a hangout and invite participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDuration(duration)
			if err != nil {
				return err
			}
			draft.Duration = d
			if cmd.Flags().Changed("vibe-level") {
				draft.Vibe = domain.VibeFromSlider(vibeSlider)
			} else if draft.Vibe, err = domain.ParseVibe(vibe); err != nil {
				return err
			}
			if location != "" {
				draft.Location = &domain.Location{Name: location}
			}
			return withSession(cmd.Context(), func(s *client.Session) error {
				ref, err := s.Hangouts.Create(cmd.Context(), draft)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, ref)
			})
		},
	}
	f := create.Flags()
	f.StringVar(&draft.Title, "title", "", "Title")
	f.StringVar(&draft.Description, "description", "", "Description")
	f.StringSliceVarP(&draft.Participants, "participant", "p", nil, "Participant uid (repeatable)")
	f.StringSliceVar(&draft.Tags, "tag", nil, "Tag (repeatable)")
	f.Float64Var(&draft.Budget, "budget", 0, "Budget per person")
	f.BoolVar(&draft.IsOutdoor, "outdoor", false, "Outdoor hangout")
	f.StringVar(&duration, "duration", string(domain.DurationQuick), "quick, halfDay, fullDay or overnight")
	f.StringVar(&vibe, "vibe", string(domain.VibeCasual), fmt.Sprintf("One of %v", domain.Vibes()))
	f.Float64Var(&vibeSlider, "vibe-level", 0, "Vibe as a slider position in [0,1]; overrides --vibe")
	f.StringVar(&location, "location", "", "Place name")
	cmd.AddCommand(create)
	return cmd
}

func newSearchKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search-key",
		Short: "Print the search service API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			deps, release, err := connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer release()
			if _, err := deps.Identity.Require(); err != nil {
				return err
			}
			key, err := deps.Gateway.SearchServiceAPIKey(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, key)
			return nil
		},
	}
}
