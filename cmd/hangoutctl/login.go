package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type signIn struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newLoginCmd() *cobra.Command {
	var email, password string
	var register bool
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password and print shell exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"email": email, "password": password}
			path := "/v1/auth/login"
			if register {
				if username == "" {
					return fmt.Errorf("--username required with --register")
				}
				body["username"] = username
				path = "/v1/auth/register"
			}
			var out signIn
			resp, err := resty.New().
				SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
				SetTimeout(cfg.Timeout).
				R().
				SetContext(cmd.Context()).
				SetBody(body).
				SetResult(&out).
				SetError(&apiError{}).
				Post(path)
			if err != nil {
				return err
			}
			if resp.IsError() {
				if e, ok := resp.Error().(*apiError); ok && e.Error.Code != "" {
					return fmt.Errorf("%s: %s", e.Error.Code, e.Error.Message)
				}
				return fmt.Errorf("login: %s", resp.Status())
			}
			fmt.Fprintf(os.Stdout, "export HANGOUT_UID=%s\nexport HANGOUT_TOKEN=%s\n", out.UID, out.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (required)")
	cmd.Flags().BoolVar(&register, "register", false, "Create the account first")
	cmd.Flags().StringVar(&username, "username", "", "Username for --register")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
