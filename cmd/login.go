// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/auth"
	"sfkit/cli/internal/terminal"
)

var (
	loginInstanceURL  string
	loginClientID     string
	loginUsername     string
	loginRefreshToken bool
	loginAccessToken  bool
)

// loginCmd obtains a session for an org and stores it in the OS keychain.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Authenticate against an org and store the session",
	Long: `The login command obtains an OAuth session for an org and stores it in the OS
keychain. Three credential sets are supported:

  --username        username/password flow; the password prompt expects the
                    password with the security token appended
  --refresh-token   exchange a refresh token for a new session
  --access-token    use an existing access token as-is (no refresh)

Secrets are always read from the terminal, or from SFKIT_PASSWORD,
SFKIT_REFRESH_TOKEN, SFKIT_ACCESS_TOKEN and SFKIT_CLIENT_SECRET when set.
When no API version is pinned with --api-version the newest version the org
serves is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		req := auth.LoginRequest{
			InstanceURL:  firstNonEmpty(loginInstanceURL, cfg.InstanceURL),
			ClientID:     firstNonEmpty(loginClientID, cfg.ClientID),
			ClientSecret: getenv("SFKIT_CLIENT_SECRET"),
			APIVersion:   apiVersion,
			Username:     loginUsername,
		}
		var err error
		switch {
		case loginAccessToken:
			req.Username = ""
			req.AccessToken, err = secret("SFKIT_ACCESS_TOKEN", "Access token: ")
		case loginRefreshToken:
			req.Username = ""
			req.RefreshToken, err = secret("SFKIT_REFRESH_TOKEN", "Refresh token: ")
		case loginUsername != "":
			req.Password, err = secret("SFKIT_PASSWORD", "Password + security token: ")
		}
		if err != nil {
			return err
		}

		svc := newAuthService()
		stop := startInlineSpinner(os.Stdout, "Logging in", spinnerFrames, 120*time.Millisecond)
		sess, me, err := svc.Login(ctx, req)
		stop()
		if err != nil {
			return networkError(err, "logging in", req.InstanceURL)
		}
		logger.Debug("login complete", "instance", sess.InstanceURL, "api_version", sess.Version(), "org", sess.OrgID)
		pterm.Success.Println(loginGreeting(me.Account()))
		pterm.Printf("   %s (API %s)\n", sess.InstanceURL, sess.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginInstanceURL, "instance-url", "", "Org URL, e.g. https://login.example.com (default from config)")
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "Connected app consumer key (default from config)")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Log in with this username and a password")
	loginCmd.Flags().BoolVar(&loginRefreshToken, "refresh-token", false, "Log in with a refresh token")
	loginCmd.Flags().BoolVar(&loginAccessToken, "access-token", false, "Log in with an existing access token")
	loginCmd.MarkFlagsMutuallyExclusive("username", "refresh-token", "access-token")
	loginCmd.MarkFlagsOneRequired("username", "refresh-token", "access-token")
}

// secret returns the value of env, or prompts for it without echo.
func secret(env, prompt string) (string, error) {
	if v := getenv(env); v != "" {
		return v, nil
	}
	if !terminal.IsInteractive() {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", env)
	}
	return terminal.ReadSecret(prompt)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// loginGreeting returns a random greeting phrase with the user's identifier.
func loginGreeting(identifier string) string {
	greetings := []string{
		"Welcome back, %s!",
		"Great to see you, %s!",
		"You're all set, %s!",
		"Logged in as %s",
		"You're in, %s!",
	}
	return fmt.Sprintf(greetings[rand.IntN(len(greetings))], identifier)
}
