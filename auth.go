package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/auth"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google in the browser",
		Long: `Run the OAuth consent flow in a browser and save the resulting token.

If no browser can be opened, the consent URL is printed instead.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved authentication token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	cc.Logger.Info("login started", slog.String("token_path", cc.Cfg.Auth.TokenPath))

	store := cc.authStore()

	cred, err := store.Login(ctx)
	if err != nil {
		return authError(err)
	}

	s := cc.sessionFor(store, cred)

	// The profile lookup only labels the token; login has succeeded either way.
	me, err := s.Client.Me(ctx)
	if err != nil {
		cc.Logger.Warn("could not fetch user profile after login", slog.String("error", err.Error()))
		cc.Statusf("Login successful.\n")

		return nil
	}

	if err := store.RememberAccount(me.Email); err != nil {
		cc.Logger.Warn("could not record account", slog.String("error", err.Error()))
	}

	cc.Logger.Info("login successful", slog.String("account", me.Email))
	cc.Statusf("Logged in as %s.\n", me.Email)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := cc.authStore().Logout(); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	store := cc.authStore()
	if _, err := store.Account(); errors.Is(err, auth.ErrNotLoggedIn) {
		return fmt.Errorf("not logged in: run 'classroom-go login' first")
	}

	s, err := cc.session(ctx)
	if err != nil {
		return err
	}

	me, err := s.Client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching user profile: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, whoamiOutput{ID: me.ID, Email: me.Email, FullName: me.FullName})
	}

	fmt.Fprintf(cc.Out, "User:  %s (%s)\n", me.FullName, me.Email)
	fmt.Fprintf(cc.Out, "ID:    %s\n", me.ID)

	return nil
}
