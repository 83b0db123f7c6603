package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/classroom-go/internal/tokenfile"
)

// DefaultMargin is how close to expiry a token may get before it is
// refreshed instead of used.
const DefaultMargin = 60 * time.Second

// Options configures a Store.
type Options struct {
	TokenPath  string
	SecretPath string
	Scopes     []string
	Margin     time.Duration

	// OpenURL launches the consent page. Nil prints the URL to Prompt.
	OpenURL func(string) error
	// Prompt receives messages the user must see. Defaults to os.Stderr.
	Prompt io.Writer
	Logger *slog.Logger
}

// Store holds the persisted credential and hands out usable ones. It is
// not safe for concurrent use and assumes a single process owns the
// token file.
type Store struct {
	tokenPath  string
	secretPath string
	scopes     []string
	margin     time.Duration
	openURL    func(string) error
	prompt     io.Writer
	logger     *slog.Logger

	now        func() time.Time
	configFunc func() (*oauth2.Config, error)
}

// NewStore returns a Store for the given options. No I/O happens until
// Acquire or Login.
func NewStore(opts Options) *Store {
	s := &Store{
		tokenPath:  opts.TokenPath,
		secretPath: opts.SecretPath,
		scopes:     opts.Scopes,
		margin:     opts.Margin,
		openURL:    opts.OpenURL,
		prompt:     opts.Prompt,
		logger:     opts.Logger,
		now:        time.Now,
	}

	if len(s.scopes) == 0 {
		s.scopes = DefaultScopes
	}

	if s.margin <= 0 {
		s.margin = DefaultMargin
	}

	if s.prompt == nil {
		s.prompt = os.Stderr
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.configFunc = func() (*oauth2.Config, error) {
		return loadSecret(s.secretPath, s.scopes)
	}

	return s
}

// Acquire returns a credential that is valid for longer than the margin.
// The saved token is used as is when possible. Otherwise the stored
// refresh token is exchanged, and if that is missing or rejected the
// browser flow runs. Any new token is persisted before it is returned.
// ErrAuthConfig is returned only when a grant is needed and the client
// secret cannot be loaded.
func (s *Store) Acquire(ctx context.Context) (*Credential, error) {
	saved := s.loadSaved()

	if saved != nil && saved.HasScopes(s.scopes) && usable(saved.Token, s.now(), s.margin) {
		s.logger.Debug("using saved token",
			slog.Time("expiry", saved.Token.Expiry),
		)

		return s.credential(saved.Token), nil
	}

	cfg, err := s.configFunc()
	if err != nil {
		return nil, err
	}

	account := ""
	if saved != nil {
		account = saved.Account
	}

	if saved != nil && saved.Token.RefreshToken != "" && saved.HasScopes(s.scopes) {
		tok, refreshErr := s.refresh(ctx, cfg, saved.Token.RefreshToken)
		if refreshErr == nil {
			return s.persist(tok, account)
		}

		s.logger.Warn("refresh grant failed, falling back to browser login",
			slog.String("error", refreshErr.Error()),
		)
	} else if saved != nil {
		s.logger.Info("saved token cannot be refreshed for the requested scopes, re-authorizing")
	}

	tok, err := authorize(ctx, cfg, s.openURL, s.prompt, s.logger)
	if err != nil {
		return nil, err
	}

	return s.persist(tok, account)
}

// Login runs the browser flow unconditionally and replaces the saved token.
func (s *Store) Login(ctx context.Context) (*Credential, error) {
	cfg, err := s.configFunc()
	if err != nil {
		return nil, err
	}

	tok, err := authorize(ctx, cfg, s.openURL, s.prompt, s.logger)
	if err != nil {
		return nil, err
	}

	return s.persist(tok, "")
}

// Logout removes the saved token. It succeeds when there is none.
func (s *Store) Logout() error {
	if err := tokenfile.Remove(s.tokenPath); err != nil {
		return err
	}

	s.logger.Info("logout: removed token file", slog.String("path", s.tokenPath))

	return nil
}

// Account returns the account recorded with the saved token, or
// ErrNotLoggedIn when there is no saved token.
func (s *Store) Account() (string, error) {
	tf, err := tokenfile.Load(s.tokenPath)
	if err != nil {
		return "", err
	}

	if tf == nil {
		return "", ErrNotLoggedIn
	}

	return tf.Account, nil
}

// RememberAccount records which account the saved token belongs to.
func (s *Store) RememberAccount(email string) error {
	tf, err := tokenfile.Load(s.tokenPath)
	if err != nil {
		return err
	}

	if tf == nil {
		return ErrNotLoggedIn
	}

	tf.Account = email

	return tokenfile.Save(s.tokenPath, tf)
}

// loadSaved returns the saved token file, or nil when it is absent or
// unreadable. A corrupt file is treated as absent so a new login can
// overwrite it.
func (s *Store) loadSaved() *tokenfile.File {
	tf, err := tokenfile.Load(s.tokenPath)
	if err != nil {
		s.logger.Warn("ignoring unreadable token file",
			slog.String("path", s.tokenPath),
			slog.String("error", err.Error()),
		)

		return nil
	}

	if tf == nil {
		s.logger.Debug("no saved token", slog.String("path", s.tokenPath))
	}

	return tf
}

// refresh exchanges a refresh token for a new access token. The empty
// access token forces oauth2 to hit the token endpoint.
func (s *Store) refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	s.logger.Info("refreshing access token")

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("auth: refresh grant: %w", err)
	}

	s.logger.Info("token refreshed", slog.Time("expiry", tok.Expiry))

	return tok, nil
}

func (s *Store) persist(tok *oauth2.Token, account string) (*Credential, error) {
	tf := &tokenfile.File{Token: tok, Scopes: s.scopes, Account: account}

	if err := tokenfile.Save(s.tokenPath, tf); err != nil {
		return nil, fmt.Errorf("auth: saving token: %w", err)
	}

	s.logger.Info("persisted token",
		slog.String("path", s.tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return s.credential(tok), nil
}

func (s *Store) credential(tok *oauth2.Token) *Credential {
	return &Credential{token: tok, scopes: s.scopes, now: s.now}
}
