package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	redirectPath = "/"

	// loopbackGrace bounds both header reads and the final drain.
	loopbackGrace = 5 * time.Second
)

const consentDonePage = `<!doctype html>
<title>classroom-go</title>
<p>classroom-go is signed in. This tab can be closed.</p>
`

// grant is what the redirect delivered: a code, or the reason there is none.
type grant struct {
	code string
	err  error
}

// loopback receives the consent redirect on 127.0.0.1 at an ephemeral
// port. It accepts the first redirect that carries its state and ignores
// the rest.
type loopback struct {
	state string
	port  int
	srv   *http.Server
	done  chan grant
}

func listenLoopback(ctx context.Context) (*loopback, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("auth: opening redirect listener: %w", err)
	}

	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("auth: redirect listener on unexpected address %s", ln.Addr())
	}

	lb := &loopback{
		state: rand.Text(),
		port:  addr.Port,
		done:  make(chan grant, 1),
	}
	lb.srv = &http.Server{Handler: lb, ReadHeaderTimeout: loopbackGrace}

	go func() {
		if err := lb.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			lb.deliver(grant{err: fmt.Errorf("auth: redirect listener stopped: %w", err)})
		}
	}()

	return lb, nil
}

func (lb *loopback) redirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", lb.port, redirectPath)
}

// deliver hands g to wait unless a grant was already delivered.
func (lb *loopback) deliver(g grant) {
	select {
	case lb.done <- g:
	default:
	}
}

func (lb *loopback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != redirectPath {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()

	var g grant

	switch {
	case q.Get("state") != lb.state:
		g.err = errors.New("auth: state mismatch on consent redirect")
	case q.Get("error") != "":
		g.err = fmt.Errorf("auth: consent refused: %s %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		g.err = errors.New("auth: consent redirect carried no code")
	default:
		g.code = q.Get("code")
	}

	if g.err != nil {
		http.Error(w, g.err.Error(), http.StatusBadRequest)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, consentDonePage)
	}

	lb.deliver(g)
}

func (lb *loopback) wait(ctx context.Context) (string, error) {
	select {
	case g := <-lb.done:
		return g.code, g.err
	case <-ctx.Done():
		return "", fmt.Errorf("auth: waiting for consent: %w", ctx.Err())
	}
}

func (lb *loopback) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), loopbackGrace)
	defer cancel()

	if err := lb.srv.Shutdown(ctx); err != nil {
		logger.Debug("redirect listener did not drain", slog.String("error", err.Error()))
	}
}

// authorize sends the user through the consent page and trades the
// returned code for a token, using PKCE. When openURL is nil or fails,
// the consent URL is written to prompt instead.
func authorize(
	ctx context.Context,
	cfg *oauth2.Config,
	openURL func(string) error,
	prompt io.Writer,
	logger *slog.Logger,
) (*oauth2.Token, error) {
	lb, err := listenLoopback(ctx)
	if err != nil {
		return nil, err
	}
	defer lb.close(logger)

	grantCfg := *cfg
	grantCfg.RedirectURL = lb.redirectURL()

	verifier := oauth2.GenerateVerifier()
	consentURL := grantCfg.AuthCodeURL(lb.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	logger.Info("waiting for Google consent", slog.String("redirect", grantCfg.RedirectURL))
	showConsent(consentURL, openURL, prompt, logger)

	code, err := lb.wait(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := grantCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging authorization code: %w", err)
	}

	logger.Info("signed in", slog.Time("token_expiry", tok.Expiry))

	return tok, nil
}

func showConsent(consentURL string, openURL func(string) error, prompt io.Writer, logger *slog.Logger) {
	if openURL != nil {
		err := openURL(consentURL)
		if err == nil {
			return
		}

		logger.Warn("could not open a browser", slog.String("error", err.Error()))
	}

	fmt.Fprintf(prompt, "Visit this URL to grant classroom-go access:\n\n  %s\n\n", consentURL)
}
