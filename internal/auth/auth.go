// Package auth resolves a usable OAuth2 token source for the YouTube Data
// API: load the saved token if its grant still covers the required scopes,
// otherwise run the interactive browser authorization flow and persist the
// result. Token refresh happens silently inside the oauth2 library; the
// refreshed token is written back to disk so the next run skips the flow.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"github.com/ytput/ytput/internal/tokenfile"
)

// RequiredScopes is the full scope set the uploader needs: upload for the
// upload call itself, readonly for listing scheduled videos, and the full
// youtube scope for deleting a partially uploaded video after cancel.
var RequiredScopes = []string{
	youtube.YoutubeScope,
	youtube.YoutubeUploadScope,
	youtube.YoutubeReadonlyScope,
}

// Sentinel errors for the credential lifecycle.
var (
	ErrNotLoggedIn   = errors.New("auth: not logged in")
	ErrScopesChanged = errors.New("auth: saved token does not cover required scopes")
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// LoadClientSecret reads a Google "Desktop app" OAuth client file and builds
// an oauth2.Config for the required scopes. A missing file gets an
// actionable error because obtaining the file is a manual console step.
func LoadClientSecret(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("auth: client secret file not found at %s\n"+
			"Create an OAuth client of type \"Desktop app\" in the Google Cloud console\n"+
			"(APIs & Services > Credentials), enable the YouTube Data API v3, download\n"+
			"the JSON, and save it to the path above", path)
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading client secret %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(data, RequiredScopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing client secret %s: %w", path, err)
	}

	return cfg, nil
}

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// Login performs the authorization code + PKCE flow:
//  1. Binds a localhost HTTP server on a random port
//  2. Opens the browser to Google's authorization endpoint
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens using PKCE
//  5. Saves the token to disk at tokenPath, recording the granted scopes
//  6. Returns a TokenSource for API use
//
// openURL is called with the authorization URL; the CLI uses it to launch
// the default browser. If openURL returns an error, the URL is printed to
// stderr so the user can open it manually.
func Login(
	ctx context.Context,
	secretPath, tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	cfg, err := LoadClientSecret(secretPath)
	if err != nil {
		return nil, err
	}

	return doLogin(ctx, cfg, tokenPath, openURL, logger)
}

// doLogin implements the flow against a pre-built oauth2.Config so tests
// can inject a mock endpoint.
func doLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	logger.Info("starting browser auth flow (authorization code + PKCE)",
		slog.String("path", tokenPath),
	)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	launchBrowser(authURL, openURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	return exchangeAndSave(ctx, cfg, tokenPath, code, verifier, logger)
}

// startCallbackServer binds to 127.0.0.1:0 and starts an HTTP server with
// the given mux. Returns the server, the port, and any error.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("auth: binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("auth: listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Info("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			resultCh <- callbackResult{err: fmt.Errorf("auth: callback server error: %w", serveErr)}
		}
	}()

	return srv, port, nil
}

// registerCallbackHandler adds the callback route to the mux.
// Must be called before the browser redirects back.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

// handleOAuthCallback validates the state, extracts the code, and sends the result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	// Validate state to prevent CSRF.
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("auth: OAuth2 state mismatch (possible CSRF)")}

		return
	}

	// Check for error from the authorization server.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("auth: authorization failed: %s: %s", errParam, desc)}

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("auth: callback missing authorization code")}

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	resultCh <- callbackResult{code: code}
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, prints the URL
// to stderr as a fallback so the user can copy-paste it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("auth: browser auth canceled: %w", ctx.Err())
	}
}

// exchangeAndSave exchanges the auth code for a token and persists it with
// the scope set it was granted for.
func exchangeAndSave(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath, code, verifier string,
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange failed: %w", err)
	}

	logger.Info("token exchange successful", slog.Time("expiry", tok.Expiry))

	tf := &tokenfile.File{Token: tok, Scopes: cfg.Scopes}
	if saveErr := tokenfile.Save(tokenPath, tf); saveErr != nil {
		return nil, fmt.Errorf("auth: saving token: %w", saveErr)
	}

	logger.Info("login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return persistingSource(ctx, cfg, tokenPath, tok, logger), nil
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter. Using crypto/rand prevents CSRF attacks.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// TokenSourceFromPath loads a saved token and returns a TokenSource with
// auto-refresh and auto-persistence. Returns ErrNotLoggedIn if no token file
// exists, and ErrScopesChanged if the saved grant no longer covers
// RequiredScopes — the caller should remove the file and re-run Login.
//
// The returned TokenSource binds ctx to the underlying oauth2 token source.
// ctx must outlive the TokenSource — if ctx is canceled, silent token
// refresh will fail.
func TokenSourceFromPath(
	ctx context.Context,
	secretPath, tokenPath string,
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	tf, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, ErrNotLoggedIn
	}

	if !tf.CoversScopes(RequiredScopes) {
		logger.Warn("saved token scopes are stale, re-login required",
			slog.String("path", tokenPath),
		)

		return nil, ErrScopesChanged
	}

	expired := !tf.Token.Expiry.IsZero() && tf.Token.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tf.Token.Expiry),
		slog.Bool("expired", expired),
	)

	cfg, err := LoadClientSecret(secretPath)
	if err != nil {
		return nil, err
	}

	src := persistingSource(ctx, cfg, tokenPath, tf.Token, logger)

	return src, nil
}

// persistingSource returns a TokenSource that writes silently refreshed
// tokens back to disk, preserving saved scopes and metadata. The oauth2
// library offers no refresh hook, so the wrapper compares the token
// returned by each Token() call against the last one it saw.
func persistingSource(
	ctx context.Context, cfg *oauth2.Config, tokenPath string, tok *oauth2.Token, logger *slog.Logger,
) oauth2.TokenSource {
	return &savingSource{
		src:    cfg.TokenSource(ctx, tok),
		path:   tokenPath,
		logger: logger,
		last:   tok,
	}
}

// savingSource persists token changes surfaced by the wrapped source.
type savingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && tok.AccessToken == s.last.AccessToken && tok.Expiry.Equal(s.last.Expiry) {
		return tok, nil
	}

	s.logger.Info("token refreshed, persisting",
		slog.String("path", s.path),
		slog.Time("new_expiry", tok.Expiry),
	)

	if saveErr := tokenfile.SaveToken(s.path, tok); saveErr != nil {
		s.logger.Warn("failed to persist refreshed token",
			slog.String("path", s.path),
			slog.String("error", saveErr.Error()),
		)
	}

	s.last = tok

	return tok, nil
}

// Logout removes the saved token file at the given path.
// Returns nil if the token file does not exist (already logged out).
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove (already logged out)",
			slog.String("path", tokenPath),
		)

		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("logout: removed token file",
		slog.String("path", tokenPath),
	)

	return nil
}

// ChannelMeta reads the cached channel metadata saved alongside the token.
// Returns nil if no token file exists.
func ChannelMeta(tokenPath string) (map[string]string, error) {
	tf, err := tokenfile.Load(tokenPath)
	if err != nil || tf == nil {
		return nil, err
	}

	return tf.Meta, nil
}

// SaveChannelMeta merges channel metadata into the saved token file.
func SaveChannelMeta(tokenPath string, meta map[string]string) error {
	tf, err := tokenfile.Load(tokenPath)
	if err != nil {
		return err
	}

	if tf == nil {
		return ErrNotLoggedIn
	}

	if tf.Meta == nil {
		tf.Meta = make(map[string]string, len(meta))
	}

	for k, v := range meta {
		tf.Meta[k] = v
	}

	return tokenfile.Save(tokenPath, tf)
}
