package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"harvestdash/internal/config"
	"harvestdash/internal/log"
)

const (
	defaultTokenFile = "token.json"
	authTimeout      = 5 * time.Minute
)

func authCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize read access to Google Sheets and save the OAuth token",
		Long: `Run the installed-app OAuth flow against the client in
GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE. The redirect URI
http://localhost:<port>/callback must be registered on the client. The
token is written to GOOGLE_OAUTH_TOKEN_FILE (token.json by default).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuth(cmd.Context(), cmd, appCfg, appLogger, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	return cmd
}

func oauthClientJSON(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
}

func runAuth(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *log.Logger, port string) error {
	b, err := oauthClientJSON(cfg)
	if err != nil {
		return err
	}
	oc, err := google.ConfigFromJSON(b, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}
	oc.RedirectURL = "http://localhost:" + port + "/callback"

	flow := newOAuthFlow(uuid.NewString())
	mux := http.NewServeMux()
	mux.Handle("/callback", flow)
	srv := &http.Server{
		Addr:              net.JoinHostPort("localhost", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			flow.fail(err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n",
		oc.AuthCodeURL(flow.state, oauth2.AccessTypeOffline))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	code, err := flow.wait(ctx)
	if err != nil {
		return err
	}

	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}

	out := cfg.GoogleOAuthTokenFile
	if out == "" {
		out = defaultTokenFile
	}
	if err := saveToken(out, tok); err != nil {
		return err
	}
	logger.Info("OAuth token saved", "path", out)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", out)
	return nil
}

// oauthFlow receives the redirect carrying the authorization code.
type oauthFlow struct {
	state string
	codes chan string
	errs  chan error
}

func newOAuthFlow(state string) *oauthFlow {
	return &oauthFlow{
		state: state,
		codes: make(chan string, 1),
		errs:  make(chan error, 1),
	}
}

func (f *oauthFlow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
		f.fail(fmt.Errorf("authorization denied: %s", e))
		return
	}
	if q.Get("state") != f.state {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	fmt.Fprintln(w, "You may close this window and return to the terminal.")
	select {
	case f.codes <- code:
	default:
	}
}

func (f *oauthFlow) fail(err error) {
	select {
	case f.errs <- err:
	default:
	}
}

func (f *oauthFlow) wait(ctx context.Context) (string, error) {
	select {
	case code := <-f.codes:
		return code, nil
	case err := <-f.errs:
		return "", err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("authorization timed out")
		}
		return "", ctx.Err()
	}
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
