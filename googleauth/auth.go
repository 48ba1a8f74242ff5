// Package googleauth builds the OAuth2 HTTP client shared by the Gmail and
// Sheets gateways. One token covers both scopes.
package googleauth

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"
)

// ErrNoToken means the token file is missing and the auth command must be run.
var ErrNoToken = errors.New("no saved OAuth token, run the auth command first")

// Scopes requested for the single shared token.
var Scopes = []string{gmail.GmailModifyScope, sheets.SpreadsheetsScope}

const authState = "mailsheet-auth"

type Authenticator struct {
	config    *oauth2.Config
	tokenFile string
	log       *zap.Logger
}

// New reads the OAuth client secret at credentialsFile.
func New(credentialsFile, tokenFile string, log *zap.Logger) (*Authenticator, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading client secret file %s", credentialsFile)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, errors.Wrap(err, "parsing client secret file")
	}
	return &Authenticator{config: cfg, tokenFile: tokenFile, log: log}, nil
}

// AuthCodeURL is the consent page the user opens to obtain a code.
func (a *Authenticator) AuthCodeURL() string {
	return a.config.AuthCodeURL(authState, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and saves it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(err, "exchanging authorization code")
	}
	if err := saveToken(a.tokenFile, tok); err != nil {
		return err
	}
	a.log.Info("saved OAuth token", zap.String("path", a.tokenFile))
	return nil
}

// HTTPClient returns a client authorized with the saved token. Refreshed
// tokens are written back to the token file. Refreshes do not depend on ctx
// staying live, so a pass that outlives a cancelled ctx can still renew.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := tokenFromFile(a.tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	src := &persistingSource{
		base: a.config.TokenSource(ctx, tok),
		last: tok,
		path: a.tokenFile,
		log:  a.log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// persistingSource saves the token whenever the underlying source refreshes it.
type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last *oauth2.Token
	path string
	log  *zap.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := saveToken(s.path, tok); err != nil {
			s.log.Warn("could not save refreshed token", zap.Error(err))
		}
		s.last = tok
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, errors.Wrapf(err, "decoding token file %s", path)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrapf(err, "creating token directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrapf(err, "saving oauth token to %s", path)
	}
	defer f.Close()
	return errors.Wrap(json.NewEncoder(f).Encode(tok), "encoding oauth token")
}
