package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// ErrNoToken means no cached sign-in exists yet.
var ErrNoToken = errors.New("no cached Microsoft token; run `toolgate outlook login`")

// TokenCache persists the OAuth token between runs.
type TokenCache interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	// Describe names the cache location for operator messages.
	Describe() string
}

// FileCache stores the token as JSON in a file only the owner can read.
type FileCache struct {
	Path string
}

func (f FileCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	return decodeToken(data)
}

func (f FileCache) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create token cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

func (f FileCache) Describe() string { return "file:" + f.Path }

// KeyringCache stores the token in the OS keyring.
type KeyringCache struct {
	Service string
	User    string
}

func (k KeyringCache) Load() (*oauth2.Token, error) {
	s, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	return decodeToken([]byte(s))
}

func (k KeyringCache) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := keyring.Set(k.Service, k.User, string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (k KeyringCache) Describe() string { return "keyring:" + k.Service + "/" + k.User }

func decodeToken(data []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// AuthConfig configures the device-code sign-in.
type AuthConfig struct {
	TenantID string
	ClientID string
	Scopes   []string
	// Endpoint overrides the Azure AD endpoint derived from TenantID.
	Endpoint *oauth2.Endpoint
}

// Authenticator signs the user in with the device-code flow and hands
// out a refreshing token source backed by a TokenCache.
type Authenticator struct {
	cfg    *oauth2.Config
	cache  TokenCache
	logger *zap.Logger
}

// NewAuthenticator builds an authenticator for a public client
// application; no client secret is used.
func NewAuthenticator(ac AuthConfig, cache TokenCache, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := microsoft.AzureADEndpoint(ac.TenantID)
	if ac.Endpoint != nil {
		endpoint = *ac.Endpoint
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID: ac.ClientID,
			Endpoint: endpoint,
			Scopes:   ac.Scopes,
		},
		cache:  cache,
		logger: logger,
	}
}

// Login runs the device-code flow, writing the sign-in instructions to
// prompt, and caches the resulting token. It blocks until the user
// completes sign-in, the code expires or ctx is cancelled.
func (a *Authenticator) Login(ctx context.Context, prompt io.Writer) (*oauth2.Token, error) {
	da, err := a.cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("start device code flow: %w", err)
	}
	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	fmt.Fprintf(prompt, "To sign in, open %s and enter the code %s\n", uri, da.UserCode)

	tok, err := a.cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device code sign-in: %w", err)
	}
	if err := a.cache.Save(tok); err != nil {
		return nil, err
	}
	a.logger.Info("microsoft sign-in complete", zap.String("cache", a.cache.Describe()))
	return tok, nil
}

// TokenSource returns a source seeded from the cache. ctx is used for
// refresh requests and should outlive individual calls. Refreshed tokens
// are written back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.cache.Load()
	if err != nil {
		return nil, err
	}
	return &persistingSource{
		base:   a.cfg.TokenSource(ctx, tok),
		cache:  a.cache,
		last:   tok.AccessToken,
		logger: a.logger,
	}, nil
}

// persistingSource serializes refreshes and saves each new token.
type persistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	cache  TokenCache
	last   string
	logger *zap.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh Microsoft token (run `toolgate outlook login` to sign in again): %w", err)
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.cache.Save(tok); err != nil {
			p.logger.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}
	return tok, nil
}
