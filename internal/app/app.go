// Package app owns the pieces a signed-in client needs and ties the chat
// session to the authentication lifecycle.
package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/chat"
	"github.com/RichardoC/aip-chat/internal/config"
	"github.com/RichardoC/aip-chat/internal/gateway"
	"github.com/RichardoC/aip-chat/internal/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const loadTimeout = 10 * time.Second

// Deps are the collaborators an App is built from.
type Deps struct {
	// Cache holds the chat history.
	Cache cache.KV
	// Secure holds the auth tokens.
	Secure     cache.KV
	Client     *transport.Client
	ChatDelays gateway.Delays
	AuthDelays auth.Delays
	// OIDC, when set, is used to end identity provider sessions on logout.
	OIDC   *auth.OIDC
	Logger *zap.Logger
}

type App struct {
	deps  Deps
	store *cache.Store
	gw    gateway.Gateway
	auth  *auth.Session
	flow  *auth.Flow

	mu   sync.RWMutex
	chat *chat.Session
}

func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	a := &App{
		deps:  d,
		store: cache.NewStore(d.Cache, d.Logger),
		gw:    gateway.NewHTTPGateway(d.Client, d.ChatDelays, d.Logger),
		auth:  auth.NewSession(d.Secure, d.Logger),
	}
	a.flow = auth.NewFlow(auth.NewGateway(d.Client, d.AuthDelays, d.Logger), a.auth, d.Logger)
	a.auth.Subscribe(a.onAuthChange)
	return a
}

// Open builds an App from configuration. Tokens are kept in a file store
// under the cache directory regardless of the chat cache backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	chats, err := cache.Open(ctx, cache.Options{
		Backend:    cfg.CacheBackend,
		Dir:        cfg.CacheDir,
		SQLitePath: cfg.CacheSQLitePath,
		RedisURL:   cfg.RedisURL,
	})
	if err != nil {
		return nil, err
	}

	secure, err := cache.NewFileKV(filepath.Join(cfg.CacheDir, "secure"))
	if err != nil {
		return nil, multierr.Append(err, chats.Close())
	}

	return New(Deps{
		Cache:      chats,
		Secure:     secure,
		Client:     transport.New(cfg.APIBaseURL, cfg.HTTPTimeout),
		ChatDelays: gateway.DefaultDelays(),
		AuthDelays: auth.DefaultDelays(),
		OIDC: auth.NewOIDC(auth.KeycloakConfig{
			URL:         cfg.KeycloakURL,
			Realm:       cfg.KeycloakRealm,
			ClientID:    cfg.KeycloakClientID,
			RedirectURL: cfg.KeycloakRedirectURL,
		}),
		Logger: logger,
	}), nil
}

// Start restores a previous sign-in, which also loads the cached chats.
func (a *App) Start(ctx context.Context) error {
	return a.auth.Restore(ctx)
}

func (a *App) Auth() *auth.Session { return a.auth }

// OIDC is the Keycloak client, or nil when none is configured.
func (a *App) OIDC() *auth.OIDC { return a.deps.OIDC }

// Flow is the sign-in flow for the current login attempt.
func (a *App) Flow() *auth.Flow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.flow
}

// Chat returns the session of the signed-in user, or nil when signed out.
func (a *App) Chat() *chat.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chat
}

// Gateway exposes the remote chat API for direct queries.
func (a *App) Gateway() gateway.Gateway { return a.gw }

// Logout signs out and starts a fresh sign-in flow. When the session came
// from Keycloak, signOutURL is the page that ends it there as well.
func (a *App) Logout(ctx context.Context) (signOutURL string, err error) {
	if a.deps.OIDC != nil {
		signOutURL, _ = a.deps.OIDC.SignOutURL(a.auth.Tokens().IDToken)
	}

	err = a.auth.Logout(ctx)
	a.mu.Lock()
	a.flow = auth.NewFlow(auth.NewGateway(a.deps.Client, a.deps.AuthDelays, a.deps.Logger), a.auth, a.deps.Logger)
	a.mu.Unlock()
	return signOutURL, err
}

func (a *App) Close() error {
	return multierr.Combine(a.deps.Cache.Close(), a.deps.Secure.Close())
}

func (a *App) onAuthChange(authenticated bool) {
	a.mu.Lock()
	old := a.chat
	a.chat = nil
	if authenticated {
		a.chat = chat.NewSession(a.store, a.gw, a.deps.Logger)
	}
	next := a.chat
	a.mu.Unlock()

	if old != nil {
		old.Reset()
	}
	if next != nil {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		next.Load(ctx)
	}
}
