package auth

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Keys the tokens are kept under in the secure store.
const (
	KeyAccessToken  = "kc_access_token"
	KeyRefreshToken = "kc_refresh_token"
	KeyIDToken      = "kc_id_token"
)

const mockAccessToken = "mock-access-token"

// Session holds the signed-in user's tokens and profile.
type Session struct {
	kv     cache.KV
	logger *zap.Logger

	mu        sync.RWMutex
	tokens    models.Tokens
	user      *models.UserInfo
	listeners []func(authenticated bool)
}

func NewSession(kv cache.KV, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{kv: kv, logger: logger}
}

// Subscribe registers fn to be told whenever the user signs in or out.
func (s *Session) Subscribe(fn func(authenticated bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken != ""
}

func (s *Session) Tokens() models.Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// User returns the profile of the signed-in user, if known.
func (s *Session) User() (models.UserInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.UserInfo{}, false
	}
	return *s.user, true
}

// Restore loads tokens saved by an earlier login.
func (s *Session) Restore(ctx context.Context) error {
	access, found, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		return err
	}
	if !found || access == "" {
		return nil
	}

	tokens := models.Tokens{AccessToken: access}
	tokens.RefreshToken, _, err = s.kv.Get(ctx, KeyRefreshToken)
	if err != nil {
		return err
	}
	tokens.IDToken, _, err = s.kv.Get(ctx, KeyIDToken)
	if err != nil {
		return err
	}

	s.set(tokens, DecodeUserInfo(access))
	return nil
}

// Login stores tokens issued by the backend or the identity provider.
func (s *Session) Login(ctx context.Context, tokens models.Tokens) error {
	if err := s.kv.Set(ctx, KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if tokens.RefreshToken != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, tokens.RefreshToken); err != nil {
			return err
		}
	}
	if tokens.IDToken != "" {
		if err := s.kv.Set(ctx, KeyIDToken, tokens.IDToken); err != nil {
			return err
		}
	}

	s.set(tokens, DecodeUserInfo(tokens.AccessToken))
	return nil
}

// MockLogin signs in as email without any backend, for development and demos.
func (s *Session) MockLogin(ctx context.Context, email string) error {
	if err := s.kv.Set(ctx, KeyAccessToken, mockAccessToken); err != nil {
		return err
	}

	local := strings.SplitN(email, "@", 2)[0]
	s.set(models.Tokens{AccessToken: mockAccessToken}, &models.UserInfo{
		Sub:               "mock-user-id",
		PreferredUsername: local,
		Email:             email,
		Name:              DisplayName(local),
	})
	return nil
}

// Logout forgets the user locally and in the secure store.
func (s *Session) Logout(ctx context.Context) error {
	s.set(models.Tokens{}, nil)

	var err error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyIDToken} {
		err = multierr.Append(err, s.kv.Delete(ctx, key))
	}
	return err
}

func (s *Session) set(tokens models.Tokens, user *models.UserInfo) {
	s.mu.Lock()
	was := s.tokens.AccessToken != ""
	s.tokens = tokens
	s.user = user
	now := s.tokens.AccessToken != ""
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if was == now {
		return
	}
	s.logger.Info("Authentication changed", zap.Bool("authenticated", now))
	for _, fn := range listeners {
		fn(now)
	}
}

// DecodeUserInfo reads the profile claims of a JWT without verifying it.
// Tokens that are not JWTs yield nil.
func DecodeUserInfo(token string) *models.UserInfo {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	return &models.UserInfo{
		Sub:               str("sub"),
		PreferredUsername: str("preferred_username"),
		Email:             str("email"),
		Name:              str("name"),
	}
}

var wordStart = regexp.MustCompile(`\b\w`)

// DisplayName turns the local part of an address into a name:
// "jane.doe" becomes "Jane Doe".
func DisplayName(local string) string {
	spaced := strings.NewReplacer(".", " ", "_", " ").Replace(local)
	return wordStart.ReplaceAllStringFunc(spaced, strings.ToUpper)
}
