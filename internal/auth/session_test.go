package auth

import (
	"context"
	"testing"
	"time"

	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestSession_LoginDecodesProfileAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemoryKV()
	s := NewSession(kv, zaptest.NewLogger(t))

	access := signedToken(t, jwt.MapClaims{
		"sub":                "user-1",
		"email":              "jane@example.com",
		"preferred_username": "jane",
		"name":               "Jane Doe",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	if err := s.Login(ctx, models.Tokens{AccessToken: access, RefreshToken: "refresh"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if !s.IsAuthenticated() {
		t.Fatalf("expected authenticated session")
	}
	user, ok := s.User()
	if !ok || user.Sub != "user-1" || user.Name != "Jane Doe" {
		t.Errorf("unexpected profile %+v", user)
	}
	if v, _, _ := kv.Get(ctx, KeyRefreshToken); v != "refresh" {
		t.Errorf("refresh token not persisted")
	}
	if _, found, _ := kv.Get(ctx, KeyIDToken); found {
		t.Errorf("empty id token should not be stored")
	}

	restored := NewSession(kv, zaptest.NewLogger(t))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Tokens().AccessToken != access || restored.Tokens().RefreshToken != "refresh" {
		t.Errorf("tokens not restored: %+v", restored.Tokens())
	}
	if user, ok := restored.User(); !ok || user.Email != "jane@example.com" {
		t.Errorf("profile not restored: %+v", user)
	}
}

func TestSession_MockLogin(t *testing.T) {
	s := NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t))

	if err := s.MockLogin(context.Background(), "jane.doe_smith@example.com"); err != nil {
		t.Fatalf("mock login: %v", err)
	}

	user, ok := s.User()
	if !ok {
		t.Fatalf("expected profile after mock login")
	}
	if user.PreferredUsername != "jane.doe_smith" {
		t.Errorf("Expected username 'jane.doe_smith', got %q", user.PreferredUsername)
	}
	if user.Name != "Jane Doe Smith" {
		t.Errorf("Expected name 'Jane Doe Smith', got %q", user.Name)
	}
	if s.Tokens().AccessToken != mockAccessToken {
		t.Errorf("expected mock access token")
	}
}

func TestSession_LogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemoryKV()
	s := NewSession(kv, zaptest.NewLogger(t))
	s.Login(ctx, models.Tokens{AccessToken: "a", RefreshToken: "r", IDToken: "i"})

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.IsAuthenticated() {
		t.Errorf("still authenticated after logout")
	}
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyIDToken} {
		if _, found, _ := kv.Get(ctx, key); found {
			t.Errorf("%s still stored after logout", key)
		}
	}
}

func TestSession_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t))

	var events []bool
	s.Subscribe(func(authenticated bool) { events = append(events, authenticated) })

	s.MockLogin(ctx, "jane@example.com")
	s.MockLogin(ctx, "jane@example.com")
	s.Logout(ctx)

	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("expected [true false], got %v", events)
	}
}

func TestDecodeUserInfo_NotAJWT(t *testing.T) {
	if u := DecodeUserInfo(mockAccessToken); u != nil {
		t.Errorf("expected nil profile for opaque token, got %+v", u)
	}
}
