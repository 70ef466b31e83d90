package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RichardoC/aip-chat/internal/app"
	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/gateway"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/RichardoC/aip-chat/internal/transport"
	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line, cmd, arg string
	}{
		{"hello there", "", ""},
		{"/new", "new", ""},
		{"/open 2", "open", "2"},
		{"/DELETE  3 ", "delete", "3"},
		{"/", "help", ""},
	}
	for _, tt := range tests {
		cmd, arg := parseCommand(tt.line)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)", tt.line, cmd, arg, tt.cmd, tt.arg)
		}
	}
}

func TestPick(t *testing.T) {
	chats := []models.Chat{{ID: "a"}, {ID: "b"}}

	if c, err := pick(chats, "2"); err != nil || c.ID != "b" {
		t.Errorf("expected second chat, got %+v err=%v", c, err)
	}
	for _, arg := range []string{"0", "3", "x", ""} {
		if _, err := pick(chats, arg); err != errNoSuchChat {
			t.Errorf("pick(%q): expected errNoSuchChat, got %v", arg, err)
		}
	}
}

func TestChatLoopOffline(t *testing.T) {
	color.NoColor = true

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := app.New(app.Deps{
		Cache:      cache.NewMemoryKV(),
		Secure:     cache.NewMemoryKV(),
		Client:     transport.New(url, time.Second),
		ChatDelays: gateway.Delays{SendMessage: 10 * time.Millisecond},
		Logger:     zaptest.NewLogger(t),
	})
	ctx := context.Background()
	if err := a.Auth().MockLogin(ctx, "jane.doe@example.com"); err != nil {
		t.Fatalf("login: %v", err)
	}

	input := strings.Join([]string{
		"What is a patent?",
		"/list",
		"/close",
		"/open 1",
		"/bogus",
		"/quit",
	}, "\n")
	var out bytes.Buffer
	r := newREPL(a, bufio.NewScanner(strings.NewReader(input)), &out)

	if loggedOut := r.chatLoop(ctx); loggedOut {
		t.Errorf("quit should not report a sign-out")
	}

	got := out.String()
	for _, want := range []string{
		"Welcome, Jane Doe.",
		"AIP Genius: ",
		"1. What is a patent?",
		"Unknown command /bogus",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	chats := a.Chat().Chats()
	if len(chats) != 1 || len(chats[0].Messages) != 2 {
		t.Fatalf("expected one chat with an exchange, got %+v", chats)
	}
}

func TestChatLoopLogout(t *testing.T) {
	color.NoColor = true

	a := app.New(app.Deps{
		Cache:  cache.NewMemoryKV(),
		Secure: cache.NewMemoryKV(),
		Client: transport.New("http://127.0.0.1:1", time.Second),
		Logger: zaptest.NewLogger(t),
	})
	ctx := context.Background()
	if err := a.Auth().MockLogin(ctx, "jane@example.com"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var out bytes.Buffer
	r := newREPL(a, bufio.NewScanner(strings.NewReader("/logout\n")), &out)
	if !r.chatLoop(ctx) {
		t.Errorf("expected sign-out to be reported")
	}
	if a.Auth().IsAuthenticated() || a.Chat() != nil {
		t.Errorf("expected signed out app")
	}
}

func TestChatLoopLogoutPrintsKeycloakSignOut(t *testing.T) {
	color.NoColor = true

	a := app.New(app.Deps{
		Cache:  cache.NewMemoryKV(),
		Secure: cache.NewMemoryKV(),
		Client: transport.New("http://127.0.0.1:1", time.Second),
		OIDC:   auth.NewOIDC(auth.KeycloakConfig{URL: "http://kc.local", Realm: "r", RedirectURL: "http://localhost:8765/callback"}),
		Logger: zaptest.NewLogger(t),
	})
	ctx := context.Background()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "http://kc.local/realms/r"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := a.Auth().Login(ctx, models.Tokens{AccessToken: "access", IDToken: idToken}); err != nil {
		t.Fatalf("login: %v", err)
	}

	var out bytes.Buffer
	r := newREPL(a, bufio.NewScanner(strings.NewReader("/logout\n")), &out)
	if !r.chatLoop(ctx) {
		t.Fatalf("expected sign-out to be reported")
	}
	if !strings.Contains(out.String(), "http://kc.local/realms/r/protocol/openid-connect/logout?id_token_hint=") {
		t.Errorf("expected Keycloak sign-out URL in output:\n%s", out.String())
	}
}
