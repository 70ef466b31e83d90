package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/transport"
	"go.uber.org/zap/zaptest"
)

func fastDelays() Delays {
	return Delays{
		VerifyEmail: time.Millisecond,
		SubmitOTP:   time.Millisecond,
		MagicLink:   time.Millisecond,
		SignUp:      time.Millisecond,
	}
}

func offlineGateway(t *testing.T) *Gateway {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return NewGateway(transport.New(url, time.Second), fastDelays(), zaptest.NewLogger(t))
}

// fakeBackend answers the auth endpoints; the magic link opens after
// pendingPolls status checks.
type fakeBackend struct {
	pendingPolls int
	polls        int
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/verify-email", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		resp := VerifyEmailResponse{Exists: req.Email == "jane@example.com"}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			json.NewEncoder(w).Encode(SubmitOTPResponse{Message: "That code has expired."})
			return
		}
		json.NewEncoder(w).Encode(SubmitOTPResponse{Success: true, SessionID: "ml-1"})
	})
	mux.HandleFunc("GET /auth/magic-link-status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionId") != "ml-1" || r.URL.Query().Get("email") != "jane@example.com" {
			t.Errorf("unexpected poll query %q", r.URL.RawQuery)
		}
		b.polls++
		if b.polls <= b.pendingPolls {
			json.NewEncoder(w).Encode(MagicLinkStatusResponse{Status: MagicLinkPending})
			return
		}
		json.NewEncoder(w).Encode(MagicLinkStatusResponse{Status: MagicLinkAuthenticated, AccessToken: "access", RefreshToken: "refresh"})
	})
	return mux
}

func TestFlow_EmailOTPMagicLink(t *testing.T) {
	backend := &fakeBackend{pendingPolls: 2}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	ctx := context.Background()
	session := NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t))
	gw := NewGateway(transport.New(srv.URL, time.Second), fastDelays(), zaptest.NewLogger(t))
	f := NewFlow(gw, session, zaptest.NewLogger(t))

	if r := f.SubmitEmail(ctx, "nobody@example.com"); r.OK || r.Message != msgUnknownEmail {
		t.Fatalf("expected unknown email, got %+v", r)
	}
	if r := f.SubmitEmail(ctx, " Jane@Example.com "); !r.OK {
		t.Fatalf("expected email accepted, got %+v", r)
	}
	if f.Step() != StepOTP || f.Email() != "jane@example.com" {
		t.Fatalf("unexpected state %s %q", f.Step(), f.Email())
	}

	if r := f.SubmitCode(ctx, "12"); r.OK || r.Message != msgIncompleteCode {
		t.Fatalf("expected incomplete code, got %+v", r)
	}
	if r := f.SubmitCode(ctx, "654321"); r.OK || r.Message != "That code has expired." {
		t.Fatalf("expected backend message, got %+v", r)
	}
	if r := f.SubmitCode(ctx, "123456"); !r.OK {
		t.Fatalf("expected code accepted, got %+v", r)
	}

	if err := f.PollMagicLink(ctx, time.Millisecond); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if backend.polls != 3 {
		t.Errorf("expected 3 polls, got %d", backend.polls)
	}
	if f.Step() != StepAuthenticated || !session.IsAuthenticated() {
		t.Fatalf("expected authenticated session")
	}
}

func TestFlow_OfflineFallbacks(t *testing.T) {
	ctx := context.Background()
	session := NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t))
	f := NewFlow(offlineGateway(t), session, zaptest.NewLogger(t))
	f.resendDelay = time.Millisecond

	if r := f.SubmitEmail(ctx, "jane@example.com"); !r.OK {
		t.Fatalf("offline email check should succeed, got %+v", r)
	}
	if r := f.SubmitCode(ctx, "000000"); !r.OK {
		t.Fatalf("offline code check should accept 6 digits, got %+v", r)
	}

	done, err := f.CheckMagicLink(ctx)
	if err != nil || done {
		t.Fatalf("offline magic link should stay pending, got done=%v err=%v", done, err)
	}

	if err := f.SendAgain(ctx); err != nil {
		t.Fatalf("send again: %v", err)
	}
	if !session.IsAuthenticated() || f.Step() != StepAuthenticated {
		t.Fatalf("send again should sign in locally")
	}
	if user, _ := session.User(); user.Email != "jane@example.com" {
		t.Errorf("unexpected user %+v", user)
	}
}

func TestFlow_SignUp(t *testing.T) {
	ctx := context.Background()
	f := NewFlow(offlineGateway(t), NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t)), zaptest.NewLogger(t))

	if r := f.SubmitSignUp(ctx, SignUpRequest{}); r.OK {
		t.Fatalf("sign-up outside the form should fail")
	}

	f.StartSignUp()
	if r := f.SubmitSignUp(ctx, SignUpRequest{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Company: "Acme"}); r.OK || r.Message != msgAgreement {
		t.Fatalf("expected agreement error, got %+v", r)
	}

	r := f.SubmitSignUp(ctx, SignUpRequest{
		FirstName:         "Jane",
		LastName:          "Doe",
		Email:             "Jane@Example.com",
		Company:           "Acme",
		AcceptedAgreement: true,
	})
	if !r.OK {
		t.Fatalf("expected sign-up accepted, got %+v", r)
	}
	if f.Step() != StepVerifyEmail || f.Email() != "jane@example.com" {
		t.Fatalf("unexpected state %s %q", f.Step(), f.Email())
	}

	f.Back()
	if f.Step() != StepSignUp {
		t.Errorf("back from verify email should return to the form, got %s", f.Step())
	}
}

func TestFlow_WrongStep(t *testing.T) {
	f := NewFlow(offlineGateway(t), NewSession(cache.NewMemoryKV(), zaptest.NewLogger(t)), zaptest.NewLogger(t))

	if r := f.SubmitCode(context.Background(), "123456"); r.OK {
		t.Errorf("code before email should fail")
	}
	if _, err := f.CheckMagicLink(context.Background()); err != ErrWrongStep {
		t.Errorf("expected ErrWrongStep, got %v", err)
	}
	if err := f.SendAgain(context.Background()); err != ErrWrongStep {
		t.Errorf("expected ErrWrongStep, got %v", err)
	}
}
