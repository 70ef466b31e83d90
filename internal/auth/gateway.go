// Package auth implements the passwordless sign-in flow: email check,
// authenticator code, then a magic link sent by email.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/RichardoC/aip-chat/internal/transport"
	"go.uber.org/zap"
)

type MagicLinkStatus string

const (
	MagicLinkPending       MagicLinkStatus = "pending"
	MagicLinkAuthenticated MagicLinkStatus = "authenticated"
)

type VerifyEmailResponse struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message,omitempty"`
}

type SubmitOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// SessionID identifies the magic link the backend sent on success.
	SessionID string `json:"sessionId,omitempty"`
}

type MagicLinkStatusResponse struct {
	Status       MagicLinkStatus `json:"status"`
	AccessToken  string          `json:"accessToken,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	IDToken      string          `json:"idToken,omitempty"`
}

// Tokens returns the credentials carried by an authenticated status.
func (r MagicLinkStatusResponse) Tokens() models.Tokens {
	return models.Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		IDToken:      r.IDToken,
	}
}

type SignUpRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	Company   string `json:"company"`
	// AcceptedAgreement is checked locally and never sent.
	AcceptedAgreement bool `json:"-"`
}

type SignUpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
}

type submitOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Delays are the simulated latencies used when the backend is unreachable.
type Delays struct {
	VerifyEmail time.Duration
	SubmitOTP   time.Duration
	MagicLink   time.Duration
	SignUp      time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		VerifyEmail: 800 * time.Millisecond,
		SubmitOTP:   time.Second,
		MagicLink:   time.Second,
		SignUp:      time.Second,
	}
}

// Gateway calls the auth endpoints, falling back to a local simulation when
// the backend cannot be reached.
type Gateway struct {
	client *transport.Client
	delays Delays
	logger *zap.Logger
}

func NewGateway(client *transport.Client, delays Delays, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, delays: delays, logger: logger}
}

// VerifyEmail checks whether email belongs to a registered user.
func (g *Gateway) VerifyEmail(ctx context.Context, email string) (VerifyEmailResponse, error) {
	var resp VerifyEmailResponse
	err := g.client.Do(ctx, http.MethodPost, "/auth/verify-email", verifyEmailRequest{Email: email}, &resp)
	if err == nil {
		return resp, nil
	}

	g.fallback("verify_email", err)
	if err := sleep(ctx, g.delays.VerifyEmail); err != nil {
		return VerifyEmailResponse{}, err
	}
	return VerifyEmailResponse{Exists: true}, nil
}

// SubmitOTP checks the authenticator code. On success the backend emails a
// magic link and returns its session id.
func (g *Gateway) SubmitOTP(ctx context.Context, email, code string) (SubmitOTPResponse, error) {
	var resp SubmitOTPResponse
	err := g.client.Do(ctx, http.MethodPost, "/auth/verify-otp", submitOTPRequest{Email: email, Code: code}, &resp)
	if err == nil {
		return resp, nil
	}

	g.fallback("verify_otp", err)
	if err := sleep(ctx, g.delays.SubmitOTP); err != nil {
		return SubmitOTPResponse{}, err
	}
	if len(code) == CodeLength {
		return SubmitOTPResponse{Success: true, SessionID: models.NewID()}, nil
	}
	return SubmitOTPResponse{Success: false, Message: msgInvalidCode}, nil
}

// CheckMagicLinkStatus reports whether the magic link has been opened yet.
func (g *Gateway) CheckMagicLinkStatus(ctx context.Context, email, sessionID string) (MagicLinkStatusResponse, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("sessionId", sessionID)

	var resp MagicLinkStatusResponse
	err := g.client.Do(ctx, http.MethodGet, "/auth/magic-link-status?"+q.Encode(), nil, &resp)
	if err == nil {
		return resp, nil
	}

	g.fallback("magic_link_status", err)
	if err := sleep(ctx, g.delays.MagicLink); err != nil {
		return MagicLinkStatusResponse{}, err
	}
	return MagicLinkStatusResponse{Status: MagicLinkPending}, nil
}

// SignUp registers a new account and triggers the verification email.
func (g *Gateway) SignUp(ctx context.Context, req SignUpRequest) (SignUpResponse, error) {
	var resp SignUpResponse
	err := g.client.Do(ctx, http.MethodPost, "/auth/signup", req, &resp)
	if err == nil {
		return resp, nil
	}

	g.fallback("signup", err)
	if err := sleep(ctx, g.delays.SignUp); err != nil {
		return SignUpResponse{}, err
	}
	return SignUpResponse{Success: true}, nil
}

func (g *Gateway) fallback(op string, err error) {
	g.logger.Warn("Auth backend unavailable, simulating",
		zap.String("op", op),
		zap.Error(err))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
