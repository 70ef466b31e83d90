package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Step int

const (
	StepEmail Step = iota
	StepOTP
	StepMagicLink
	StepSignUp
	StepVerifyEmail
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepOTP:
		return "otp"
	case StepMagicLink:
		return "magic_link"
	case StepSignUp:
		return "signup"
	case StepVerifyEmail:
		return "verify_email"
	case StepAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrWrongStep is returned when a step is attempted out of order.
var ErrWrongStep = errors.New("auth: step not available")

// resendDelay is how long "send again" waits before the simulated link is
// treated as opened.
const resendDelay = 1500 * time.Millisecond

// Flow walks one user through sign-in:
//
//	email -> otp -> magic link -> authenticated
//	signup -> verify email -> authenticated
type Flow struct {
	gw      *Gateway
	session *Session
	logger  *zap.Logger

	step      Step
	email     string
	sessionID string

	resendDelay time.Duration
}

func NewFlow(gw *Gateway, session *Session, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		gw:          gw,
		session:     session,
		logger:      logger,
		step:        StepEmail,
		resendDelay: resendDelay,
	}
}

func (f *Flow) Step() Step { return f.step }

// Email is the normalised address the flow is signing in.
func (f *Flow) Email() string { return f.email }

// SubmitEmail checks the address and moves on to the code step if it is registered.
func (f *Flow) SubmitEmail(ctx context.Context, email string) Result {
	if f.step != StepEmail {
		return fail(ErrWrongStep.Error())
	}

	email = NormalizeEmail(email)
	if r := ValidateEmail(email); !r.OK {
		return r
	}

	resp, err := f.gw.VerifyEmail(ctx, email)
	if err != nil {
		f.logger.Error("Email check failed", zap.Error(err))
		return fail(msgGeneric)
	}
	if !resp.Exists {
		if resp.Message != "" {
			return fail(resp.Message)
		}
		return fail(msgUnknownEmail)
	}

	f.email = email
	f.step = StepOTP
	return ok()
}

// SubmitCode checks the authenticator code; on success the backend has
// emailed a magic link.
func (f *Flow) SubmitCode(ctx context.Context, code string) Result {
	if f.step != StepOTP {
		return fail(ErrWrongStep.Error())
	}
	if r := ValidateCode(code); !r.OK {
		return r
	}

	resp, err := f.gw.SubmitOTP(ctx, f.email, code)
	if err != nil {
		f.logger.Error("Code check failed", zap.Error(err))
		return fail(msgGeneric)
	}
	if !resp.Success {
		if resp.Message != "" {
			return fail(resp.Message)
		}
		return fail(msgInvalidCode)
	}

	f.sessionID = resp.SessionID
	f.step = StepMagicLink
	return ok()
}

// CheckMagicLink polls once. It signs the user in and returns true once the
// link has been opened.
func (f *Flow) CheckMagicLink(ctx context.Context) (bool, error) {
	if f.step != StepMagicLink {
		return false, ErrWrongStep
	}

	resp, err := f.gw.CheckMagicLinkStatus(ctx, f.email, f.sessionID)
	if err != nil {
		return false, err
	}
	if resp.Status != MagicLinkAuthenticated || resp.AccessToken == "" {
		return false, nil
	}

	if err := f.session.Login(ctx, resp.Tokens()); err != nil {
		return false, err
	}
	f.step = StepAuthenticated
	return true, nil
}

// PollMagicLink calls CheckMagicLink every interval until the link is opened
// or ctx ends.
func (f *Flow) PollMagicLink(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := f.CheckMagicLink(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StartSignUp switches to the registration form.
func (f *Flow) StartSignUp() {
	f.step = StepSignUp
}

// SubmitSignUp validates and sends the registration form.
func (f *Flow) SubmitSignUp(ctx context.Context, req SignUpRequest) Result {
	if f.step != StepSignUp {
		return fail(ErrWrongStep.Error())
	}

	req = NormalizeSignUp(req)
	if r := ValidateSignUp(req); !r.OK {
		return r
	}

	resp, err := f.gw.SignUp(ctx, req)
	if err != nil {
		f.logger.Error("Sign-up failed", zap.Error(err))
		return fail(msgGeneric)
	}
	if !resp.Success {
		if resp.Message != "" {
			return fail(resp.Message)
		}
		return fail(msgGeneric)
	}

	f.email = req.Email
	f.step = StepVerifyEmail
	return ok()
}

// SendAgain re-sends the magic link or verification email. Without a real
// mail round trip the link is treated as opened after a short pause and the
// user is signed in locally.
func (f *Flow) SendAgain(ctx context.Context) error {
	if f.step != StepMagicLink && f.step != StepVerifyEmail {
		return ErrWrongStep
	}
	if err := sleep(ctx, f.resendDelay); err != nil {
		return err
	}
	if err := f.session.MockLogin(ctx, f.email); err != nil {
		return err
	}
	f.step = StepAuthenticated
	return nil
}

// Back returns to the previous screen.
func (f *Flow) Back() {
	switch f.step {
	case StepOTP, StepMagicLink, StepSignUp:
		f.step = StepEmail
		f.sessionID = ""
	case StepVerifyEmail:
		f.step = StepSignUp
	}
}
