package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/db"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const msgNotRegistered = "This email is not registered with AIP Genius."

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail reports whether the address is registered.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if res := auth.ValidateEmail(email); !res.OK {
		writeJSON(w, http.StatusOK, auth.VerifyEmailResponse{Message: res.Message})
		return
	}

	exists, err := h.db.UserExists(r.Context(), email)
	if err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, auth.VerifyEmailResponse{Exists: exists})
}

// VerifyOTP accepts any 6-digit code for a registered user and sends a
// magic link.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if res := auth.ValidateCode(req.Code); !res.OK {
		writeJSON(w, http.StatusOK, auth.SubmitOTPResponse{Message: res.Message})
		return
	}

	exists, err := h.db.UserExists(r.Context(), email)
	if err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}
	if !exists {
		writeJSON(w, http.StatusOK, auth.SubmitOTPResponse{Message: msgNotRegistered})
		return
	}

	sessionID, err := h.sendMagicLink(r, email)
	if err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, auth.SubmitOTPResponse{Success: true, SessionID: sessionID})
}

// MagicLinkStatus returns tokens once the link has been confirmed.
func (h *Handler) MagicLinkStatus(w http.ResponseWriter, r *http.Request) {
	email := auth.NormalizeEmail(r.URL.Query().Get("email"))
	sessionID := r.URL.Query().Get("sessionId")

	ml, err := h.db.GetMagicLink(r.Context(), sessionID)
	if err == nil && ml.Email != email {
		err = db.ErrNotFound
	}
	if err != nil {
		h.handleDBError(w, r, err, "Magic link not found")
		return
	}

	if !ml.Confirmed {
		writeJSON(w, http.StatusOK, auth.MagicLinkStatusResponse{Status: auth.MagicLinkPending})
		return
	}

	user, err := h.db.GetUser(r.Context(), email)
	if err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}
	tokens, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue tokens", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue tokens", r))
		return
	}
	writeJSON(w, http.StatusOK, auth.MagicLinkStatusResponse{
		Status:       auth.MagicLinkAuthenticated,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
	})
}

// ConfirmMagicLink stands in for the user opening the emailed link.
func (h *Handler) ConfirmMagicLink(w http.ResponseWriter, r *http.Request) {
	ml, err := h.db.ConfirmMagicLink(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.handleDBError(w, r, err, "Magic link not found")
		return
	}

	h.logger.Info("Magic link confirmed", zap.String("email", ml.Email))
	writeJSON(w, http.StatusOK, auth.MagicLinkStatusResponse{Status: auth.MagicLinkAuthenticated})
}

// SignUp registers an account and sends the verification link.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req = auth.NormalizeSignUp(req)
	// The agreement is accepted on the device and never sent.
	req.AcceptedAgreement = true
	if res := auth.ValidateSignUp(req); !res.OK {
		writeJSON(w, http.StatusOK, auth.SignUpResponse{Message: res.Message})
		return
	}

	err := h.db.CreateUser(r.Context(), db.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserType:  req.UserType,
		Company:   req.Company,
		CreatedAt: models.Now(),
	})
	if err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}
	if _, err := h.sendMagicLink(r, req.Email); err != nil {
		h.handleDBError(w, r, err, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, auth.SignUpResponse{Success: true})
}

// SeedUsers registers emails that may sign in without signing up. Existing
// accounts are left alone.
func (h *Handler) SeedUsers(ctx context.Context, emails []string) error {
	var err error
	for _, e := range emails {
		email := auth.NormalizeEmail(e)
		if email == "" {
			continue
		}
		exists, existsErr := h.db.UserExists(ctx, email)
		if existsErr != nil || exists {
			err = multierr.Append(err, existsErr)
			continue
		}
		err = multierr.Append(err, h.db.CreateUser(ctx, db.User{Email: email, Verified: true, CreatedAt: models.Now()}))
	}
	return err
}

// sendMagicLink records a link for email. There is no mail delivery; the
// confirm URL is logged instead.
func (h *Handler) sendMagicLink(r *http.Request, email string) (string, error) {
	sessionID := models.NewID()
	if err := h.db.CreateMagicLink(r.Context(), sessionID, email, models.Now()); err != nil {
		return "", err
	}

	h.logger.Info("Magic link sent",
		zap.String("email", email),
		zap.String("confirm", "POST /auth/magic-link/"+sessionID+"/confirm"))
	return sessionID, nil
}
