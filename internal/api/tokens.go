package api

import (
	"strings"
	"time"

	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/db"
	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
	issuer     = "aip-chat-mock"
)

// TokenIssuer mints HS256 tokens shaped like the identity provider's, so
// clients can read the same profile claims from them.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// Issue returns access, refresh and id tokens for u.
func (t *TokenIssuer) Issue(u db.User) (models.Tokens, error) {
	now := t.now()
	local := strings.SplitN(u.Email, "@", 2)[0]
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = auth.DisplayName(local)
	}

	profile := jwt.MapClaims{
		"iss":                issuer,
		"sub":                uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+u.Email)).String(),
		"email":              u.Email,
		"preferred_username": local,
		"name":               name,
		"iat":                now.Unix(),
		"exp":                now.Add(accessTTL).Unix(),
	}

	access, err := t.sign(profile)
	if err != nil {
		return models.Tokens{}, err
	}

	id := copyClaims(profile)
	id["typ"] = "ID"
	idToken, err := t.sign(id)
	if err != nil {
		return models.Tokens{}, err
	}

	refresh, err := t.sign(jwt.MapClaims{
		"iss": issuer,
		"sub": profile["sub"],
		"typ": "Refresh",
		"iat": now.Unix(),
		"exp": now.Add(refreshTTL).Unix(),
	})
	if err != nil {
		return models.Tokens{}, err
	}

	return models.Tokens{AccessToken: access, RefreshToken: refresh, IDToken: idToken}, nil
}

func (t *TokenIssuer) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func copyClaims(c jwt.MapClaims) jwt.MapClaims {
	out := make(jwt.MapClaims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
