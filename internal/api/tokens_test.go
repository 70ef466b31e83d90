package api

import (
	"testing"
	"time"

	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/db"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	tokens, err := issuer.Issue(db.User{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.IDToken == "" {
		t.Fatalf("expected all tokens, got %+v", tokens)
	}

	claims, err := issuer.verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims["name"] != "Jane Doe" || claims["preferred_username"] != "jane" {
		t.Errorf("unexpected claims %v", claims)
	}

	again, _ := issuer.Issue(db.User{Email: "jane@example.com"})
	if auth.DecodeUserInfo(again.AccessToken).Sub != auth.DecodeUserInfo(tokens.AccessToken).Sub {
		t.Errorf("subject should be stable per email")
	}
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	tokens, _ := issuer.Issue(db.User{Email: "jane@example.com"})

	if _, err := NewTokenIssuer("other").verify(tokens.AccessToken); err == nil {
		t.Errorf("expected signature error")
	}

	issuer.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := issuer.verify(tokens.AccessToken); err == nil {
		t.Errorf("expected expiry error")
	}
}

// verify checks the signature and expiry of a token t minted.
func (t *TokenIssuer) verify(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
