package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/RichardoC/aip-chat/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// KeycloakConfig names the realm and public client used for OIDC sign-in.
type KeycloakConfig struct {
	URL         string
	Realm       string
	ClientID    string
	RedirectURL string
}

// Endpoints are the OIDC endpoints of a Keycloak realm.
type Endpoints struct {
	Issuer    string
	Discovery string
	Auth      string
	Token     string
	Logout    string
	UserInfo  string
}

func (c KeycloakConfig) Endpoints() Endpoints {
	base := fmt.Sprintf("%s/realms/%s", strings.TrimRight(c.URL, "/"), c.Realm)
	oidc := base + "/protocol/openid-connect"
	return Endpoints{
		Issuer:    base,
		Discovery: base + "/.well-known/openid-configuration",
		Auth:      oidc + "/auth",
		Token:     oidc + "/token",
		Logout:    oidc + "/logout",
		UserInfo:  oidc + "/userinfo",
	}
}

// OIDC runs the authorization-code flow with PKCE against Keycloak. The
// protocol itself is handled by golang.org/x/oauth2.
type OIDC struct {
	cfg       oauth2.Config
	endpoints Endpoints
}

func NewOIDC(kc KeycloakConfig) *OIDC {
	ep := kc.Endpoints()
	return &OIDC{
		cfg: oauth2.Config{
			ClientID:    kc.ClientID,
			RedirectURL: kc.RedirectURL,
			Scopes:      []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   ep.Auth,
				TokenURL:  ep.Token,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		endpoints: ep,
	}
}

func (o *OIDC) RedirectURL() string { return o.cfg.RedirectURL }

// AuthCodeURL returns the URL to open in a browser and the PKCE verifier
// that must be presented when the code is exchanged.
func (o *OIDC) AuthCodeURL(state string) (authURL, verifier string) {
	verifier = oauth2.GenerateVerifier()
	return o.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), verifier
}

// Exchange trades an authorization code for tokens.
func (o *OIDC) Exchange(ctx context.Context, code, verifier string) (models.Tokens, error) {
	tok, err := o.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return models.Tokens{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	return models.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
	}, nil
}

// LogoutURL is the RP-initiated logout URL for idToken.
func (o *OIDC) LogoutURL(idToken, postLogoutRedirect string) string {
	q := url.Values{}
	q.Set("id_token_hint", idToken)
	q.Set("post_logout_redirect_uri", postLogoutRedirect)
	return o.endpoints.Logout + "?" + q.Encode()
}

// SignOutURL returns the URL that ends the realm session behind idToken.
// ok is false when idToken was not issued by this realm.
func (o *OIDC) SignOutURL(idToken string) (u string, ok bool) {
	if idToken == "" {
		return "", false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return "", false
	}
	if claims.Issuer != o.endpoints.Issuer {
		return "", false
	}
	return o.LogoutURL(idToken, o.cfg.RedirectURL), true
}
