package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie  = "oauth_state"
	schoolCookie = "oauth_school"
	googleIssuer = "https://accounts.google.com"
)

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
	SecureCookies    bool
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

func (g GoogleConfig) oauth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

var errGoogleDisabled = apperr.New(apperr.KindUpstreamFailure, "google_disabled", "Google sign-in is not configured")

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GoogleStart redirects to Google. ?school=<slug> attaches the parent to
// that school on first sign-in.
func (h *Handler) GoogleStart(c *gin.Context) {
	g := h.cfg.Google
	if !g.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errGoogleDisabled.Message, "code": errGoogleDisabled.Code})
		return
	}

	state, err := randomState()
	if err != nil {
		respond.Error(c, "google start", apperr.Internal("generate state", err), false)
		return
	}

	c.SetCookie(stateCookie, state, 300, "/", "", g.SecureCookies, true)
	if slug := c.Query("school"); tenants.ValidSlug(slug) {
		c.SetCookie(schoolCookie, slug, 300, "/", "", g.SecureCookies, true)
	}

	c.Redirect(http.StatusFound, g.oauth().AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (h *Handler) GoogleCallback(c *gin.Context) {
	g := h.cfg.Google
	if !g.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errGoogleDisabled.Message, "code": errGoogleDisabled.Code})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		respond.Invalid(c, "missing code/state")
		return
	}
	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		respond.Invalid(c, "invalid oauth state")
		return
	}

	ctx := c.Request.Context()
	tok, err := g.oauth().Exchange(ctx, code)
	if err != nil {
		respond.Error(c, "google exchange", apperr.Unauthorized("oauth_exchange", "failed to exchange code"), false)
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		respond.Error(c, "google exchange", apperr.Unauthorized("oauth_id_token", "missing id_token"), false)
		return
	}

	claims, err := verifyGoogleIDToken(ctx, g.ClientID, rawIDToken)
	if err != nil {
		respond.Error(c, "google verify", err, false)
		return
	}

	user, err := h.findOrCreateGoogleUser(ctx, claims)
	if err != nil {
		respond.Error(c, "google user", err, false)
		return
	}

	if slug, err := c.Cookie(schoolCookie); err == nil && slug != "" {
		if school, err := h.schools.FindActiveBySlug(ctx, slug); err == nil && school != nil {
			if err := h.users.AddMembership(ctx, user.ID, school.ID); err != nil {
				logger.WithRequest(c).Error("google membership failed", zap.Uint("user_id", user.ID), zap.Error(err))
			}
		}
	}

	tokenString, err := h.token(user)
	if err != nil {
		respond.Error(c, "google token", apperr.Internal("issue token", err), false)
		return
	}

	if g.FrontendRedirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": tokenString})
		return
	}
	c.Redirect(http.StatusFound, g.FrontendRedirect+"?token="+tokenString)
}

type googleIDClaims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func verifyGoogleIDToken(ctx context.Context, clientID, rawIDToken string) (*googleIDClaims, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, apperr.Upstream("init google oidc provider", err)
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid_id_token", "invalid id_token")
	}

	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperr.Unauthorized("invalid_id_token", "failed to decode token claims")
	}
	if claims.Email == "" || claims.Sub == "" {
		return nil, apperr.Unauthorized("invalid_id_token", "token missing required claims")
	}
	return &claims, nil
}

// findOrCreateGoogleUser matches by Google subject, then links by email,
// then creates a parent account.
func (h *Handler) findOrCreateGoogleUser(ctx context.Context, gc *googleIDClaims) (*users.User, error) {
	user, err := h.users.GetByGoogleSub(ctx, gc.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	sub := gc.Sub
	user, err = h.users.GetByEmail(ctx, gc.Email)
	if err == nil {
		if user.GoogleSub == nil {
			user.GoogleSub = &sub
			if err := h.users.Save(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	user = &users.User{
		Name:         firstNonEmpty(gc.GivenName, gc.Name),
		Lastname:     gc.FamilyName,
		Email:        gc.Email,
		AuthProvider: "google",
		GoogleSub:    &sub,
		Role:         users.RoleParent,
	}
	if err := h.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
