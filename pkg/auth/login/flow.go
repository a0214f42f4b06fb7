package login

import (
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/auth/converter"
	sserrors "github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

// RegistrationParam is the chi URL parameter naming the registration.
const RegistrationParam = "registrationId"

const (
	pendingLoginTTL   = 10 * time.Minute
	maxPendingLogins  = 4096
	defaultLandingURL = "/app/"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type pendingLogin struct {
	registrationID string
	verifier       string
	nonce          string
	target         string
}

// Flow serves the authorization redirect, the code callback and logout, and
// restores logged-in identities from the session cookie.
type Flow struct {
	clients  map[string]*Client
	users    *converter.UserService
	sessions *SessionStore
	pending  *expirable.LRU[string, pendingLogin]
	cookie   CookieConfig
	metrics  *metrics.Metrics
}

// NewFlow creates a Flow for the given clients. m may be nil.
func NewFlow(users *converter.UserService, sessions *SessionStore, cookie CookieConfig, m *metrics.Metrics, clients ...*Client) *Flow {
	f := &Flow{
		clients:  make(map[string]*Client, len(clients)),
		users:    users,
		sessions: sessions,
		pending:  expirable.NewLRU[string, pendingLogin](maxPendingLogins, nil, pendingLoginTTL),
		cookie:   cookie,
		metrics:  m,
	}
	for _, c := range clients {
		f.clients[c.RegistrationID] = c
	}
	return f
}

// AuthorizationPath returns the path that starts a login with registrationID.
func AuthorizationPath(registrationID string) string {
	return AuthorizationPathPrefix + registrationID
}

// Authorize redirects the browser to the provider's authorization endpoint.
// The optional "redirect" query parameter names the local page to return to.
func (f *Flow) Authorize(w http.ResponseWriter, r *http.Request) {
	client, ok := f.clients[chi.URLParam(r, RegistrationParam)]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := uuid.NewString()
	p := pendingLogin{
		registrationID: client.RegistrationID,
		verifier:       oauth2.GenerateVerifier(),
		nonce:          uuid.NewString(),
		target:         safeTarget(r.URL.Query().Get("redirect"), defaultLandingURL),
	}
	f.pending.Add(state, p)

	authURL := client.config(r).AuthCodeURL(state,
		oauth2.S256ChallengeOption(p.verifier),
		oidc.Nonce(p.nonce),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the code exchange, resolves the user from the access
// token and starts a session.
func (f *Flow) Callback(w http.ResponseWriter, r *http.Request) {
	client, ok := f.clients[chi.URLParam(r, RegistrationParam)]
	if !ok {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	if e := query.Get("error"); e != "" {
		logger.Debugw("provider rejected login", "registration", client.RegistrationID,
			"error", e, "description", query.Get("error_description"))
		f.reject(w, http.StatusUnauthorized)
		return
	}

	state := query.Get("state")
	p, ok := f.pending.Get(state)
	f.pending.Remove(state)
	if !ok || p.registrationID != client.RegistrationID {
		logger.Debugw("login callback with unknown state", "registration", client.RegistrationID)
		f.reject(w, http.StatusBadRequest)
		return
	}

	ctx := client.exchangeContext(r.Context())
	token, err := client.config(r).Exchange(ctx, query.Get("code"), oauth2.VerifierOption(p.verifier))
	if err != nil {
		logger.Warnw("authorization code exchange failed", "registration", client.RegistrationID, "error", err)
		f.reject(w, http.StatusUnauthorized)
		return
	}

	identity, err := f.users.LoadUser(r.Context(), converter.UserRequest{
		Registration: converter.Registration{ID: client.RegistrationID, JWKSURL: client.JWKSURL},
		AccessToken:  token.AccessToken,
	})
	if err != nil {
		status := sserrors.HTTPStatus(err)
		logger.Debugw("failed to load user from access token", "registration", client.RegistrationID, "error", err)
		f.reject(w, status)
		return
	}

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := client.verifier.Verify(ctx, rawIDToken)
		if err != nil || idToken.Nonce != p.nonce || idToken.Subject != identity.Subject {
			logger.Debugw("ID token does not match login", "registration", client.RegistrationID, "error", err)
			f.reject(w, http.StatusUnauthorized)
			return
		}
	}

	sessionID := f.sessions.Create(identity)
	http.SetCookie(w, f.sessionCookie(sessionID, f.cookie.MaxAge))
	f.metrics.ObserveAuthentication("login", metrics.OutcomeAuthenticated)
	logger.Infow("user logged in", "registration", client.RegistrationID, "subject", identity.Subject)

	http.Redirect(w, r, p.target, http.StatusFound)
}

// Logout ends the current session and clears the cookie.
func (f *Flow) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(f.cookie.Name); err == nil {
		f.sessions.Delete(c.Value)
	}
	http.SetCookie(w, f.sessionCookie("", -time.Second))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Sessions restores the identity of a logged-in browser into the request
// context. Requests without a live session pass through unchanged.
func (f *Flow) Sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			if c, err := r.Cookie(f.cookie.Name); err == nil {
				if identity, ok := f.sessions.Get(c.Value); ok {
					r = r.WithContext(auth.WithIdentity(r.Context(), identity))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *Flow) reject(w http.ResponseWriter, status int) {
	f.metrics.ObserveAuthentication("login", metrics.OutcomeUnauthenticated)
	http.Error(w, http.StatusText(status), status)
}

func (f *Flow) sessionCookie(value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     f.cookie.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case maxAge < 0:
		c.MaxAge = -1
	case maxAge > 0:
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}
