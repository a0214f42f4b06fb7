// Package api contains the HTTP surface of the bridge: the resource-server
// chain guarding /api and /rest with bearer tokens, and the web application
// chain guarding /app and /lib with a login session and a required role.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/ssobridge/ssobridge/pkg/api/v1"
	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/auth/login"
	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
	bearerRealm              = "ssobridge"
)

// Options wires the bridge's components into the router.
type Options struct {
	Address           string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// TrustForwardedHeaders applies X-Forwarded-Proto and X-Forwarded-Host to
	// the request before any redirect URL is built.
	TrustForwardedHeaders bool

	// WebAppRole is required on /app and /lib.
	WebAppRole string
	// Registration is the login registration unauthenticated browsers are sent to.
	Registration string

	Authenticator auth.Authenticator
	Directory     v1.Directory
	Login         *login.Flow
	Metrics       *metrics.Metrics

	// ResourceMetadata, when set, is served publicly at the RFC 9728 path.
	ResourceMetadata http.Handler

	// WebApp serves /app and /lib once the caller is admitted. When nil, the
	// caller's identity is returned as JSON.
	WebApp http.Handler
}

// NewRouter builds the request routing and security chains.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	if opts.TrustForwardedHeaders {
		r.Use(forwardedHeaders)
	}
	r.Use(preflight)

	// Public
	r.Mount("/health", v1.HealthcheckRouter())
	r.Handle("/metrics", opts.Metrics.Handler())
	if opts.ResourceMetadata != nil {
		r.Handle(auth.WellKnownOAuthResourcePath, opts.ResourceMetadata)
		r.Handle(auth.WellKnownOAuthResourcePath+"/*", opts.ResourceMetadata)
	}

	// Resource server
	r.Group(func(r chi.Router) {
		r.Use(headersMiddleware, auth.BearerMiddleware(opts.Authenticator, bearerRealm, opts.Metrics))
		r.Mount("/api/info", v1.InfoRouter())
		r.Mount("/rest", v1.IdentityRouter(opts.Directory))
	})

	// Web application
	if opts.Login != nil {
		r.Group(func(r chi.Router) {
			r.Use(opts.Login.Sessions)
			r.Get(login.AuthorizationPathPrefix+"{"+login.RegistrationParam+"}", opts.Login.Authorize)
			r.Get(login.CallbackPathPrefix+"{"+login.RegistrationParam+"}", opts.Login.Callback)
			r.HandleFunc("/app/logout", opts.Login.Logout)

			webapp := opts.WebApp
			if webapp == nil {
				webapp = http.HandlerFunc(currentIdentity)
			}
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuthority(opts.WebAppRole, redirectToLogin(opts.Registration), opts.Metrics))
				r.Handle("/app", webapp)
				r.Handle("/app/*", webapp)
				r.Handle("/lib/*", webapp)
			})
		})
	}

	return r
}

// Serve starts the server on opts.Address and serves until ctx is done.
func Serve(ctx context.Context, opts Options) error {
	listener, err := net.Listen("tcp", opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Address, err)
	}
	return serve(ctx, listener, NewRouter(opts), opts)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler, opts Options) error {
	readHeaderTimeout := opts.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = defaultReadHeaderTimeout
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting HTTP server on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Infof("HTTP server stopped")
	return nil
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// preflight answers CORS preflight requests before any security chain runs.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// forwardedHeaders makes the request look the way the client sent it to the
// reverse proxy in front of the bridge.
func forwardedHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
			r.URL.Scheme = proto
		}
		if host := firstValue(r.Header.Get("X-Forwarded-Host")); host != "" {
			r.Host = host
		}
		next.ServeHTTP(w, r)
	})
}

func firstValue(header string) string {
	v, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(v)
}

// redirectToLogin sends the browser to the login registration and back to
// the page it asked for afterwards.
func redirectToLogin(registration string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := login.AuthorizationPath(registration)
		if r.Method == http.MethodGet {
			target += "?redirect=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func currentIdentity(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(identity); err != nil {
		logger.Errorf("Failed to marshal identity: %v", err)
	}
}
