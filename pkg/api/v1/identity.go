package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/ssobridge/ssobridge/pkg/api/errors"
	"github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/identity"
)

// Directory is the identity directory served over REST.
type Directory interface {
	identity.Provider
	Authenticate(ctx context.Context) identity.AuthenticationResult
}

// IdentityRoutes defines the routes for the read-only identity directory.
type IdentityRoutes struct {
	directory Directory
}

// IdentityRouter creates the identity directory routes.
func IdentityRouter(directory Directory) http.Handler {
	routes := IdentityRoutes{directory: directory}

	r := chi.NewRouter()
	r.Get("/identity/current", apierrors.ErrorHandler(routes.getCurrentIdentity))
	r.Post("/identity/verify", apierrors.ErrorHandler(routes.verifyUser))

	r.Get("/user", apierrors.ErrorHandler(routes.listUsers))
	r.Get("/user/count", apierrors.ErrorHandler(routes.countUsers))
	r.Get("/user/{id}/profile", apierrors.ErrorHandler(routes.getUserProfile))

	r.Get("/group", apierrors.ErrorHandler(routes.listGroups))
	r.Get("/group/count", apierrors.ErrorHandler(routes.countGroups))
	r.Get("/group/{id}", apierrors.ErrorHandler(routes.getGroup))

	r.Get("/tenant", apierrors.ErrorHandler(routes.listTenants))
	r.Get("/tenant/count", apierrors.ErrorHandler(routes.countTenants))
	r.Get("/tenant/{id}", apierrors.ErrorHandler(routes.getTenant))

	return r
}

type countResponse struct {
	Count int64 `json:"count"`
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Authenticated     bool   `json:"authenticated"`
	AuthenticatedUser string `json:"authenticatedUser,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return errors.NewInternalError("failed to marshal response", err)
	}
	return nil
}

func (s *IdentityRoutes) getCurrentIdentity(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, s.directory.Authenticate(r.Context()))
}

// verifyUser answers password checks. Credentials are held by the identity
// provider, so no password ever verifies here.
func (s *IdentityRoutes) verifyUser(w http.ResponseWriter, r *http.Request) error {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errors.NewInvalidArgumentError("invalid request body", err)
	}
	if req.Username == "" {
		return errors.NewInvalidArgumentError("username is required", nil)
	}

	resp := verifyResponse{Authenticated: s.directory.CheckPassword(r.Context(), req.Username, req.Password)}
	if resp.Authenticated {
		resp.AuthenticatedUser = req.Username
	}
	return writeJSON(w, resp)
}

func (s *IdentityRoutes) listUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := s.directory.CreateUserQuery().List(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, users)
}

func (s *IdentityRoutes) countUsers(w http.ResponseWriter, r *http.Request) error {
	n, err := s.directory.CreateUserQuery().Count(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, countResponse{Count: n})
}

func (s *IdentityRoutes) getUserProfile(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	user, err := s.directory.FindUserByID(r.Context(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError(fmt.Sprintf("user %q not found", id))
	}
	return writeJSON(w, user)
}

func (s *IdentityRoutes) listGroups(w http.ResponseWriter, r *http.Request) error {
	groups, err := s.directory.CreateGroupQuery().List(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, groups)
}

func (s *IdentityRoutes) countGroups(w http.ResponseWriter, r *http.Request) error {
	n, err := s.directory.CreateGroupQuery().Count(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, countResponse{Count: n})
}

func (s *IdentityRoutes) getGroup(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	group, err := s.directory.FindGroupByID(r.Context(), id)
	if err != nil {
		return err
	}
	if group == nil {
		return errors.NewNotFoundError(fmt.Sprintf("group %q not found", id))
	}
	return writeJSON(w, group)
}

func (s *IdentityRoutes) listTenants(w http.ResponseWriter, r *http.Request) error {
	tenants, err := s.directory.CreateTenantQuery().List(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, tenants)
}

func (s *IdentityRoutes) countTenants(w http.ResponseWriter, r *http.Request) error {
	n, err := s.directory.CreateTenantQuery().Count(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, countResponse{Count: n})
}

func (s *IdentityRoutes) getTenant(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	tenant, err := s.directory.FindTenantByID(r.Context(), id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return errors.NewNotFoundError(fmt.Sprintf("tenant %q not found", id))
	}
	return writeJSON(w, tenant)
}
