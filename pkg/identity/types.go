// Package identity implements the workflow engine's identity directory
// contract on top of the authenticated caller's own token claims.
//
// The directory is read-only and holds exactly one user: the caller. Queries
// that would enumerate users, groups or tenants return nothing, and every
// write reports an unsupported operation error.
package identity

import (
	"context"
	"encoding/json"

	"github.com/ssobridge/ssobridge/pkg/errors"
)

// Provider is the identity directory contract consumed by the engine.
type Provider interface {
	FindUserByID(ctx context.Context, userID string) (*User, error)
	CreateUserQuery() UserQuery
	CreateNativeUserQuery() (UserQuery, error)
	CheckPassword(ctx context.Context, userID, password string) bool

	FindGroupByID(ctx context.Context, groupID string) (*Group, error)
	CreateGroupQuery() GroupQuery

	FindTenantByID(ctx context.Context, tenantID string) (*Tenant, error)
	CreateTenantQuery() TenantQuery
}

// UserQuery filters users. Filters only narrow the result.
type UserQuery interface {
	UserID(id string) UserQuery
	UserIDIn(ids ...string) UserQuery
	FirstName(name string) UserQuery
	LastName(name string) UserQuery
	Email(email string) UserQuery
	MemberOfGroup(groupID string) UserQuery
	MemberOfTenant(tenantID string) UserQuery

	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]*User, error)
	// SingleResult returns nil, nil when no user matches.
	SingleResult(ctx context.Context) (*User, error)
}

// GroupQuery filters groups.
type GroupQuery interface {
	GroupID(id string) GroupQuery
	GroupMember(userID string) GroupQuery
	MemberOfTenant(tenantID string) GroupQuery

	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]*Group, error)
	SingleResult(ctx context.Context) (*Group, error)
}

// TenantQuery filters tenants.
type TenantQuery interface {
	TenantID(id string) TenantQuery
	UserMember(userID string) TenantQuery
	GroupMember(groupID string) TenantQuery

	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]*Tenant, error)
	SingleResult(ctx context.Context) (*Tenant, error)
}

// User is a read-only view of a directory user.
type User struct {
	id        string
	firstName string
	lastName  string
	email     string
}

// ID returns the user's identifier.
func (u *User) ID() string { return u.id }

// FirstName returns the user's first name.
func (u *User) FirstName() string { return u.firstName }

// LastName returns the user's last name.
func (u *User) LastName() string { return u.lastName }

// Email returns the user's email address.
func (u *User) Email() string { return u.email }

// Password is never available.
func (*User) Password() (string, error) {
	return "", errors.NewUnsupportedOperationError("the identity provider does not expose passwords")
}

// SetID always fails; users are read-only.
func (*User) SetID(string) error { return readOnly() }

// SetFirstName always fails; users are read-only.
func (*User) SetFirstName(string) error { return readOnly() }

// SetLastName always fails; users are read-only.
func (*User) SetLastName(string) error { return readOnly() }

// SetEmail always fails; users are read-only.
func (*User) SetEmail(string) error { return readOnly() }

// SetPassword always fails; users are read-only.
func (*User) SetPassword(string) error { return readOnly() }

func readOnly() error {
	return errors.NewUnsupportedOperationError("can't change user attributes")
}

// MarshalJSON writes the user in the engine's REST representation.
func (u *User) MarshalJSON() ([]byte, error) {
	if u == nil {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}{u.id, u.firstName, u.lastName, u.email})
}

// Group is a directory group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Tenant is a directory tenant.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthenticationResult is what the engine needs to authorize a request.
type AuthenticationResult struct {
	Authenticated bool     `json:"authenticated"`
	UserID        string   `json:"userId,omitempty"`
	Groups        []string `json:"groups"`
	Tenants       []string `json:"tenants"`
}
