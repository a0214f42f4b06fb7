package identity

import (
	"context"
	"slices"

	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/auth/authority"
	"github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/logger"
)

// Claims a principal is built from.
const (
	SubjectClaim    = "sub"
	GivenNameClaim  = "given_name"
	FamilyNameClaim = "family_name"
	EmailClaim      = "email"
)

// ReadOnlyProvider answers directory queries from the identity stored in the
// request context. It holds no state; every call re-reads the context.
type ReadOnlyProvider struct{}

var _ Provider = ReadOnlyProvider{}

// NewReadOnlyProvider creates a ReadOnlyProvider.
func NewReadOnlyProvider() ReadOnlyProvider {
	return ReadOnlyProvider{}
}

// FindUserByID returns the caller if its identifier is userID, and nil otherwise.
func (p ReadOnlyProvider) FindUserByID(ctx context.Context, userID string) (*User, error) {
	return p.CreateUserQuery().UserID(userID).SingleResult(ctx)
}

// CreateUserQuery returns a query that can only ever resolve the caller.
func (ReadOnlyProvider) CreateUserQuery() UserQuery {
	return &userQuery{}
}

// CreateNativeUserQuery is not supported.
func (ReadOnlyProvider) CreateNativeUserQuery() (UserQuery, error) {
	return nil, errors.NewUnsupportedOperationError("native user queries are not supported")
}

// CheckPassword always reports false; passwords are never verified here.
func (ReadOnlyProvider) CheckPassword(_ context.Context, userID, _ string) bool {
	logger.Debugw("password check refused by read-only identity provider", "user", userID)
	return false
}

// FindGroupByID never finds a group.
func (ReadOnlyProvider) FindGroupByID(context.Context, string) (*Group, error) {
	return nil, nil
}

// CreateGroupQuery returns a query with no results.
func (ReadOnlyProvider) CreateGroupQuery() GroupQuery {
	return emptyGroupQuery{}
}

// FindTenantByID never finds a tenant.
func (ReadOnlyProvider) FindTenantByID(context.Context, string) (*Tenant, error) {
	return nil, nil
}

// CreateTenantQuery returns a query with no results.
func (ReadOnlyProvider) CreateTenantQuery() TenantQuery {
	return emptyTenantQuery{}
}

// Authenticate reports who the engine should treat as the current user.
// Groups are the caller's authorities without the ROLE_ prefix; tenants are
// never assigned.
func (ReadOnlyProvider) Authenticate(ctx context.Context) AuthenticationResult {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok || caller.Subject == "" {
		return AuthenticationResult{Groups: []string{}, Tenants: []string{}}
	}
	return AuthenticationResult{
		Authenticated: true,
		UserID:        caller.Subject,
		Groups:        authority.StripAll(caller.Authorities),
		Tenants:       []string{},
	}
}

// CurrentUser builds the principal for the caller in ctx, or returns nil.
// Missing name and email claims fall back to the subject.
func CurrentUser(ctx context.Context) *User {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	sub, ok := caller.StringClaim(SubjectClaim)
	if !ok {
		sub = caller.Subject
	}
	if sub == "" {
		return nil
	}

	claimOrSubject := func(name string) string {
		if v, ok := caller.StringClaim(name); ok {
			return v
		}
		return sub
	}
	return &User{
		id:        sub,
		firstName: claimOrSubject(GivenNameClaim),
		lastName:  claimOrSubject(FamilyNameClaim),
		email:     claimOrSubject(EmailClaim),
	}
}

// userQuery records filters; only the id filters decide whether the caller matches.
type userQuery struct {
	id       *string
	ids      []string
	idsSet   bool
	filtered map[string]string
}

func (q *userQuery) UserID(id string) UserQuery {
	q.id = &id
	return q
}

func (q *userQuery) UserIDIn(ids ...string) UserQuery {
	q.ids = ids
	q.idsSet = true
	return q
}

func (q *userQuery) FirstName(name string) UserQuery { return q.record("firstName", name) }
func (q *userQuery) LastName(name string) UserQuery { return q.record("lastName", name) }
func (q *userQuery) Email(email string) UserQuery { return q.record("email", email) }
func (q *userQuery) MemberOfGroup(groupID string) UserQuery { return q.record("memberOfGroup", groupID) }
func (q *userQuery) MemberOfTenant(tenantID string) UserQuery {
	return q.record("memberOfTenant", tenantID)
}

func (q *userQuery) record(filter, value string) UserQuery {
	if q.filtered == nil {
		q.filtered = make(map[string]string)
	}
	q.filtered[filter] = value
	return q
}

// Count is always zero so the directory size never leaks.
func (*userQuery) Count(context.Context) (int64, error) {
	return 0, nil
}

// List is always empty; users cannot be enumerated.
func (*userQuery) List(context.Context) ([]*User, error) {
	return []*User{}, nil
}

func (q *userQuery) SingleResult(ctx context.Context) (*User, error) {
	if len(q.filtered) > 0 {
		logger.Debugw("ignoring attribute filters on user query", "filters", q.filtered)
	}
	user := CurrentUser(ctx)
	if user == nil {
		return nil, nil
	}
	if q.id != nil && *q.id != user.id {
		logger.Debugw("user lookup does not match caller", "requested", *q.id)
		return nil, nil
	}
	if q.idsSet && !slices.Contains(q.ids, user.id) {
		return nil, nil
	}
	return user, nil
}

type emptyGroupQuery struct{}

func (q emptyGroupQuery) GroupID(string) GroupQuery { return q }
func (q emptyGroupQuery) GroupMember(string) GroupQuery { return q }
func (q emptyGroupQuery) MemberOfTenant(string) GroupQuery { return q }

func (emptyGroupQuery) Count(context.Context) (int64, error) { return 0, nil }
func (emptyGroupQuery) List(context.Context) ([]*Group, error) { return []*Group{}, nil }
func (emptyGroupQuery) SingleResult(context.Context) (*Group, error) { return nil, nil }

type emptyTenantQuery struct{}

func (q emptyTenantQuery) TenantID(string) TenantQuery { return q }
func (q emptyTenantQuery) UserMember(string) TenantQuery { return q }
func (q emptyTenantQuery) GroupMember(string) TenantQuery { return q }

func (emptyTenantQuery) Count(context.Context) (int64, error) { return 0, nil }
func (emptyTenantQuery) List(context.Context) ([]*Tenant, error) { return []*Tenant{}, nil }
func (emptyTenantQuery) SingleResult(context.Context) (*Tenant, error) { return nil, nil }
