// Package authority extracts granted authorities from verified token claims.
//
// Realm roles are read from the "realm_access" claim and passed through unchanged.
// Client roles are read per client from the "resource_access" claim and qualified
// as "<clientId>:<role>" so that two clients granting the same role name never
// collide. Every role is then prefixed with RolePrefix for role-based checks.
//
// Example claim set:
//
//	{
//	  "realm_access": {"roles": ["user", "auditor"]},
//	  "resource_access": {
//	    "orders": {"roles": ["read"]},
//	    "billing": {"roles": ["read"]}
//	  }
//	}
//
// yields ROLE_user, ROLE_auditor, ROLE_billing:read, ROLE_orders:read.
package authority

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ssobridge/ssobridge/pkg/errors"
)

const (
	// RolePrefix marks a qualified role as a granted authority.
	RolePrefix = "ROLE_"

	// RealmAccessClaim holds the realm-wide roles.
	RealmAccessClaim = "realm_access"
	// ResourceAccessClaim holds the per-client roles keyed by client ID.
	ResourceAccessClaim = "resource_access"

	rolesKey        = "roles"
	clientSeparator = ":"
)

type access struct {
	Roles []string `mapstructure:"roles"`
}

// ExtractRoles returns the qualified roles carried by claims: realm roles first,
// then client roles ordered by client ID. Duplicates are preserved.
//
// A missing or null claim contributes no roles. A claim that is present with the
// wrong shape fails the whole extraction with a claim shape error.
func ExtractRoles(claims map[string]any) ([]string, error) {
	realm, err := realmRoles(claims)
	if err != nil {
		return nil, err
	}
	clients, err := clientRoles(claims)
	if err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(realm)+len(clients))
	roles = append(roles, realm...)
	roles = append(roles, clients...)
	return roles, nil
}

// Extract returns the granted authorities carried by claims, in the order of ExtractRoles.
func Extract(claims map[string]any) ([]string, error) {
	roles, err := ExtractRoles(claims)
	if err != nil {
		return nil, err
	}

	authorities := make([]string, len(roles))
	for i, role := range roles {
		authorities[i] = Grant(role)
	}
	return authorities, nil
}

// Qualify scopes a client role to its client.
func Qualify(clientID, role string) string {
	return clientID + clientSeparator + role
}

// Grant turns a qualified role into a granted authority.
func Grant(role string) string {
	return RolePrefix + role
}

// Strip removes a single leading RolePrefix, recovering the qualified role.
// Strings without the prefix are returned unchanged.
func Strip(authority string) string {
	return strings.TrimPrefix(authority, RolePrefix)
}

// StripAll applies Strip to every authority.
func StripAll(authorities []string) []string {
	roles := make([]string, len(authorities))
	for i, a := range authorities {
		roles[i] = Strip(a)
	}
	return roles
}

// HasAuthority reports whether authorities grant role. The role may be given with
// or without RolePrefix.
func HasAuthority(authorities []string, role string) bool {
	want := Grant(Strip(role))
	return slices.Contains(authorities, want)
}

func realmRoles(claims map[string]any) ([]string, error) {
	raw, ok := claims[RealmAccessClaim]
	if !ok || raw == nil {
		return nil, nil
	}

	var realm access
	if err := decodeStrict(raw, &realm); err != nil {
		return nil, errors.NewClaimShapeError(
			fmt.Sprintf("%s must be an object with a %q list of strings", RealmAccessClaim, rolesKey), err)
	}
	return realm.Roles, nil
}

func clientRoles(claims map[string]any) ([]string, error) {
	raw, ok := claims[ResourceAccessClaim]
	if !ok || raw == nil {
		return nil, nil
	}

	var clients map[string]*access
	if err := decodeStrict(raw, &clients); err != nil {
		return nil, errors.NewClaimShapeError(
			fmt.Sprintf("%s must map client IDs to objects with a %q list of strings", ResourceAccessClaim, rolesKey), err)
	}

	var roles []string
	for _, clientID := range slices.Sorted(maps.Keys(clients)) {
		client := clients[clientID]
		if client == nil {
			return nil, errors.NewClaimShapeError(
				fmt.Sprintf("%s.%s must be an object, got null", ResourceAccessClaim, clientID), nil)
		}
		for _, role := range client.Roles {
			roles = append(roles, Qualify(clientID, role))
		}
	}
	return roles, nil
}

// decodeStrict decodes without weak typing so that a string where a list is
// expected, or a number inside a role list, is reported instead of coerced.
// Claim names match exactly; "ROLES" is not "roles".
func decodeStrict(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: false,
		TagName:          "mapstructure",
		MatchName:        func(mapKey, fieldName string) bool { return mapKey == fieldName },
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
