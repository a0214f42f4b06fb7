// Package auth carries the authenticated caller through a request and
// provides the bearer-token HTTP middleware.
package auth

import (
	"encoding/json"
	"fmt"

	"github.com/ssobridge/ssobridge/pkg/auth/authority"
)

// Identity is the authenticated caller of a single request.
type Identity struct {
	// Subject is the unique identifier of the caller (from the 'sub' claim).
	Subject string

	// Name is the human-readable name (from 'name' or 'preferred_username').
	Name string

	// Email is the email address (from 'email', if available).
	Email string

	// Authorities are the granted authorities extracted from the token,
	// e.g. "ROLE_user" or "ROLE_orders:read".
	Authorities []string

	// Claims is the raw verified claim set. Display names are resolved from it.
	Claims map[string]any

	// Token is the original bearer or access token.
	// It is redacted in String() and MarshalJSON().
	Token string

	// TokenType is the type of token, normally "Bearer".
	TokenType string
}

// HasAuthority reports whether the caller was granted role.
// role may be given with or without the ROLE_ prefix.
func (i *Identity) HasAuthority(role string) bool {
	if i == nil {
		return false
	}
	return authority.HasAuthority(i.Authorities, role)
}

// StringClaim returns the named claim if it is a non-empty string.
func (i *Identity) StringClaim(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	s, ok := i.Claims[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// String returns a representation of the Identity that never includes the token.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}

	return fmt.Sprintf("Identity{Subject:%q, Authorities:%d}", i.Subject, len(i.Authorities))
}

// MarshalJSON redacts the token so identities can be logged safely.
func (i *Identity) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}

	type SafeIdentity struct {
		Subject     string         `json:"subject"`
		Name        string         `json:"name"`
		Email       string         `json:"email"`
		Authorities []string       `json:"authorities"`
		Claims      map[string]any `json:"claims"`
		Token       string         `json:"token"`
		TokenType   string         `json:"tokenType"`
	}

	token := i.Token
	if token != "" {
		token = "REDACTED"
	}

	return json.Marshal(&SafeIdentity{
		Subject:     i.Subject,
		Name:        i.Name,
		Email:       i.Email,
		Authorities: i.Authorities,
		Claims:      i.Claims,
		Token:       token,
		TokenType:   i.TokenType,
	})
}
