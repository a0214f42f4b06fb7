package authority

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssobridge/ssobridge/pkg/errors"
)

// claimsFromJSON decodes claims the same way the token decoder does.
func claimsFromJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &claims))
	return claims
}

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want []string
	}{
		{
			name: "no role claims",
			json: `{"sub":"u1"}`,
			want: []string{},
		},
		{
			name: "null role claims",
			json: `{"realm_access":null,"resource_access":null}`,
			want: []string{},
		},
		{
			name: "realm roles key is case sensitive",
			json: `{"realm_access":{"ROLES":["admin"]}}`,
			want: []string{},
		},
		{
			name: "client roles key is case sensitive",
			json: `{"resource_access":{"svc":{"Roles":["x"]}}}`,
			want: []string{},
		},
		{
			name: "realm roles",
			json: `{"realm_access":{"roles":["a","b"]}}`,
			want: []string{"ROLE_a", "ROLE_b"},
		},
		{
			name: "single client role",
			json: `{"resource_access":{"svc":{"roles":["x"]}}}`,
			want: []string{"ROLE_svc:x"},
		},
		{
			name: "realm roles precede client roles",
			json: `{
				"resource_access":{"svc":{"roles":["x"]}},
				"realm_access":{"roles":["a"]}
			}`,
			want: []string{"ROLE_a", "ROLE_svc:x"},
		},
		{
			name: "same role in two clients stays distinct",
			json: `{"resource_access":{
				"orders":{"roles":["read"]},
				"billing":{"roles":["read"]}
			}}`,
			want: []string{"ROLE_billing:read", "ROLE_orders:read"},
		},
		{
			name: "client without roles contributes nothing",
			json: `{"resource_access":{"account":{},"svc":{"roles":["x"]}}}`,
			want: []string{"ROLE_svc:x"},
		},
		{
			name: "realm access without roles",
			json: `{"realm_access":{}}`,
			want: []string{},
		},
		{
			name: "duplicates preserved",
			json: `{"realm_access":{"roles":["a","a"]}}`,
			want: []string{"ROLE_a", "ROLE_a"},
		},
		{
			name: "unrelated keys ignored",
			json: `{"realm_access":{"roles":["a"],"other":1},"resource_access":{"svc":{"roles":["x"],"scopes":["y"]}}}`,
			want: []string{"ROLE_a", "ROLE_svc:x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(claimsFromJSON(t, tt.json))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_MalformedShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
	}{
		{"realm roles not a list", `{"realm_access":{"roles":"not-a-list"}}`},
		{"realm access not an object", `{"realm_access":"admin"}`},
		{"realm role not a string", `{"realm_access":{"roles":["a",1]}}`},
		{"resource access not an object", `{"resource_access":["svc"]}`},
		{"client entry not an object", `{"resource_access":{"svc":"x"}}`},
		{"client entry null", `{"resource_access":{"svc":null}}`},
		{"null client beside a valid one", `{"resource_access":{"app":{"roles":["r"]},"svc":null}}`},
		{"client roles not a list", `{"resource_access":{"svc":{"roles":"x"}}}`},
		{"bad client alongside good realm", `{"realm_access":{"roles":["a"]},"resource_access":{"svc":{"roles":[true]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(claimsFromJSON(t, tt.json))
			require.Error(t, err)
			assert.True(t, errors.IsClaimShape(err), "expected claim shape error, got %v", err)
			assert.Nil(t, got)
		})
	}
}

func TestExtractRoles_Qualified(t *testing.T) {
	t.Parallel()

	roles, err := ExtractRoles(claimsFromJSON(t, `{
		"realm_access":{"roles":["camunda-admin"]},
		"resource_access":{"tasklist":{"roles":["operator"]}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"camunda-admin", "tasklist:operator"}, roles)
}

func TestGrantStripRoundTrip(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"a", "svc:x", "", "role_lowercase", "x:ROLE_y"} {
		assert.Equal(t, role, Strip(Grant(role)), "role %q", role)
	}

	assert.Equal(t, "plain", Strip("plain"))
	assert.Equal(t, "ROLE_x", Strip("ROLE_ROLE_x"), "only one prefix is removed")
	assert.Equal(t, []string{"a", "svc:x"}, StripAll([]string{"ROLE_a", "ROLE_svc:x"}))
}

func TestHasAuthority(t *testing.T) {
	t.Parallel()

	authorities := []string{"ROLE_camunda", "ROLE_svc:x"}
	assert.True(t, HasAuthority(authorities, "camunda"))
	assert.True(t, HasAuthority(authorities, "ROLE_camunda"))
	assert.True(t, HasAuthority(authorities, "svc:x"))
	assert.False(t, HasAuthority(authorities, "x"))
	assert.False(t, HasAuthority(nil, "camunda"))
}

func TestQualify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "svc:x", Qualify("svc", "x"))
}
