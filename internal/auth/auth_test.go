package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unused"))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestFromHeader(t *testing.T) {
	p := NewParser("")

	u, err := p.FromHeader(token(t, jwt.MapClaims{"preferred_username": "alice", "workspaces": []string{"ws-a", "ws-b"}}))
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, []string{"ws-a", "ws-b"}, u.Workspaces)
	assert.Equal(t, "ws-a", u.Workspace())
	assert.True(t, u.Member("ws-b"))
	assert.False(t, u.Member("ws-c"))
}

func TestFromHeader_NestedStringClaim(t *testing.T) {
	p := NewParser("eodh.workspace")
	u, err := p.FromHeader(token(t, jwt.MapClaims{
		"preferred_username": "bob",
		"eodh":               map[string]any{"workspace": "bob-ws"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-ws"}, u.Workspaces)
}

func TestFromHeader_AnonymousAndInvalid(t *testing.T) {
	p := NewParser("workspaces")

	u, err := p.FromHeader("")
	require.NoError(t, err)
	assert.Empty(t, u.Username)
	assert.Empty(t, u.Workspace())

	_, err = p.FromHeader("Bearer not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	p := NewParser("workspaces")
	var got User
	h := p.Middleware(func(w http.ResponseWriter, status int, _ string) { w.WriteHeader(status) })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token(t, jwt.MapClaims{"preferred_username": "carol", "workspaces": "carol-ws"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "carol", got.Username)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPolicy(t *testing.T) {
	anon := User{}
	member := User{Username: "alice", Workspaces: []string{"ws"}}

	open := Policy{}
	assert.True(t, open.LoggedIn(anon))
	assert.True(t, open.AnyWorkspace(anon))
	assert.True(t, open.Workspace(anon, "ws"))

	strict := Policy{Enforce: true}
	assert.False(t, strict.LoggedIn(anon))
	assert.True(t, strict.LoggedIn(member))
	assert.False(t, strict.AnyWorkspace(anon))
	assert.True(t, strict.AnyWorkspace(member))
	assert.True(t, strict.Workspace(member, "ws"))
	assert.False(t, strict.Workspace(member, "other"))
}
