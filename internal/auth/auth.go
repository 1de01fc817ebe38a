// Package auth reads the caller identity from the bearer token forwarded by
// the gateway and enforces the workspace access policy.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for a bearer token that cannot be decoded.
var ErrInvalidToken = errors.New("invalid bearer token")

// User is the identity carried by a request.
type User struct {
	Username   string
	Workspaces []string
}

// Workspace is the workspace orders are placed in. Tokens used to carry a
// list and now carry a single workspace; the first entry wins.
func (u User) Workspace() string {
	if len(u.Workspaces) == 0 {
		return ""
	}
	return u.Workspaces[0]
}

// Member reports whether the user belongs to workspace.
func (u User) Member(workspace string) bool {
	for _, ws := range u.Workspaces {
		if ws == workspace {
			return true
		}
	}
	return false
}

// Parser extracts users from Authorization headers. Signatures are checked
// by the gateway in front of the service, so tokens are decoded unverified.
type Parser struct {
	// ClaimPath is the dot-separated path of the workspaces claim.
	ClaimPath string
	jwt       *jwt.Parser
}

func NewParser(claimPath string) *Parser {
	if claimPath == "" {
		claimPath = "workspaces"
	}
	return &Parser{ClaimPath: claimPath, jwt: jwt.NewParser()}
}

// FromHeader decodes an Authorization header. An empty header yields the
// anonymous user.
func (p *Parser) FromHeader(header string) (User, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return User{}, nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := p.jwt.ParseUnverified(raw, claims); err != nil {
		return User{}, errors.Join(ErrInvalidToken, err)
	}

	user := User{}
	user.Username, _ = claims["preferred_username"].(string)
	switch ws := nested(claims, p.ClaimPath).(type) {
	case string:
		if ws != "" {
			user.Workspaces = []string{ws}
		}
	case []any:
		for _, v := range ws {
			if s, ok := v.(string); ok && s != "" {
				user.Workspaces = append(user.Workspaces, s)
			}
		}
	}
	return user, nil
}

func nested(claims map[string]any, path string) any {
	var cur any = claims
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[key]; !ok {
			return nil
		}
	}
	return cur
}

type ctxKey struct{}

// WithUser stores the user on the context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored by the middleware.
func FromContext(ctx context.Context) User {
	u, _ := ctx.Value(ctxKey{}).(User)
	return u
}

// Middleware decodes the caller once per request and stores it on the
// context. Undecodable tokens are rejected with 401.
func (p *Parser) Middleware(onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := p.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				onError(w, http.StatusUnauthorized, "Invalid authorization token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Policy decides who may call what. When Enforce is false every check
// passes.
type Policy struct {
	Enforce bool
}

// LoggedIn requires a username.
func (p Policy) LoggedIn(u User) bool {
	return !p.Enforce || u.Username != ""
}

// AnyWorkspace requires membership of at least one workspace.
func (p Policy) AnyWorkspace(u User) bool {
	return !p.Enforce || len(u.Workspaces) > 0
}

// Workspace requires membership of the named workspace.
func (p Policy) Workspace(u User, workspace string) bool {
	return !p.Enforce || (workspace != "" && u.Member(workspace))
}
