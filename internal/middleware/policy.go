package middleware

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"library-lending/internal/model"
)

type Requirement int

const (
	RequireAuthenticated Requirement = iota
	RequirePublic
	RequireRoles
)

// Rule grants access to requests whose method and path match. Pattern segments match literally,
// "*" matches one segment and a trailing "/**" matches the prefix itself and anything below it.
// An empty Methods list matches every method.
type Rule struct {
	Pattern     string
	Methods     []string
	Requirement Requirement
	Roles       []model.Role
}

func Public(pattern string, methods ...string) Rule {
	return Rule{Pattern: pattern, Methods: methods, Requirement: RequirePublic}
}

func Authenticated(pattern string, methods ...string) Rule {
	return Rule{Pattern: pattern, Methods: methods, Requirement: RequireAuthenticated}
}

func Roles(pattern string, roles []model.Role, methods ...string) Rule {
	return Rule{Pattern: pattern, Methods: methods, Requirement: RequireRoles, Roles: roles}
}

func (r Rule) matches(method string, urlPath string) bool {
	if len(r.Methods) > 0 {
		found := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return matchPath(r.Pattern, urlPath)
}

func matchPath(pattern string, urlPath string) bool {
	want := splitPath(pattern)
	got := splitPath(path.Clean("/" + urlPath))

	for i, segment := range want {
		if segment == "**" && i == len(want)-1 {
			return true
		}
		if i >= len(got) {
			return false
		}
		if ok, err := path.Match(segment, got[i]); err != nil || !ok {
			return false
		}
	}
	return len(got) == len(want)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Policy is an ordered rule table. The first matching rule decides; a request no rule matches
// needs an authenticated principal.
type Policy struct {
	rules []Rule
}

func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Decide returns nil when the request may proceed, otherwise ErrUnauthenticated or
// ErrInsufficientRole.
func (p *Policy) Decide(method string, urlPath string, principal *model.Principal) error {
	rule := Rule{Requirement: RequireAuthenticated}
	for _, candidate := range p.rules {
		if candidate.matches(method, urlPath) {
			rule = candidate
			break
		}
	}

	switch rule.Requirement {
	case RequirePublic:
		return nil
	case RequireRoles:
		if principal == nil {
			return model.ErrUnauthenticated
		}
		if !principal.HasAnyRole(rule.Roles...) {
			return model.ErrInsufficientRole
		}
		return nil
	default:
		if principal == nil {
			return model.ErrUnauthenticated
		}
		return nil
	}
}

// Authorize enforces the policy against the principal attached by Authenticate.
func (p *Policy) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal *model.Principal
		if found, ok := PrincipalFromContext(r.Context()); ok {
			principal = &found
		}

		err := p.Decide(r.Method, r.URL.Path, principal)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, model.ErrInsufficientRole):
			writeUnauthorized(w, "FORBIDDEN", "insufficient permissions")
		default:
			writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		}
	})
}

// LibraryPolicy is the access table of the HTTP API.
func LibraryPolicy() *Policy {
	librarian := []model.Role{model.RoleLibrarian}
	lenders := []model.Role{model.RoleMember, model.RoleLibrarian}

	return NewPolicy(
		Public("/health"),
		Public("/openapi.yaml", http.MethodGet),
		Public("/swagger", http.MethodGet),
		Public("/auth/login", http.MethodPost),
		Public("/auth/refresh", http.MethodPost),
		Public("/auth/register", http.MethodPost),
		Authenticated("/auth/whoami", http.MethodGet),
		Public("/books/**", http.MethodGet),
		Roles("/books/**", librarian),
		Roles("/users/**", librarian),
		Roles("/transactions/borrow", lenders, http.MethodPost),
		Roles("/transactions/return/*", lenders, http.MethodPost),
		Authenticated("/transactions/user/*", http.MethodGet),
		Roles("/transactions/**", librarian, http.MethodGet),
		Authenticated("/**"),
	)
}
