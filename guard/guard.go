// Package guard decides whether a viewer may reach a route inside the
// authenticated area, and where to send them otherwise.
package guard

import (
	"net/http"
	"strings"

	"github.com/rexlx/bookify/viewer"
)

// LoginPath is where unauthenticated viewers are sent.
const LoginPath = "/login"

// Kind is the outcome of a guard check.
type Kind int

const (
	// Pending means the viewer is still loading. Nothing is rendered.
	Pending Kind = iota
	Allow
	RedirectToLogin
	RedirectToRoleHome
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-login"
	case RedirectToRoleHome:
		return "redirect-role-home"
	default:
		return "pending"
	}
}

// Decision is the result of Decide. Role is only meaningful for
// RedirectToRoleHome.
type Decision struct {
	Kind Kind
	Role viewer.Role
}

// Location returns the redirect target, or "" when no redirect is needed.
func (d Decision) Location() string {
	switch d.Kind {
	case RedirectToLogin:
		return LoginPath
	case RedirectToRoleHome:
		return d.Role.Path()
	}
	return ""
}

// Decide runs the access check for a path. Paths without a third segment
// (e.g. /app or /app/events) and paths whose third segment is not one of the
// reserved role tokens are open to every authenticated viewer.
func Decide(v *viewer.Viewer, loading bool, path string) Decision {
	if loading {
		return Decision{Kind: Pending}
	}
	if v == nil {
		return Decision{Kind: RedirectToLogin}
	}
	segments := strings.Split(path, "/")
	if len(segments) < 3 {
		return Decision{Kind: Allow}
	}
	requested, reserved := viewer.ParseRole(segments[2])
	home := v.Home()
	// The viewer's own home always passes, even for an unnormalized role set.
	if !reserved || requested == home || v.Has(requested.String()) {
		return Decision{Kind: Allow}
	}
	return Decision{Kind: RedirectToRoleHome, Role: home}
}

// Middleware guards next with the viewer held in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, loading := viewer.FromContext(r.Context()).State()
		d := Decide(v, loading, r.URL.Path)
		switch d.Kind {
		case Allow:
			next.ServeHTTP(w, r)
		case Pending:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Redirect(w, r, d.Location(), http.StatusFound)
		}
	})
}

// DashboardSwitcher serves the bare /app path by sending the viewer to their
// role-home.
func DashboardSwitcher(w http.ResponseWriter, r *http.Request) {
	v, loading := viewer.FromContext(r.Context()).State()
	switch {
	case loading:
		w.WriteHeader(http.StatusNoContent)
	case v == nil:
		http.Redirect(w, r, LoginPath, http.StatusFound)
	default:
		http.Redirect(w, r, v.Home().Path(), http.StatusFound)
	}
}
