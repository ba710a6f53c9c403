// Package guard applies declarative access policy to views. It decides
// only what to render; the server stays authoritative for authorization.
package guard

import (
	"strings"

	"github.com/srinivas112004/go-employee-portal/session"
)

// DecisionKind enumerates the possible render outcomes for a route.
type DecisionKind int

const (
	// Render the guarded view.
	Render DecisionKind = iota
	// Loading renders a neutral placeholder while the session restores.
	Loading
	// RedirectSignIn sends the user to the sign-in view.
	RedirectSignIn
	// RedirectDashboard bounces an authenticated user off landing paths.
	RedirectDashboard
	// AccessDenied renders the access-denied notice.
	AccessDenied
)

func (k DecisionKind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectSignIn:
		return "redirect_sign_in"
	case RedirectDashboard:
		return "redirect_dashboard"
	case AccessDenied:
		return "access_denied"
	}
	return "unknown"
}

// Decision is the outcome of evaluating a route. Replace means the
// current path must not be added to history when redirecting.
type Decision struct {
	Kind    DecisionKind
	Target  string
	Replace bool
}

// Route describes one guarded view. A public route with Landing set
// bounces already-authenticated users to the dashboard (the marketing
// and sign-in pages). Roles empty means any authenticated user.
type Route struct {
	Path    string
	Public  bool
	Landing bool
	Roles   []string
}

const (
	SignInPath    = "/login"
	DashboardPath = "/dashboard"
)

// Evaluate decides what to render for route given the session state. The
// guard never infers role hierarchy; a role is admitted iff it appears in
// the route's allowed set, compared lowercased.
func Evaluate(route Route, state session.State) Decision {
	if route.Public {
		if route.Landing && state.Authenticated {
			return Decision{Kind: RedirectDashboard, Target: DashboardPath, Replace: true}
		}
		return Decision{Kind: Render}
	}

	if state.Loading {
		return Decision{Kind: Loading}
	}
	if !state.Authenticated {
		return Decision{Kind: RedirectSignIn, Target: SignInPath, Replace: true}
	}
	if len(route.Roles) == 0 {
		return Decision{Kind: Render}
	}
	if state.User != nil && state.User.HasRole(route.Roles...) {
		return Decision{Kind: Render}
	}
	return Decision{Kind: AccessDenied}
}

// Routes is a static route table evaluated per path.
type Routes []Route

// Find returns the route for path, matching exactly.
func (r Routes) Find(path string) (Route, bool) {
	path = normalisePath(path)
	for _, route := range r {
		if normalisePath(route.Path) == path {
			return route, true
		}
	}
	return Route{}, false
}

func normalisePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}
	return path
}
