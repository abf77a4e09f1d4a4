package portal

// Route targets used by guard decisions.
const (
	LoginRoute = "/login"
	HomeRoute  = "/dashboard/home"
)

// Decision is the outcome of an authorization check: either render the
// guarded subtree or redirect elsewhere.
type Decision struct {
	Allow    bool
	Redirect string
}

// Authorize gates a route subtree by authentication and role. It is pure:
// callers re-evaluate it on every navigation against the live session
// state, never caching the result.
//
// Unauthenticated users go to the login entry; authenticated users whose
// role is not allowed go to the default landing route, not back to login.
func Authorize(authenticated bool, role string, allowedRoles []string) Decision {
	if !authenticated {
		return Decision{Redirect: LoginRoute}
	}

	for _, allowed := range allowedRoles {
		if role == allowed {
			return Decision{Allow: true}
		}
	}
	return Decision{Redirect: HomeRoute}
}
