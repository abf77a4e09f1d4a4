package portal

import "testing"

func TestAuthorizeRedirectMatrix(t *testing.T) {
	cases := []struct {
		name          string
		authenticated bool
		role          string
		allowed       []string
		wantAllow     bool
		wantRedirect  string
	}{
		{
			name:         "unauthenticated goes to login",
			allowed:      []string{"admin"},
			wantRedirect: LoginRoute,
		},
		{
			name:          "student on admin route goes home, not login",
			authenticated: true,
			role:          "student",
			allowed:       []string{"admin"},
			wantRedirect:  HomeRoute,
		},
		{
			name:          "admin on admin route renders",
			authenticated: true,
			role:          "admin",
			allowed:       []string{"admin"},
			wantAllow:     true,
		},
		{
			name:          "role in multi-role set renders",
			authenticated: true,
			role:          "student",
			allowed:       []string{"admin", "student"},
			wantAllow:     true,
		},
		{
			name:          "empty allowed set denies every role",
			authenticated: true,
			role:          "admin",
			allowed:       nil,
			wantRedirect:  HomeRoute,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Authorize(tc.authenticated, tc.role, tc.allowed)
			if d.Allow != tc.wantAllow {
				t.Errorf("Allow = %v, want %v", d.Allow, tc.wantAllow)
			}
			if d.Redirect != tc.wantRedirect {
				t.Errorf("Redirect = %q, want %q", d.Redirect, tc.wantRedirect)
			}
		})
	}
}

func TestAuthorizeIsReEvaluatedPerNavigation(t *testing.T) {
	// The same inputs always give the same answer, and a state change
	// between navigations changes the outcome — nothing is cached.
	if d := Authorize(true, "student", []string{"student"}); !d.Allow {
		t.Fatal("expected allow before logout")
	}
	if d := Authorize(false, "student", []string{"student"}); d.Redirect != LoginRoute {
		t.Fatalf("after logout Redirect = %q, want %q", d.Redirect, LoginRoute)
	}
}
