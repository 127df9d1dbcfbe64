// Package guard decides, per navigation, whether a request may proceed or must
// be redirected. It only looks at the presence of the session cookie; token
// validity is checked later by the session layer.
package guard

import "strings"

// Action is the outcome of a guard decision.
type Action int

const (
	Pass Action = iota
	Redirect
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Decision is returned by Decide. Location is set only for Redirect.
type Decision struct {
	Action   Action
	Location string
}

// PublicPaths are reachable without a session cookie.
var PublicPaths = []string{
	"/login",
	"/register",
	"/reset-password",
	"/public-page",
}

var excludedPrefixes = []string{
	"/api/",
	"/static/",
	"/auth/",
}

var excludedPaths = map[string]struct{}{
	"/api":             {},
	"/favicon.ico":     {},
	"/login-image.jpg": {},
}

// Decide applies the redirect rules in order:
//  1. a cookie read error redirects to /login;
//  2. /login with a cookie redirects to /dashboard;
//  3. public paths pass;
//  4. no cookie redirects to /login;
//  5. everything else passes.
func Decide(path string, hasCookie bool, err error) Decision {
	if err != nil {
		return Decision{Action: Redirect, Location: LoginPath}
	}
	if path == LoginPath && hasCookie {
		return Decision{Action: Redirect, Location: DashboardPath}
	}
	if IsPublic(path) {
		return Decision{Action: Pass}
	}
	if !hasCookie {
		return Decision{Action: Redirect, Location: LoginPath}
	}
	return Decision{Action: Pass}
}

// IsPublic reports whether path is on the public allow-list.
func IsPublic(path string) bool {
	for _, p := range PublicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// Applies reports whether the guard runs for path at all. API routes, static
// assets and the provider callback are never guarded.
func Applies(path string) bool {
	if _, ok := excludedPaths[path]; ok {
		return false
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}
