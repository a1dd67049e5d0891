package repository

import (
	"net/http"
	"slices"
)

// Credential attaches the caller's session artifact to an outgoing backend
// request. Implementations never inspect the artifact.
type Credential interface {
	Apply(req *http.Request)
}

// CookieCredential forwards browser cookies unchanged.
type CookieCredential struct {
	Cookies []*http.Cookie
}

func (c CookieCredential) Apply(req *http.Request) {
	for _, cookie := range c.Cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
}

// CredentialFromRequest picks the session cookies out of an incoming request.
// With no names every cookie is forwarded except those listed in skip.
func CredentialFromRequest(r *http.Request, names []string, skip ...string) CookieCredential {
	var out []*http.Cookie
	for _, c := range r.Cookies() {
		if slices.Contains(skip, c.Name) {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, c.Name) {
			continue
		}
		out = append(out, c)
	}
	return CookieCredential{Cookies: out}
}
