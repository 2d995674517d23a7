package authtransport

import (
	"net/http"
	"net/url"

	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
)

// kvCookieScope binds a signed cookie scope to the current exchange.
func kvCookieScope(w http.ResponseWriter, r *http.Request, secrets []string) (kv.Scope, error) {
	return kv.NewCookie(w, r, secrets)
}

// RequireAuth redirects guests to the login page with the requested
// location encoded as returnUrl, so a successful login resumes where the
// guest was headed.
func RequireAuth(sessions *session.Store, loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = defaultLoginPath
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions.IsGuest() {
				target := loginPath + "?returnUrl=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
