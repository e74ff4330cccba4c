package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie is the name of the session cookie set on login.
const AuthCookie = "authenticated"

// AuthToken derives the cookie value from the configured password, so that
// changing the password logs every viewer out.
func AuthToken(password string) string {
	sum := sha256.Sum256([]byte("camnet:" + password))
	return hex.EncodeToString(sum[:])
}

// AuthMiddleware checks that the user is logged in. The login page, static
// assets and the camera upload endpoint are open.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	token := []byte(AuthToken(password))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" ||
			r.URL.Path == "/auth/login" ||
			strings.HasPrefix(r.URL.Path, "/static/css/") ||
			strings.HasPrefix(r.URL.Path, "/static/js/") ||
			strings.HasPrefix(r.URL.Path, "/camera") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), token) != 1 {
			// API and AJAX callers get 401, browsers are sent to the login page
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
