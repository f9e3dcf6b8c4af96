package cookies

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"realm-server/internal/auth"
)

type Options struct {
	FrontendURL string
	Secure      bool
	MaxAge      time.Duration
}

func SetAuthCookie(w http.ResponseWriter, token string, opts Options) {
	cookie := createAuthCookie(opts)
	cookie.Value = token
	cookie.MaxAge = int(opts.MaxAge.Seconds())

	http.SetCookie(w, cookie)
}

func ClearAuthCookie(w http.ResponseWriter, opts Options) {
	cookie := createAuthCookie(opts)
	cookie.Value = ""
	cookie.MaxAge = -1

	http.SetCookie(w, cookie)
}

func createAuthCookie(opts Options) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Path:     "/",
		Domain:   extractDomain(opts.FrontendURL),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func extractDomain(frontendURL string) string {
	parsedURL, err := url.Parse(frontendURL)
	if err != nil || parsedURL.Host == "" {
		return ""
	}

	host := strings.Split(parsedURL.Host, ":")[0]
	if host == "localhost" || host == "127.0.0.1" {
		return ""
	}

	return host
}
