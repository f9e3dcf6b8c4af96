package cookies

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractDomain(t *testing.T) {
	tests := map[string]string{
		"http://localhost:3000":        "",
		"http://127.0.0.1:5173":        "",
		"https://play.example.com":     "play.example.com",
		"https://play.example.com:443": "play.example.com",
		"not a url":                    "",
	}
	for in, want := range tests {
		if got := extractDomain(in); got != want {
			t.Fatalf("expected %q for %q, got %q", want, in, got)
		}
	}
}

func TestSetAndClearAuthCookie(t *testing.T) {
	opts := Options{FrontendURL: "https://play.example.com", Secure: true, MaxAge: time.Hour}

	rec := httptest.NewRecorder()
	SetAuthCookie(rec, "token", opts)
	set := rec.Result().Cookies()
	if len(set) != 1 || set[0].Value != "token" || set[0].MaxAge != 3600 || !set[0].HttpOnly || !set[0].Secure {
		t.Fatalf("expected secure http-only auth cookie, got %+v", set)
	}

	rec = httptest.NewRecorder()
	ClearAuthCookie(rec, opts)
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].Value != "" || cleared[0].MaxAge >= 0 {
		t.Fatalf("expected expired auth cookie, got %+v", cleared)
	}
}
