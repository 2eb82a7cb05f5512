package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticatorModeNone(t *testing.T) {
	a := NewAuthenticator(Config{Mode: ModeNone})
	req := httptest.NewRequest(http.MethodPost, "/a2a", nil)
	if err := a.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() error = %v, want nil", err)
	}
}

func TestAuthenticatorModeTokenValid(t *testing.T) {
	a := NewAuthenticator(Config{Mode: ModeToken, Token: "abc123"})
	req := httptest.NewRequest(http.MethodPost, "/a2a", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	if err := a.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() error = %v, want nil", err)
	}
}

func TestAuthenticatorModeTokenInvalid(t *testing.T) {
	a := NewAuthenticator(Config{Mode: ModeToken, Token: "abc123"})

	cases := []struct {
		name   string
		header string
	}{
		{"wrong token", "Bearer nope"},
		{"no header", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/a2a", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if err := a.Authenticate(req); err == nil {
				t.Fatal("Authenticate() error = nil, want error")
			}
		})
	}
}
