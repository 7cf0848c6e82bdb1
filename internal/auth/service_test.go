package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		JWTSecret: "test-secret",
		Users: []User{
			{Username: "admin", Password: "adminpass", Roles: []string{"admin"}},
			{Username: "bob", Password: "bobpass", Roles: []string{"viewer"}},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestAuthMethodConstants(t *testing.T) {
	testCases := []struct {
		name     string
		method   AuthMethod
		expected string
	}{
		{"basic auth", AuthMethodBasic, "basic"},
		{"jwt auth", AuthMethodJWT, "jwt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.method) != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, string(tc.method))
			}
		})
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(Config{Users: []User{{Username: "", Password: "x"}}}); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, err := NewService(Config{Users: []User{{Username: "a"}}}); err == nil {
		t.Fatal("expected error for user without password")
	}
}

func TestPlainPasswordHashedAtLoad(t *testing.T) {
	svc := newTestService(t)
	u := svc.users["admin"]
	if u.Password != "" {
		t.Error("plain password should be cleared after load")
	}
	if !strings.HasPrefix(u.PasswordHash, "$2") {
		t.Errorf("expected bcrypt hash, got %q", u.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("adminpass")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}

func TestAuthenticateBasic(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodBasic, Username: "admin", Password: "adminpass"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Username != "admin" || len(result.Roles) != 1 || result.Roles[0] != "admin" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Token == nil || result.Token.Type != "Bearer" || result.Token.Value == "" {
		t.Errorf("expected bearer token, got %+v", result.Token)
	}

	badCases := []LoginRequest{
		{Method: AuthMethodBasic, Username: "admin", Password: "wrong"},
		{Method: AuthMethodBasic, Username: "nobody", Password: "adminpass"},
		{Method: AuthMethodBasic, Username: "admin"},
		{Method: AuthMethodBasic},
	}
	for _, req := range badCases {
		result, err := svc.Authenticate(ctx, req)
		if err != ErrInvalidCredentials {
			t.Errorf("req %+v: err = %v, want ErrInvalidCredentials", req, err)
		}
		if result.Success {
			t.Errorf("req %+v: expected failure", req)
		}
	}
}

func TestAuthenticateJWT(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	login, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodBasic, Username: "bob", Password: "bobpass"})
	if err != nil || login.Token == nil {
		t.Fatalf("login: %v token=%v", err, login.Token)
	}

	result, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodJWT, Token: login.Token.Value})
	if err != nil {
		t.Fatalf("jwt authenticate: %v", err)
	}
	if !result.Success || result.Username != "bob" {
		t.Errorf("unexpected result: %+v", result)
	}

	if _, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodJWT, Token: login.Token.Value + "x"}); err != ErrInvalidCredentials {
		t.Errorf("tampered token: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodJWT}); err != ErrInvalidCredentials {
		t.Errorf("empty token: err = %v, want ErrInvalidCredentials", err)
	}

	// Tokens signed with a different secret do not verify.
	other, err := NewService(Config{JWTSecret: "other-secret", Users: []User{{Username: "bob", Password: "bobpass"}}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := other.Authenticate(ctx, LoginRequest{Method: AuthMethodJWT, Token: login.Token.Value}); err != ErrInvalidCredentials {
		t.Errorf("foreign token: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, err := NewService(Config{
		JWTSecret: "test-secret",
		TokenTTL:  -time.Minute,
		Users:     []User{{Username: "admin", Password: "adminpass", Roles: []string{"admin"}}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	login, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodBasic, Username: "admin", Password: "adminpass"})
	if err != nil || login.Token == nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Authenticate(ctx, LoginRequest{Method: AuthMethodJWT, Token: login.Token.Value}); err != ErrInvalidCredentials {
		t.Errorf("expired token: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Authenticate(context.Background(), LoginRequest{Method: "oauth"}); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestHasPermission(t *testing.T) {
	svc := newTestService(t)
	testCases := []struct {
		name     string
		roles    []string
		resource string
		action   string
		expected bool
	}{
		{"admin everything", []string{"admin"}, "settings", "write", true},
		{"operator triggers checks", []string{"operator"}, "check", "write", true},
		{"operator resolves offers", []string{"operator"}, "offer", "write", true},
		{"operator cannot change settings", []string{"operator"}, "settings", "write", false},
		{"viewer reads status", []string{"viewer"}, "status", "read", true},
		{"viewer cannot trigger checks", []string{"viewer"}, "check", "write", false},
		{"unknown role", []string{"ghost"}, "status", "read", false},
		{"no roles", nil, "status", "read", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.HasPermission(tc.roles, tc.resource, tc.action); got != tc.expected {
				t.Errorf("HasPermission(%v, %s, %s) = %v, want %v", tc.roles, tc.resource, tc.action, got, tc.expected)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret", 0)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
	if _, err := HashPassword("  ", 0); err == nil {
		t.Error("expected error for blank password")
	}
}
