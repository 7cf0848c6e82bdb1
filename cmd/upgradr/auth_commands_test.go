package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/loykin/upgradr/pkg/client"
)

func newFakeAuthServer(t *testing.T, result client.LoginResult) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, client.Status{State: "idle"})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Method   string `json:"method"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Username != "admin" || body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		writeOK(w, result)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginRequiresCredentials(t *testing.T) {
	c := command{}
	err := c.Login(LoginFlags{})
	if err == nil || !strings.Contains(err.Error(), "username and password are required") {
		t.Fatalf("expected credential validation error, got %v", err)
	}
}

func TestLoginUnreachableServer(t *testing.T) {
	isolateHome(t)
	c := command{}
	err := c.Login(LoginFlags{Username: "admin", Password: "secret", ServerURL: "http://127.0.0.1:1"})
	if err == nil || !strings.Contains(err.Error(), "server not reachable") {
		t.Fatalf("expected not reachable error, got %v", err)
	}
}

func TestLoginSavesSession(t *testing.T) {
	isolateHome(t)
	srv := newFakeAuthServer(t, client.LoginResult{
		Success:  true,
		Username: "admin",
		Roles:    []string{"admin"},
		Token: &client.Token{
			Type:      "Bearer",
			Value:     "jwt-token",
			ExpiresAt: time.Now().Add(time.Hour).UTC(),
		},
	})

	c := command{}
	err := c.Login(LoginFlags{Username: "admin", Password: "secret", ServerURL: srv.URL})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sm := NewSessionManager()
	session, err := sm.LoadSession()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session == nil {
		t.Fatal("expected a saved session")
	}
	if session.Token != "jwt-token" || session.Username != "admin" || session.ServerURL != srv.URL {
		t.Fatalf("unexpected session: %+v", session)
	}

	if err := c.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sm.IsLoggedIn() {
		t.Fatal("expected session cleared after logout")
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	isolateHome(t)
	srv := newFakeAuthServer(t, client.LoginResult{})

	c := command{}
	err := c.Login(LoginFlags{Username: "admin", Password: "wrong", ServerURL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("expected login failure, got %v", err)
	}
	if NewSessionManager().IsLoggedIn() {
		t.Fatal("failed login must not leave a session behind")
	}
}

func TestLoginWithoutToken(t *testing.T) {
	isolateHome(t)
	srv := newFakeAuthServer(t, client.LoginResult{Success: true, Username: "admin"})

	c := command{}
	err := c.Login(LoginFlags{Username: "admin", Password: "secret", ServerURL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "no token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	isolateHome(t)
	c := command{}
	if err := c.Logout(); err != nil {
		t.Fatalf("logout without session should succeed: %v", err)
	}
}

func TestHashPasswordRequiresPassword(t *testing.T) {
	c := command{}
	err := c.HashPassword(HashPasswordFlags{})
	if err == nil || !strings.Contains(err.Error(), "password is required") {
		t.Fatalf("expected password validation error, got %v", err)
	}
}

func TestHashPasswordOutput(t *testing.T) {
	c := command{}
	out := captureStdout(t, func() {
		if err := c.HashPassword(HashPasswordFlags{Password: "s3cret"}); err != nil {
			t.Errorf("hash-password: %v", err)
		}
	})

	hash := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("printed hash does not verify: %v (output %q)", err, out)
	}
}
