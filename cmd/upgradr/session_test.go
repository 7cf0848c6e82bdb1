package main

import (
	"os"
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	isolateHome(t)
	sm := NewSessionManager()

	saved := &Session{
		Token:     "tok-abc",
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		Username:  "admin",
		Roles:     []string{"admin"},
		ServerURL: "http://127.0.0.1:8080",
	}
	if err := sm.SaveSession(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := sm.LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a session")
	}
	if loaded.Token != saved.Token || loaded.Username != saved.Username || loaded.ServerURL != saved.ServerURL {
		t.Fatalf("loaded session differs: %+v", loaded)
	}
	if !sm.IsLoggedIn() {
		t.Fatal("expected IsLoggedIn true")
	}

	if err := sm.ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	loaded, err = sm.LoadSession()
	if err != nil || loaded != nil {
		t.Fatalf("expected no session after clear, got %+v err %v", loaded, err)
	}
	if sm.IsLoggedIn() {
		t.Fatal("expected IsLoggedIn false after clear")
	}
}

func TestSessionExpiredIsCleared(t *testing.T) {
	isolateHome(t)
	sm := NewSessionManager()

	err := sm.SaveSession(&Session{
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := sm.LoadSession()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expired session should be dropped, got %+v", loaded)
	}
	if _, err := os.Stat(sm.GetSessionPath()); !os.IsNotExist(err) {
		t.Fatal("expired session file should have been removed")
	}
}

func TestClearSessionMissingFile(t *testing.T) {
	isolateHome(t)
	sm := NewSessionManager()
	if err := sm.ClearSession(); err != nil {
		t.Fatalf("clearing a missing session should succeed: %v", err)
	}
}
