package main

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/upgradr/internal/auth"
	"github.com/loykin/upgradr/pkg/client"
)

// Login performs login and saves session
func (c *command) Login(f LoginFlags) error {
	// Validate input parameters first, before trying to connect
	if f.Username == "" || f.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	// Default server URL if not specified
	serverURL := f.ServerURL
	if serverURL == "" {
		serverURL = defaultAPIURL
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = serverURL
	cfg.Timeout = 30 * time.Second
	apiClient := client.New(cfg)

	ctx := context.Background()
	if !apiClient.IsReachable(ctx) {
		return fmt.Errorf("server not reachable at %s - please start daemon first with 'upgradr serve'", serverURL)
	}

	result, err := apiClient.Login(ctx, f.Username, f.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if result.Token == nil {
		return fmt.Errorf("login returned no token (is auth enabled on the server?)")
	}

	// Save session
	sessionManager := NewSessionManager()
	session := &Session{
		Token:     result.Token.Value,
		TokenType: result.Token.Type,
		ExpiresAt: result.Token.ExpiresAt,
		Username:  result.Username,
		Roles:     result.Roles,
		ServerURL: serverURL,
	}

	if err := sessionManager.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("Login successful! Logged in as %s\n", result.Username)
	fmt.Printf("Session saved to %s\n", sessionManager.GetSessionPath())
	fmt.Printf("Token expires at: %s\n", result.Token.ExpiresAt.Format(time.RFC3339))

	return nil
}

// Logout clears the saved session
func (c *command) Logout() error {
	sessionManager := NewSessionManager()

	if !sessionManager.IsLoggedIn() {
		fmt.Println("No active session found")
		return nil
	}

	if err := sessionManager.ClearSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Println("Logged out successfully")
	return nil
}

// HashPassword prints a bcrypt hash for a [[server.auth.users]] entry.
func (c *command) HashPassword(f HashPasswordFlags) error {
	if f.Password == "" {
		return fmt.Errorf("password is required")
	}

	hash, err := auth.HashPassword(f.Password, f.Cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println(hash)
	fmt.Println()
	fmt.Println("Add it to a user entry in the config file:")
	fmt.Printf("  password_hash = %q\n", hash)
	return nil
}
