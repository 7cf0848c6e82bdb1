package auth

import (
	"errors"
	"time"
)

// AuthMethod represents the type of authentication
type AuthMethod string

const (
	AuthMethodBasic AuthMethod = "basic" // username/password
	AuthMethodJWT   AuthMethod = "jwt"   // JWT token
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// User is an API account declared in the configuration file. Password is
// hashed at load when PasswordHash is not set directly.
type User struct {
	Username     string   `toml:"username" json:"username" mapstructure:"username"`
	Password     string   `toml:"password,omitempty" json:"-" mapstructure:"password"`
	PasswordHash string   `toml:"password_hash,omitempty" json:"-" mapstructure:"password_hash"`
	Roles        []string `toml:"roles" json:"roles" mapstructure:"roles"`
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Success  bool     `json:"success"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Token    *Token   `json:"token,omitempty"`
}

// Token represents a JWT token
type Token struct {
	Type      string    `json:"type"`  // "Bearer"
	Value     string    `json:"value"` // JWT token string
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Method   AuthMethod `json:"method"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
	Token    string     `json:"token,omitempty"`
}

// Permission represents a permission in the system
type Permission struct {
	Resource string `json:"resource"` // e.g., "check", "settings", "offer"
	Action   string `json:"action"`   // "read" or "write"
}
