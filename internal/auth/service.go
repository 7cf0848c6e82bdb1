package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service provides authentication against the configured user list and
// issues JWT bearer tokens for the HTTP API.
type Service struct {
	users      map[string]User
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
}

// Config represents configuration for the auth service
type Config struct {
	Enabled    bool          `toml:"enabled" json:"enabled" mapstructure:"enabled"`
	JWTSecret  string        `toml:"jwt_secret" json:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `toml:"token_ttl" json:"token_ttl" mapstructure:"token_ttl"`
	BcryptCost int           `toml:"bcrypt_cost" json:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	Users      []User        `toml:"users" json:"users" mapstructure:"users"`
}

// Claims represents JWT claims
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewService creates a new authentication service. Users carrying a plain
// password get it hashed here so the hash never has to appear in config.
func NewService(config Config) (*Service, error) {
	jwtSecret := []byte(config.JWTSecret)
	if len(jwtSecret) == 0 {
		// Generate a random secret if not provided. Tokens stop verifying
		// across restarts, which is fine for a single-host daemon.
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
	}

	tokenTTL := config.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}

	bcryptCost := config.BcryptCost
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	users := make(map[string]User, len(config.Users))
	for _, u := range config.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("auth user with empty username")
		}
		if u.PasswordHash == "" {
			if u.Password == "" {
				return nil, fmt.Errorf("auth user %q has no password or password_hash", u.Username)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password for %q: %w", u.Username, err)
			}
			u.PasswordHash = string(hash)
		}
		u.Password = ""
		users[u.Username] = u
	}

	return &Service{
		users:      users,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}, nil
}

// Authenticate performs authentication based on the login request
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	switch req.Method {
	case AuthMethodBasic:
		return s.authenticateBasic(ctx, req.Username, req.Password)
	case AuthMethodJWT:
		return s.authenticateJWT(ctx, req.Token)
	default:
		return &AuthResult{Success: false}, fmt.Errorf("unsupported auth method: %s", req.Method)
	}
}

// authenticateBasic performs username/password authentication
func (s *Service) authenticateBasic(_ context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	user, ok := s.users[username]
	if !ok {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return &AuthResult{Success: false}, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResult{
		Success:  true,
		Username: user.Username,
		Roles:    user.Roles,
		Token:    token,
	}, nil
}

// authenticateJWT validates a JWT token
func (s *Service) authenticateJWT(_ context.Context, tokenString string) (*AuthResult, error) {
	if tokenString == "" {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	return &AuthResult{
		Success:  true,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}

// generateJWT generates a JWT token for a user
func (s *Service) generateJWT(user User) (*Token, error) {
	expiresAt := time.Now().Add(s.tokenTTL)

	claims := &Claims{
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "upgradr",
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		Type:      "Bearer",
		Value:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}

// HasPermission checks if any of the roles grants an action on a resource
func (s *Service) HasPermission(userRoles []string, resource, action string) bool {
	rolePermissions := map[string][]Permission{
		"admin": {
			{Resource: "*", Action: "*"},
		},
		"operator": {
			{Resource: "status", Action: "read"},
			{Resource: "check", Action: "write"},
			{Resource: "offer", Action: "read"},
			{Resource: "offer", Action: "write"},
			{Resource: "settings", Action: "read"},
			{Resource: "skip", Action: "read"},
			{Resource: "skip", Action: "write"},
			{Resource: "history", Action: "read"},
		},
		"viewer": {
			{Resource: "status", Action: "read"},
			{Resource: "offer", Action: "read"},
			{Resource: "settings", Action: "read"},
			{Resource: "skip", Action: "read"},
			{Resource: "history", Action: "read"},
		},
	}

	for _, role := range userRoles {
		permissions, exists := rolePermissions[role]
		if !exists {
			continue
		}
		for _, perm := range permissions {
			if (perm.Resource == "*" || perm.Resource == resource) &&
				(perm.Action == "*" || perm.Action == action) {
				return true
			}
		}
	}

	return false
}

// HashPassword produces a bcrypt hash suitable for a password_hash entry
// in the configuration file.
func HashPassword(password string, cost int) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
