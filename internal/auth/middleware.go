package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKey is used for context keys to avoid collisions
type ContextKey string

const (
	// ResultKey is the context key for auth result
	ResultKey ContextKey = "auth_result"
)

// Middleware provides authentication middleware for the HTTP API
type Middleware struct {
	authService *Service
	enabled     bool
}

// NewMiddleware creates authentication middleware. A nil service disables
// authentication entirely.
func NewMiddleware(service *Service, enabled bool) *Middleware {
	return &Middleware{
		authService: service,
		enabled:     enabled && service != nil,
	}
}

// GinAuth returns a Gin middleware function for authentication
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		authResult, err := m.authenticate(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "Authentication required",
			})
			c.Abort()
			return
		}

		if !authResult.Success {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "Invalid credentials",
			})
			c.Abort()
			return
		}

		c.Set(string(ResultKey), authResult)
		c.Next()
	}
}

// GinRequirePermission returns a Gin middleware that requires specific permissions
func (m *Middleware) GinRequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		authResult, exists := c.Get(string(ResultKey))
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_required",
				"message": "Authentication required",
			})
			c.Abort()
			return
		}

		result, ok := authResult.(*AuthResult)
		if !ok || !result.Success {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "Invalid authentication",
			})
			c.Abort()
			return
		}

		if !m.authService.HasPermission(result.Roles, resource, action) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "permission_denied",
				"message": "Insufficient permissions",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// authenticate extracts and validates authentication from HTTP request
func (m *Middleware) authenticate(r *http.Request) (*AuthResult, error) {
	// Try Authorization header first (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			req := LoginRequest{
				Method: AuthMethodJWT,
				Token:  parts[1],
			}
			return m.authService.Authenticate(r.Context(), req)
		}
	}

	// Try Basic Authentication
	username, password, ok := r.BasicAuth()
	if ok {
		req := LoginRequest{
			Method:   AuthMethodBasic,
			Username: username,
			Password: password,
		}
		return m.authService.Authenticate(r.Context(), req)
	}

	return &AuthResult{Success: false}, ErrInvalidCredentials
}
