package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loykin/upgradr/internal/auth"
)

// Common error responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError sends a standardized error response
func respondError(c *gin.Context, statusCode int, errorCode, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// handleBindingError handles JSON binding errors
func handleBindingError(c *gin.Context, _ error) {
	respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
}

// AuthAPI provides authentication-related HTTP endpoints. Accounts are
// declared in the daemon configuration, so the API surface is login only.
type AuthAPI struct {
	authService *auth.Service
}

// NewAuthAPI creates a new auth API handler
func NewAuthAPI(authService *auth.Service) *AuthAPI {
	return &AuthAPI{
		authService: authService,
	}
}

// RegisterAuthEndpoints registers authentication endpoints to the router
func (api *AuthAPI) RegisterAuthEndpoints(r *gin.RouterGroup) {
	group := r.Group("/auth")
	{
		group.POST("/login", api.login)
	}
}

// login handles authentication requests
func (api *AuthAPI) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindingError(c, err)
		return
	}

	result, err := api.authService.Authenticate(c.Request.Context(), req)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	if !result.Success {
		respondError(c, http.StatusUnauthorized, "authentication_failed", "Invalid credentials")
		return
	}

	c.JSON(http.StatusOK, result)
}
