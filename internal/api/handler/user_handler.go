package handler

import (
	"context"
	"net/http"

	"github.com/evetabi/furbito/internal/api/middleware"
	"github.com/evetabi/furbito/internal/service"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserHandler serves sign-up, sign-in, token refresh and the caller's profile.
type UserHandler struct {
	auth *service.AuthService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// Register creates an account and signs it in.
// POST /api/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	serveJSON(c, http.StatusCreated, h.auth.Register)
}

// Login exchanges credentials for a token pair.
// POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	serveJSON(c, http.StatusOK, func(ctx context.Context, req loginRequest) (*service.AuthResponse, error) {
		return h.auth.Login(ctx, req.Email, req.Password)
	})
}

// Refresh rotates a refresh token into a new pair.
// POST /api/auth/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	serveJSON(c, http.StatusOK, func(ctx context.Context, req refreshRequest) (*service.TokenPair, error) {
		return h.auth.RefreshToken(ctx, req.RefreshToken)
	})
}

// Me returns the caller's public profile.
// GET /api/me [JWT]
func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.auth.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, profile)
}
