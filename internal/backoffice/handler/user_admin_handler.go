package handler

import (
	"net/http"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/gin-gonic/gin"
)

// UserAdminHandler serves /admin/users endpoints.
type UserAdminHandler struct {
	accountSvc *service.AccountService
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(accountSvc *service.AccountService) *UserAdminHandler {
	return &UserAdminHandler{accountSvc: accountSvc}
}

// List godoc
// GET /admin/users?page=1&limit=50
func (h *UserAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	users, err := h.accountSvc.ListUsers(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, users, len(users), page, limit)
}

// Detail godoc
// GET /admin/users/:id
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	profile, history, err := h.accountSvc.Profile(c.Request.Context(), id, 50)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user":    profile,
		"history": history,
	})
}

// Suspend godoc
// POST /admin/users/:id/suspend
func (h *UserAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate godoc
// POST /admin/users/:id/activate
func (h *UserAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserAdminHandler) setActive(c *gin.Context, active bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.accountSvc.SetActive(c.Request.Context(), id, active); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "is_active": active})
}

// AdjustBalance godoc
// POST /admin/users/:id/balance
// Body: {"amount": "-5.00", "reason": "duplicate bonus"}
func (h *UserAdminHandler) AdjustBalance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AdjustBalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.accountSvc.AdjustBalance(c.Request.Context(), id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user_id":     id,
		"entry":       entry,
		"new_balance": entry.BalanceAfter,
	})
}

// SetRole godoc
// POST /admin/users/:id/role
// Body: {"role": "admin"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	role := domain.UserRole(body.Role)
	if err := h.accountSvc.SetRole(c.Request.Context(), id, role); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "role": role})
}
