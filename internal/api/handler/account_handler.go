package handler

import (
	"net/http"

	"github.com/evetabi/furbito/internal/api/middleware"
	"github.com/evetabi/furbito/internal/service"
	"github.com/gin-gonic/gin"
)

// AccountHandler serves balances, ledger history, notification settings, the
// public ranking and the reward wheel.
type AccountHandler struct {
	accountSvc *service.AccountService
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// GetBalance godoc
// GET /api/account/balance [JWT]
func (h *AccountHandler) GetBalance(c *gin.Context) {
	balance, err := h.accountSvc.Balance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"balance": balance})
}

// GetHistory godoc
// GET /api/account/history?page=1&limit=20 [JWT]
func (h *AccountHandler) GetHistory(c *gin.Context) {
	page, limit, offset := pagination(c, 20, 100)
	entries, err := h.accountSvc.History(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// LinkTelegram godoc
// POST /api/account/telegram [JWT]
// Body: {"chat_id":123456789} or {"chat_id":null} to unlink.
func (h *AccountHandler) LinkTelegram(c *gin.Context) {
	var req service.LinkTelegramRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.accountSvc.LinkTelegram(c.Request.Context(), middleware.GetUserID(c), req); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"chat_id": req.ChatID})
}

// GetRanking godoc
// GET /api/users/ranking
func (h *AccountHandler) GetRanking(c *gin.Context) {
	ranking, err := h.accountSvc.Ranking(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ranking)
}

// GetSpinStatus godoc
// GET /api/rewards/spin-status [JWT]
func (h *AccountHandler) GetSpinStatus(c *gin.Context) {
	st, err := h.accountSvc.SpinStatus(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Spin godoc
// POST /api/rewards/spin [JWT]
func (h *AccountHandler) Spin(c *gin.Context) {
	res, err := h.accountSvc.Spin(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}
