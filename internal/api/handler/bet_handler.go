package handler

import (
	"encoding/json"
	"net/http"

	"github.com/evetabi/furbito/internal/api/middleware"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// placeBetBody carries no binding rules: an empty slip or a missing amount
// reaches the service, which reports them in a fixed order.
type placeBetBody struct {
	OutcomeIDs []string        `json:"outcome_ids"`
	Amount     json.RawMessage `json:"amount"` // number or decimal string
}

// BetHandler serves bet placement and cancellation endpoints.
type BetHandler struct {
	betSvc *service.BetService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(betSvc *service.BetService) *BetHandler {
	return &BetHandler{betSvc: betSvc}
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"outcome_ids":["uuid", ...],"amount":"10.00"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var body placeBetBody
	if !bindJSON(c, &body) {
		return
	}

	ids := make([]uuid.UUID, 0, len(body.OutcomeIDs))
	for _, s := range body.OutcomeIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_OUTCOME_ID", "invalid outcome id: "+s)
			return
		}
		ids = append(ids, id)
	}

	var amount decimal.Decimal
	if len(body.Amount) > 0 && string(body.Amount) != "null" {
		if err := amount.UnmarshalJSON(body.Amount); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a decimal")
			return
		}
	}

	bet, err := h.betSvc.PlaceBet(c.Request.Context(), middleware.GetUserID(c), service.PlaceBetRequest{
		OutcomeIDs: ids,
		Amount:     amount,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, bet)
}

// CancelBet godoc
// POST /api/bets/:id/cancel [JWT]
func (h *BetHandler) CancelBet(c *gin.Context) {
	betID, ok := paramID(c, "id")
	if !ok {
		return
	}
	bet, err := h.betSvc.CancelBet(c.Request.Context(), betID, middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}

// GetMyBets godoc
// GET /api/bets/my?page=1&limit=20 [JWT]
func (h *BetHandler) GetMyBets(c *gin.Context) {
	page, limit, offset := pagination(c, 20, 100)
	bets, err := h.betSvc.ListUserBets(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, bets, len(bets), page, limit)
}

// GetUserBets lists another user's bets.
// GET /api/bets/user/:id/public?page=1&limit=20
func (h *BetHandler) GetUserBets(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, limit, offset := pagination(c, 20, 100)
	bets, err := h.betSvc.PublicUserBets(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	summaries := make([]domain.BetSummary, 0, len(bets))
	for _, b := range bets {
		summaries = append(summaries, b.Summary())
	}
	respondList(c, summaries, len(summaries), page, limit)
}

// GetBetByID godoc
// GET /api/bets/:id [JWT]
func (h *BetHandler) GetBetByID(c *gin.Context) {
	betID, ok := paramID(c, "id")
	if !ok {
		return
	}
	bet, err := h.betSvc.GetBet(c.Request.Context(), betID, middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}

// GetWinningBets lists who bet on an event and what they won.
// GET /api/events/:id/winning-bets
func (h *BetHandler) GetWinningBets(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	bettors, err := h.betSvc.EventResults(c.Request.Context(), eventID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bettors)
}
