package handler

import (
	"net/http"
	"strings"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EventAdminHandler serves /admin/events, /admin/outcomes and
// /admin/players endpoints.
type EventAdminHandler struct {
	eventSvc *service.EventService
}

// NewEventAdminHandler creates an EventAdminHandler.
func NewEventAdminHandler(eventSvc *service.EventService) *EventAdminHandler {
	return &EventAdminHandler{eventSvc: eventSvc}
}

// ── Events ────────────────────────────────────────────────────────────────────

// List godoc
// GET /admin/events?status=COMPLETED&page=1&limit=50
// Without a status filter every event is listed.
func (h *EventAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)

	var statuses []domain.EventStatus
	if q := c.Query("status"); q != "" {
		for _, s := range strings.Split(q, ",") {
			statuses = append(statuses, domain.EventStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	events, err := h.eventSvc.ListEvents(c.Request.Context(), store.EventFilter{
		Statuses: statuses,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, events, len(events), page, limit)
}

// Detail godoc
// GET /admin/events/:id
func (h *EventAdminHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ev, err := h.eventSvc.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// Create godoc
// POST /admin/events
// Body: {"home_team":"Leones","away_team":"Halcones","starts_at":"2026-05-01T20:00:00Z","notify_users":true}
func (h *EventAdminHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	ev, err := h.eventSvc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ev)
}

// Clone godoc
// POST /admin/events/:id/clone
// Body: {"starts_at":"2026-05-08T20:00:00Z"} (optional)
func (h *EventAdminHandler) Clone(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CloneEventRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	ev, err := h.eventSvc.CloneEvent(c.Request.Context(), id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ev)
}

// Cancel godoc
// POST /admin/events/:id/cancel
func (h *EventAdminHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.eventSvc.CancelEvent(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// Resolve godoc
// POST /admin/events/:id/resolve
// Body: {"home_goals":2,"away_goals":1}
func (h *EventAdminHandler) Resolve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		HomeGoals *int `json:"home_goals" binding:"required"`
		AwayGoals *int `json:"away_goals" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	res, err := h.eventSvc.ResolveEvent(c.Request.Context(), id, service.ResolveEventRequest{
		HomeGoals: *body.HomeGoals,
		AwayGoals: *body.AwayGoals,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// Regenerate godoc
// POST /admin/events/:id/regenerate
func (h *EventAdminHandler) Regenerate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.eventSvc.RegenerateOdds(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// ── Outcomes ──────────────────────────────────────────────────────────────────

// AddOutcome godoc
// POST /admin/events/:id/outcomes
// Body: {"description":"Más de 2.5","group":"Goles - Más de","odds":"1.85"}
func (h *EventAdminHandler) AddOutcome(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AddOutcomeRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.eventSvc.AddOutcome(c.Request.Context(), id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, o.ToView())
}

// DeleteOutcome godoc
// DELETE /admin/outcomes/:id
func (h *EventAdminHandler) DeleteOutcome(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.eventSvc.DeleteOutcome(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"outcome_id": id, "deleted": true})
}

// SetOdds godoc
// POST /admin/outcomes/:id/odds
// Body: {"odds":"2.10"}
func (h *EventAdminHandler) SetOdds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Odds decimal.Decimal `json:"odds" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	o, err := h.eventSvc.SetOutcomeOdds(c.Request.Context(), id, body.Odds)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, o.ToView())
}

// Correct godoc
// POST /admin/outcomes/:id/correct
// Body: {"status":"WON"}
func (h *EventAdminHandler) Correct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	status := domain.OutcomeStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	o, report, err := h.eventSvc.CorrectOutcome(c.Request.Context(), id, status)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"outcome":    o.ToView(),
		"settlement": report,
	})
}

// ── Players ───────────────────────────────────────────────────────────────────

// RecalculatePlayer godoc
// POST /admin/players/:id/recalculate
func (h *EventAdminHandler) RecalculatePlayer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.eventSvc.RecalculatePlayerOdds(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"player_id": id, "repriced": n})
}
