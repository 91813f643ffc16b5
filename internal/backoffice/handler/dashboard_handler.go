package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/gin-gonic/gin"
)

// Syncer runs one feed synchronisation on demand.
type Syncer interface {
	Run(ctx context.Context) (*service.SyncReport, error)
}

// Connections reports live WebSocket clients.
type Connections interface {
	ConnectedCount() int
}

// DashboardHandler serves the /admin/dashboard and /admin/sync endpoints.
type DashboardHandler struct {
	eventSvc *service.EventService
	syncer   Syncer
	hub      Connections
}

// NewDashboardHandler creates a DashboardHandler. syncer and hub may be nil.
func NewDashboardHandler(eventSvc *service.EventService, syncer Syncer, hub Connections) *DashboardHandler {
	return &DashboardHandler{eventSvc: eventSvc, syncer: syncer, hub: hub}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	// ── Events per status ────────────────────────────────────────────────────
	counts := make(gin.H)
	for _, st := range []domain.EventStatus{
		domain.EventUpcoming, domain.EventLive, domain.EventFinished,
		domain.EventCompleted, domain.EventCancelled,
	} {
		events, err := h.eventSvc.ListEvents(ctx, store.EventFilter{Statuses: []domain.EventStatus{st}})
		if err != nil {
			respondDomainError(c, err)
			return
		}
		counts[string(st)] = len(events)
	}

	// ── Awaiting a result ────────────────────────────────────────────────────
	overdue, err := h.eventSvc.ListEvents(ctx, store.EventFilter{
		Statuses:     []domain.EventStatus{domain.EventLive, domain.EventFinished},
		StartsBefore: time.Now().Add(-3 * time.Hour),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	// ── WS connections ────────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":       time.Now().UTC(),
		"events":          counts,
		"awaiting_result": overdue,
		"ws_connections":  wsConnections,
	})
}

// Sync godoc
// POST /admin/sync
// Runs the feed synchronisation now. A partial failure still returns the
// report together with the error text.
func (h *DashboardHandler) Sync(c *gin.Context) {
	if h.syncer == nil {
		respondError(c, http.StatusServiceUnavailable, "ERR_SYNC_DISABLED", "feed synchronisation is not configured")
		return
	}
	report, err := h.syncer.Run(c.Request.Context())
	if err != nil && report == nil {
		respondError(c, http.StatusBadGateway, "ERR_FEED_UNAVAILABLE", err.Error())
		return
	}
	data := gin.H{"report": report}
	if err != nil {
		data["errors"] = err.Error()
	}
	respondSuccess(c, http.StatusOK, data)
}
