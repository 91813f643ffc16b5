package handler

import (
	"net/http"
	"strings"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/gin-gonic/gin"
)

// EventHandler serves the public event catalogue.
type EventHandler struct {
	eventSvc *service.EventService
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(eventSvc *service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// ListEvents godoc
// GET /api/events?status=UPCOMING,LIVE&page=1&limit=20
// Without a status filter only UPCOMING and LIVE events are listed.
func (h *EventHandler) ListEvents(c *gin.Context) {
	page, limit, offset := pagination(c, 20, 100)

	statuses := []domain.EventStatus{domain.EventUpcoming, domain.EventLive}
	if q := c.Query("status"); q != "" {
		statuses = statuses[:0]
		for _, s := range strings.Split(q, ",") {
			st := domain.EventStatus(strings.ToUpper(strings.TrimSpace(s)))
			switch st {
			case domain.EventUpcoming, domain.EventLive, domain.EventFinished, domain.EventCompleted, domain.EventCancelled:
				statuses = append(statuses, st)
			default:
				respondError(c, http.StatusBadRequest, "ERR_INVALID_STATUS", "unknown event status: "+s)
				return
			}
		}
	}

	events, err := h.eventSvc.ListEvents(c.Request.Context(), store.EventFilter{
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, events, len(events), page, limit)
}

// GetEvent godoc
// GET /api/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
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
