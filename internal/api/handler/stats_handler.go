package handler

import (
	"net/http"
	"strconv"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/service"
	"github.com/gin-gonic/gin"
)

// StatsHandler serves player leaderboards, squads and the league table.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// TopScorers godoc
// GET /api/players/top-scorers?limit=10
func (h *StatsHandler) TopScorers(c *gin.Context) {
	players, err := h.stats.TopScorers(c.Request.Context(), topLimit(c))
	h.respond(c, players, err)
}

// TopAssisters godoc
// GET /api/players/top-assisters?limit=10
func (h *StatsHandler) TopAssisters(c *gin.Context) {
	players, err := h.stats.TopAssisters(c.Request.Context(), topLimit(c))
	h.respond(c, players, err)
}

// Teams godoc
// GET /api/players/teams
func (h *StatsHandler) Teams(c *gin.Context) {
	teams, err := h.stats.Teams(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, teams)
}

// Squad godoc
// GET /api/players/team/:team
func (h *StatsHandler) Squad(c *gin.Context) {
	players, err := h.stats.Squad(c.Request.Context(), c.Param("team"))
	h.respond(c, players, err)
}

// PlayerStats godoc
// GET /api/players/:id/stats
func (h *StatsHandler) PlayerStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.stats.PlayerStats(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Standings godoc
// GET /api/league/standings
func (h *StatsHandler) Standings(c *gin.Context) {
	table, err := h.stats.Standings(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, table)
}

// Results godoc
// GET /api/league/results
func (h *StatsHandler) Results(c *gin.Context) {
	fixtures, err := h.stats.Results(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, fixtures)
}

func (h *StatsHandler) respond(c *gin.Context, players []*domain.Player, err error) {
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, players)
}

// topLimit reads ?limit, capped at 50. Zero falls back to the service default.
func topLimit(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return min(max(n, 0), 50)
}
