package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, count, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"count": count,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError translates a service error into the envelope. Errors
// outside the domain taxonomy are logged by gin and reported as ERR_INTERNAL.
func respondDomainError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	respondError(c, status, code, msg)
}

// ──────────────────────────────────────────────────────────────────────────────
// Error mapping
// ──────────────────────────────────────────────────────────────────────────────

// errorCodes gives the sentinels with a dedicated client-facing code. It is
// checked in order, so more specific errors come first.
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrInvalidAmount, "ERR_INVALID_AMOUNT"},
	{domain.ErrNoOutcomes, "ERR_NO_OUTCOMES"},
	{domain.ErrInvalidOdds, "ERR_INVALID_ODDS"},
	{domain.ErrInvalidScore, "ERR_INVALID_SCORE"},
	{domain.ErrInvalidEvent, "ERR_INVALID_EVENT"},
	{domain.ErrInvalidStatus, "ERR_INVALID_STATUS"},
	{domain.ErrEventClosed, "ERR_EVENT_CLOSED"},
	{domain.ErrEventCancelled, "ERR_EVENT_CANCELLED"},
	{domain.ErrOutcomeNotPending, "ERR_OUTCOME_NOT_PENDING"},
	{domain.ErrOutcomeInUse, "ERR_OUTCOME_IN_USE"},
	{domain.ErrBetNotPending, "ERR_BET_NOT_PENDING"},
	{domain.ErrCancelWindowClosed, "ERR_CANCEL_WINDOW_CLOSED"},
	{domain.ErrConflictingSelections, "ERR_CONFLICTING_SELECTIONS"},
	{domain.ErrDuplicateMarket, "ERR_DUPLICATE_MARKET"},
	{domain.ErrEmailTaken, "ERR_EMAIL_TAKEN"},
	{domain.ErrUsernameTaken, "ERR_USERNAME_TAKEN"},
	{domain.ErrInvalidCredentials, "ERR_INVALID_CREDENTIALS"},
	{domain.ErrUserInactive, "ERR_USER_INACTIVE"},
	{domain.ErrSpinCooldown, "ERR_SPIN_COOLDOWN"},
	{domain.ErrTokenInvalid, "ERR_TOKEN_INVALID"},
	{domain.ErrNotBetOwner, "ERR_FORBIDDEN"},
	{domain.ErrForbidden, "ERR_FORBIDDEN"},
}

// ErrorStatus maps err to an HTTP status and error code. The status follows
// the taxonomy root; the code names the concrete sentinel where one exists.
func ErrorStatus(err error) (int, string) {
	var status int
	code := "ERR_INTERNAL"
	switch {
	case domain.IsValidation(err):
		status, code = http.StatusBadRequest, "ERR_VALIDATION"
	case domain.IsNotFound(err):
		status, code = http.StatusNotFound, "ERR_NOT_FOUND"
	case domain.IsInsufficientFunds(err):
		status, code = http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_FUNDS"
	case domain.IsConflict(err), domain.IsState(err):
		status, code = http.StatusConflict, "ERR_CONFLICT"
	case domain.IsAuthError(err):
		status, code = http.StatusForbidden, "ERR_FORBIDDEN"
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
	default:
		return http.StatusInternalServerError, code
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return status, ec.code
		}
	}
	return status, code
}

// ──────────────────────────────────────────────────────────────────────────────
// Request helpers
// ──────────────────────────────────────────────────────────────────────────────

// bindJSON decodes the request body into req, writing a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return false
	}
	return true
}

// serveJSON binds Req from the body, calls fn with it and writes the result
// with status.
func serveJSON[Req, Resp any](c *gin.Context, status int, fn func(context.Context, Req) (Resp, error)) {
	var req Req
	if !bindJSON(c, &req) {
		return
	}
	resp, err := fn(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, status, resp)
}

// paramID parses the :name path parameter as a UUID, writing a 400 on failure.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page/limit query params; maxLimit caps the page size.
func pagination(c *gin.Context, def, maxLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = def
	}
	return page, limit, (page - 1) * limit
}
