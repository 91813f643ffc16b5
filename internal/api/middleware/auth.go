package middleware

import (
	"net/http"
	"strings"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Authenticator resolves a bearer access token. Implemented by
// service.AuthService.
type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

const identityKey = "furbito.identity"

// Authenticate requires a valid access token in the Authorization header and
// stores the caller on the context for Caller and GetUserID.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", domain.ErrUnauthorized)
			return
		}
		id, err := auth.Authenticate(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "ERR_TOKEN_INVALID", domain.ErrTokenInvalid)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin lets only administrators through. It must follow Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Caller(c).Role.IsAdmin() {
			abortError(c, http.StatusForbidden, "ERR_FORBIDDEN", domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

// AllowIPs rejects clients outside a comma-separated allowlist. An empty
// list admits everyone.
func AllowIPs(list string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if len(allowed) > 0 {
			if _, ok := allowed[c.ClientIP()]; !ok {
				abortMessage(c, http.StatusForbidden, "ERR_IP_DENIED", "access denied: your IP is not whitelisted")
				return
			}
		}
		c.Next()
	}
}

// Caller returns the identity stored by Authenticate, or the zero Identity
// on unauthenticated routes.
func Caller(c *gin.Context) domain.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(domain.Identity)
	return id
}

// GetUserID is Caller(c).UserID.
func GetUserID(c *gin.Context) uuid.UUID {
	return Caller(c).UserID
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// abortError stops the chain with the API error envelope.
func abortError(c *gin.Context, status int, code string, err error) {
	abortMessage(c, status, code, err.Error())
}

func abortMessage(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
