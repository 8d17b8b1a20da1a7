package middleware

import (
	"net/http"
	"strings"

	"conductor/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const operatorKey = "operator"

// OperatorClaims is the token payload issued by the back office.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired validates an HS256 bearer token. With an empty secret the
// device runs unauthenticated and every request passes.
func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			abortAuth(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := &OperatorClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(strings.TrimPrefix(raw, "Bearer ")), claims,
			func(*jwt.Token) (any, error) { return key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(operatorKey, domain.RequestContext{Subject: claims.Subject, Role: claims.Role})
		c.Next()
	}
}

// RequireRoles only applies when AuthRequired stored an operator.
func RequireRoles(secret string, roles ...string) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, r := range roles {
		allowed[strings.ToLower(r)] = true
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		op, ok := GetOperator(c)
		if !ok || !allowed[strings.ToLower(op.Role)] {
			abortAuth(c, http.StatusForbidden, "role not allowed")
			return
		}
		c.Next()
	}
}

// GetOperator returns the authenticated operator when present.
func GetOperator(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	op, ok := v.(domain.RequestContext)
	return op, ok
}

func abortAuth(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"code":       strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		"request_id": GetRequestID(c),
		"message":    msg,
	})
}
