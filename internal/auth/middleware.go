package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studentdesk/internal/session"
)

const sessionKey = "session"

// Middleware enforces bearer JWT tokens signed with HS256 and attaches the
// reconstructed session to the request context.
func Middleware(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sess := session.Anonymous()
		switch claims.Role {
		case session.RoleAdmin:
			sess = sess.LoginAdmin(claims.Subject)
		case session.RoleStudent:
			sess = sess.LoginStudent(claims.Subject)
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireRole rejects sessions whose role differs.
func RequireRole(role session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if FromContext(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// FromContext returns the session attached by Middleware, or the anonymous
// session when none is present.
func FromContext(c *gin.Context) session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return session.Anonymous()
	}
	sess, ok := v.(session.Session)
	if !ok {
		return session.Anonymous()
	}
	return sess
}
