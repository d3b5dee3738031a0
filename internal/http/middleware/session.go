package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// SessionMiddleware reads the caller's backend session. The token is kept in
// the request context and forwarded on every backend call; its subject scopes
// player sessions.
type SessionMiddleware struct {
	log        *logger.Logger
	secret     []byte
	cookieName string
}

// NewSessionMiddleware verifies HS256 tokens when secret is set. Without a
// secret the backend stays the verifier and claims are read unverified.
func NewSessionMiddleware(log *logger.Logger, secret, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{
		log:        log.With("Middleware", "SessionMiddleware"),
		secret:     []byte(strings.TrimSpace(secret)),
		cookieName: strings.TrimSpace(cookieName),
	}
}

func (sm *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sm.extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		subject, err := sm.Subject(tokenString)
		if err != nil {
			sm.log.Debug("rejected session token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		ctx := ctxutil.WithSession(c.Request.Context(), &ctxutil.Session{Token: tokenString, Subject: subject})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Subject returns the token's subject. Opaque tokens, accepted only without a
// secret, are identified by their digest.
func (sm *SessionMiddleware) Subject(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	if len(sm.secret) > 0 {
		parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return sm.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", fmt.Errorf("failed to parse token: %w", err)
		}
		if !parsed.Valid {
			return "", fmt.Errorf("invalid or expired token")
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		sum := sha256.Sum256([]byte(tokenString))
		return "token:" + hex.EncodeToString(sum[:8]), nil
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		for _, k := range []string{"id", "userId", "uid"} {
			if v, ok := claims[k].(string); ok && v != "" {
				sub = v
				break
			}
		}
	}
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func (sm *SessionMiddleware) extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if sm.cookieName != "" {
		if v, err := c.Cookie(sm.cookieName); err == nil {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
