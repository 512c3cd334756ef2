package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/config"
)

const PlayerIDKey = "player_id"

// ErrSessionExpired is returned for a well-formed token whose session was
// revoked or has lapsed.
var ErrSessionExpired = errors.New("session expired")

func sessionKey(tokenID string) string { return "session:" + tokenID }

// IssueToken signs a token for playerID and opens its session in the cache.
func IssueToken(ctx context.Context, sec config.SecurityConfig, c cache.Cache, playerID string) (string, *Claims, error) {
	tok, claims, err := GenerateToken(playerID, sec.JWTSecret, sec.JWTTTLH)
	if err != nil {
		return "", nil, err
	}
	if err := c.Set(ctx, sessionKey(claims.ID), playerID, sec.JWTTTLH); err != nil {
		return "", nil, err
	}
	return tok, claims, nil
}

// RevokeToken closes the session behind tokenStr.
func RevokeToken(ctx context.Context, sec config.SecurityConfig, c cache.Cache, tokenStr string) error {
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return err
	}
	return c.Del(ctx, sessionKey(claims.ID))
}

// Authenticate validates tokenStr and checks that its session is still open.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, tokenStr string) (*Claims, error) {
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return nil, err
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, sessionKey(claims.ID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	return tok, ok && tok != ""
}

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr, ok := BearerToken(ctx.GetHeader("Authorization"))
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := Authenticate(ctx.Request.Context(), sec, c, tokenStr)
		switch {
		case errors.Is(err, ErrSessionExpired):
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		case err != nil:
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx.Set(PlayerIDKey, claims.PlayerID)
		ctx.Next()
	}
}

// GetPlayerID retrieves the authenticated player ID from the Gin context.
func GetPlayerID(c *gin.Context) string {
	if v, exists := c.Get(PlayerIDKey); exists {
		return v.(string)
	}
	return ""
}
