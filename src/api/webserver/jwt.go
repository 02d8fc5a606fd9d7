package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

// IssueToken signs a dashboard session token scoped to one guild.
func IssueToken(secret []byte, guildID, userID string) (string, error) {
	claims := jwt.MapClaims{
		"guild": guildID,
		"sub":   userID,
		"exp":   time.Now().Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTMiddleware validates the bearer token and exposes the guild and user it
// was issued for.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := c.GetHeader("Authorization")
		if !strings.HasPrefix(bearer, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tokenStr := bearer[7:]
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		guild, _ := claims["guild"].(string)
		sub, _ := claims["sub"].(string)
		if guild == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("guild", guild)
		c.Set("user", sub)
		c.Next()
	}
}
