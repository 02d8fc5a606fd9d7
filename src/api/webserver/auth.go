package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sumire-bot/sumire/src/data"
)

// Auth exchanges one-time codes issued by the bot's /dashboard command for
// session tokens.
type Auth struct {
	rdb    *redis.Client
	secret []byte
}

func NewAuth(rdb *redis.Client, secret []byte) Auth {
	return Auth{rdb: rdb, secret: secret}
}

func (a Auth) Token(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	guildID, userID, err := data.GetAndDelDashboardCode(c.Request.Context(), a.rdb, req.Code)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.JSON(http.StatusUnauthorized, gin.H{"err": "unknown or expired code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	token, err := IssueToken(a.secret, guildID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "guild": guildID})
}
