package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sumire-bot/sumire/src/data"
	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/poll"
)

// Config carries everything the dashboard API needs to serve requests.
type Config struct {
	JWTSecret string
	DB        *gorm.DB
	Redis     *redis.Client
}

// New builds the dashboard router. All data routes sit behind the JWT
// middleware; only the code-for-token exchange is public.
func New(cfg Config) *gin.Engine {
	// Renders go onto the event stream; the bot bridges them back onto the
	// published Discord messages.
	store := poll.NewGormStore(cfg.DB)
	pollSvc := poll.NewService(store, data.NewPollEventSink(cfg.Redis, data.SourceAPI))
	gwaySvc := giveaway.NewService(cfg.DB, data.NewGiveawayEventSink(cfg.Redis, data.SourceAPI))

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	secret := []byte(cfg.JWTSecret)
	auth := NewAuth(cfg.Redis, secret)
	polls := NewPolls(pollSvc, store)
	gways := NewGiveaways(gwaySvc)

	limiter := NewRateLimiter(30, time.Minute)

	v1 := r.Group("/v1")
	v1.POST("/auth/token", RateLimitMiddleware(limiter), auth.Token)

	secured := v1.Group("")
	secured.Use(JWTMiddleware(secret), RateLimitMiddleware(limiter))
	{
		secured.GET("/polls", polls.List)
		secured.GET("/polls/:id", polls.Get)
		secured.POST("/polls", polls.Create)
		secured.POST("/polls/:id/close", polls.Close)

		secured.GET("/giveaways", gways.List)
		secured.GET("/giveaways/:id", gways.Get)
		secured.POST("/giveaways/:id/reroll", gways.Reroll)
	}

	return r
}
