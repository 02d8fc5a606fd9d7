package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sumire-bot/sumire/src/bot/bot"
	"github.com/sumire-bot/sumire/src/bot/config"
	"github.com/sumire-bot/sumire/src/data"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	rdb := data.MustRedis(cfg.RedisURL)

	b, err := bot.New(bot.Config{
		Token:         cfg.Token,
		GuildID:       cfg.GuildID,
		DashboardURL:  cfg.DashboardURL,
		SweepInterval: cfg.SweepInterval,
		DB:            db,
		Redis:         rdb,
	})
	if err != nil {
		log.Fatalf("create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("start bot: %v", err)
	}
	log.Println("Sumire bot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	b.Stop()
	log.Println("Sumire bot stopped gracefully")
}
