package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Token         string
	GuildID       string
	MySQLDSN      string
	RedisURL      string
	DashboardURL  string
	SweepInterval time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	sweep, _ := strconv.Atoi(getenv("SWEEP_INTERVAL", "30"))
	return Config{
		Token:         getenv("DISCORD_TOKEN", ""),
		GuildID:       getenv("GUILD_ID", ""),
		MySQLDSN:      getenv("MYSQL_DSN", "sumire:sumire@tcp(127.0.0.1:3306)/sumire?parseTime=true"),
		RedisURL:      getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		DashboardURL:  getenv("DASHBOARD_URL", "http://localhost:3000"),
		SweepInterval: time.Duration(sweep) * time.Second,
	}
}
