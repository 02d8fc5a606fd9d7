package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sumire-bot/sumire/src/data"
)

// DashboardHandler issues one-time login codes for the web dashboard. The
// code is stored in Redis for five minutes and exchanged by the API for a
// JWT scoped to this guild.
type DashboardHandler struct {
	rdb          *redis.Client
	dashboardURL string
}

func NewDashboardHandler(rdb *redis.Client, dashboardURL string) *DashboardHandler {
	return &DashboardHandler{rdb: rdb, dashboardURL: dashboardURL}
}

func (h *DashboardHandler) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !hasManageGuild(i) {
		ephemeral(s, i, "Only server managers can access the dashboard.")
		return
	}

	user := interactionUser(i)
	code := uuid.NewString()
	if err := data.SetDashboardCode(context.Background(), h.rdb, code, i.GuildID, user.ID); err != nil {
		log.Printf("commands: store dashboard code: %v", err)
		ephemeral(s, i, "Could not create a login code right now.")
		return
	}

	url := h.dashboardURL
	if fromSettings := data.GetSetting("dashboard_url"); fromSettings != "" {
		url = fromSettings
	}
	ephemeral(s, i, fmt.Sprintf("Your one-time dashboard code is `%s` (valid 5 minutes).\nSign in at %s", code, url))
}
