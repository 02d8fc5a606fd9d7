package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sumire-bot/sumire/src/bot/components"
	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/types"
)

// GiveawayHandler wires the /giveaway commands and the enter button to the
// giveaway service.
type GiveawayHandler struct {
	svc     *giveaway.Service
	limiter *components.UserRateLimiter
}

func NewGiveawayHandler(svc *giveaway.Service, limiter *components.UserRateLimiter) *GiveawayHandler {
	return &GiveawayHandler{svc: svc, limiter: limiter}
}

func (h *GiveawayHandler) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case CommandGiveaway:
		h.handleStart(s, i)
	case CommandGiveawayEnd:
		h.handleEnd(s, i)
	case CommandGiveawayReroll:
		h.handleReroll(s, i)
	}
}

func (h *GiveawayHandler) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if !hasManageGuild(i) {
		ephemeral(s, i, "Only server managers can start giveaways.")
		return
	}
	if !h.limiter.CanUse(user.ID) {
		wait := h.limiter.TimeUntilNext(user.ID)
		ephemeral(s, i, fmt.Sprintf("Please wait %s before starting another giveaway.", FormatDuration(wait)))
		return
	}

	opts := optionMap(i)
	prize := strings.TrimSpace(opts["prize"].StringValue())
	duration, err := ParseDuration(opts["duration"].StringValue())
	if err != nil {
		ephemeral(s, i, "Invalid duration. Use forms like `1d`, `12h`, `30m`.")
		return
	}
	winners := 1
	if opt, ok := opts["winners"]; ok {
		winners = int(opt.IntValue())
	}

	draft := &types.Giveaway{
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		HostID:      user.ID,
		Prize:       prize,
		WinnerCount: winners,
		EndTime:     time.Now().Add(duration),
		CreatedAt:   time.Now(),
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{GiveawayEmbed(draft, 0)},
			Components: GiveawayButton(),
		},
	})
	if err != nil {
		log.Printf("commands: giveaway publish: %v", err)
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		log.Printf("commands: fetch giveaway message: %v", err)
		return
	}

	_, err = h.svc.Create(context.Background(), giveaway.CreateParams{
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		MessageID:   msg.ID,
		HostID:      user.ID,
		Prize:       prize,
		WinnerCount: winners,
		Duration:    duration,
	})
	if err != nil {
		log.Printf("commands: create giveaway: %v", err)
		content := "Failed to save the giveaway; entries will not be recorded."
		if _, editErr := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); editErr != nil {
			log.Printf("commands: giveaway failure edit: %v", editErr)
		}
		return
	}

	log.Printf("giveaway started by %s in %s: %q (%d winners, %s)", user.ID, i.ChannelID, prize, winners, FormatDuration(duration))
}

func (h *GiveawayHandler) lookup(s *discordgo.Session, i *discordgo.InteractionCreate) (*types.Giveaway, bool) {
	opts := optionMap(i)
	messageID := strings.TrimSpace(opts["message_id"].StringValue())
	if _, err := strconv.ParseUint(messageID, 10, 64); err != nil {
		ephemeral(s, i, "That does not look like a message ID.")
		return nil, false
	}

	g, err := h.svc.GetByMessage(context.Background(), messageID)
	if err != nil {
		if errors.Is(err, giveaway.ErrNotFound) {
			ephemeral(s, i, "No giveaway found for that message.")
			return nil, false
		}
		log.Printf("commands: giveaway lookup: %v", err)
		ephemeral(s, i, "Something went wrong looking up the giveaway.")
		return nil, false
	}

	user := interactionUser(i)
	if g.HostID != user.ID && !hasManageGuild(i) {
		ephemeral(s, i, "Only the host or a server manager can do that.")
		return nil, false
	}
	return g, true
}

func (h *GiveawayHandler) handleEnd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	g, ok := h.lookup(s, i)
	if !ok {
		return
	}

	_, winners, err := h.svc.End(context.Background(), g.ID)
	switch {
	case errors.Is(err, giveaway.ErrAlreadyEnded):
		ephemeral(s, i, "That giveaway has already ended.")
		return
	case err != nil:
		log.Printf("commands: end giveaway %d: %v", g.ID, err)
		ephemeral(s, i, "Something went wrong ending the giveaway.")
		return
	}

	h.announce(s, g, winners)
	ephemeral(s, i, fmt.Sprintf("Giveaway ended with %d winner(s).", len(winners)))
}

func (h *GiveawayHandler) handleReroll(s *discordgo.Session, i *discordgo.InteractionCreate) {
	g, ok := h.lookup(s, i)
	if !ok {
		return
	}

	count := 0
	if opt, ok := optionMap(i)["count"]; ok {
		count = int(opt.IntValue())
	}

	winners, err := h.svc.Reroll(context.Background(), g.ID, count)
	switch {
	case errors.Is(err, giveaway.ErrNoEligible):
		ephemeral(s, i, "Everyone who entered has already won; nobody is left to draw.")
		return
	case err != nil:
		log.Printf("commands: reroll giveaway %d: %v", g.ID, err)
		ephemeral(s, i, "Something went wrong rerolling the giveaway.")
		return
	}

	h.announce(s, g, winners)
	ephemeral(s, i, fmt.Sprintf("Redrew %d winner(s).", len(winners)))
}

func (h *GiveawayHandler) announce(s *discordgo.Session, g *types.Giveaway, winners []string) {
	if len(winners) == 0 {
		if _, err := s.ChannelMessageSend(g.ChannelID, fmt.Sprintf("The giveaway for **%s** ended with no entries.", g.Prize)); err != nil {
			log.Printf("commands: giveaway announce: %v", err)
		}
		return
	}
	mentions := make([]string, 0, len(winners))
	for _, w := range winners {
		mentions = append(mentions, "<@"+w+">")
	}
	text := fmt.Sprintf("🎉 Congratulations %s! You won **%s**!", strings.Join(mentions, ", "), g.Prize)
	if _, err := s.ChannelMessageSend(g.ChannelID, text); err != nil {
		log.Printf("commands: giveaway announce: %v", err)
	}
}

// HandleComponent processes an enter-button click.
func (h *GiveawayHandler) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	g, err := h.svc.GetByMessage(context.Background(), i.Message.ID)
	if err != nil {
		if errors.Is(err, giveaway.ErrNotFound) {
			ephemeral(s, i, "This giveaway no longer exists.")
			return
		}
		log.Printf("commands: giveaway entry lookup: %v", err)
		ephemeral(s, i, "Something went wrong.")
		return
	}

	user := interactionUser(i)
	entered, _, err := h.svc.ToggleEntry(context.Background(), g.ID, user.ID)
	switch {
	case errors.Is(err, giveaway.ErrEnded):
		ephemeral(s, i, "This giveaway has ended.")
	case err != nil:
		log.Printf("commands: toggle entry on %d: %v", g.ID, err)
		ephemeral(s, i, "Something went wrong recording your entry.")
	case entered:
		ephemeral(s, i, "You're in! Press the button again to withdraw.")
	default:
		ephemeral(s, i, "You have withdrawn from this giveaway.")
	}
}
