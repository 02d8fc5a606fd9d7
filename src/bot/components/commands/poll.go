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
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

// PollHandler wires the /poll commands and vote buttons to the lifecycle
// controller.
type PollHandler struct {
	svc     *poll.Service
	limiter *components.UserRateLimiter
}

func NewPollHandler(svc *poll.Service, limiter *components.UserRateLimiter) *PollHandler {
	return &PollHandler{svc: svc, limiter: limiter}
}

func ephemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("commands: interaction respond: %v", err)
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func hasManageGuild(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageGuild != 0
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		out[opt.Name] = opt
	}
	return out
}

func (h *PollHandler) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case CommandPoll:
		h.handleCreate(s, i)
	case CommandPollEnd:
		h.handleEnd(s, i)
	}
}

func (h *PollHandler) handleCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)

	if !h.limiter.CanUse(user.ID) {
		wait := h.limiter.TimeUntilNext(user.ID)
		ephemeral(s, i, fmt.Sprintf("Please wait %s before creating another poll.", FormatDuration(wait)))
		return
	}

	opts := optionMap(i)
	question := opts["question"].StringValue()

	var labels []string
	for n := 1; n <= 10; n++ {
		if opt, ok := opts[fmt.Sprintf("option%d", n)]; ok {
			if v := strings.TrimSpace(opt.StringValue()); v != "" {
				labels = append(labels, v)
			}
		}
	}

	params := poll.CreateParams{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		AuthorID:  user.ID,
		Question:  question,
		Options:   labels,
	}
	if opt, ok := opts["duration"]; ok {
		d, err := ParseDuration(opt.StringValue())
		if err != nil {
			ephemeral(s, i, "Invalid duration. Use forms like `1d`, `12h`, `30m`.")
			return
		}
		if d < poll.MinDuration || d > poll.MaxDuration {
			ephemeral(s, i, "Duration must be between 1 minute and 4 weeks.")
			return
		}
		params.Duration = &d
	}
	if len(labels) < poll.MinOptions {
		ephemeral(s, i, "A poll needs at least 2 options.")
		return
	}

	// Publish the message first so the poll row can carry its id from the
	// start, the same order the vote buttons depend on.
	draft := &types.Poll{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		AuthorID:  user.ID,
		Question:  question,
		CreatedAt: time.Now(),
	}
	for idx, label := range labels {
		draft.Options = append(draft.Options, types.PollOption{Idx: idx, Label: label})
	}
	if params.Duration != nil {
		end := time.Now().Add(*params.Duration)
		draft.EndTime = &end
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{PollEmbed(draft, poll.Tally{})},
			Components: PollButtons(len(labels)),
		},
	})
	if err != nil {
		log.Printf("commands: poll publish: %v", err)
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		log.Printf("commands: fetch poll message: %v", err)
		return
	}
	params.MessageID = &msg.ID

	if _, err := h.svc.Create(context.Background(), params); err != nil {
		log.Printf("commands: create poll: %v", err)
		content := "Failed to save the poll; it will not accept votes."
		if _, editErr := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); editErr != nil {
			log.Printf("commands: poll failure edit: %v", editErr)
		}
		return
	}

	log.Printf("poll created by %s in %s: %q (%d options)", user.ID, i.ChannelID, question, len(labels))
}

func (h *PollHandler) handleEnd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	messageID := strings.TrimSpace(opts["message_id"].StringValue())
	if _, err := strconv.ParseUint(messageID, 10, 64); err != nil {
		ephemeral(s, i, "That does not look like a message ID.")
		return
	}

	ctx := context.Background()
	p, err := h.svc.GetByMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, poll.ErrNotFound) {
			ephemeral(s, i, "No poll found for that message.")
			return
		}
		log.Printf("commands: poll lookup: %v", err)
		ephemeral(s, i, "Something went wrong looking up the poll.")
		return
	}

	user := interactionUser(i)
	if p.AuthorID != user.ID && !hasManageGuild(i) {
		ephemeral(s, i, "Only the poll's creator or a server manager can end it.")
		return
	}

	_, ranking, err := h.svc.Close(ctx, p.ID)
	switch {
	case errors.Is(err, poll.ErrAlreadyClosed):
		ephemeral(s, i, "That poll has already been ended.")
		return
	case err != nil:
		log.Printf("commands: close poll %d: %v", p.ID, err)
		ephemeral(s, i, "Something went wrong ending the poll.")
		return
	}

	winner := ""
	if len(ranking) > 0 && ranking[0].Count > 0 {
		winner = fmt.Sprintf(" **%s** leads.", ranking[0].Label)
	}
	ephemeral(s, i, fmt.Sprintf("Poll ended.%s", winner))
}

// HandleComponent processes a vote button click.
func (h *PollHandler) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	idx, err := strconv.Atoi(strings.TrimPrefix(customID, VotePrefix))
	if err != nil {
		log.Printf("commands: bad vote custom id %q", customID)
		return
	}

	ctx := context.Background()
	p, err := h.svc.GetByMessage(ctx, i.Message.ID)
	if err != nil {
		if errors.Is(err, poll.ErrNotFound) {
			ephemeral(s, i, "This poll no longer exists.")
			return
		}
		log.Printf("commands: vote lookup: %v", err)
		ephemeral(s, i, "Something went wrong recording your vote.")
		return
	}

	user := interactionUser(i)
	_, err = h.svc.Vote(ctx, p.ID, user.ID, idx)
	switch {
	case errors.Is(err, poll.ErrClosed):
		ephemeral(s, i, "This poll has ended.")
	case errors.Is(err, poll.ErrInvalidOption):
		ephemeral(s, i, "That option does not exist.")
	case err != nil:
		log.Printf("commands: vote on poll %d: %v", p.ID, err)
		ephemeral(s, i, "Something went wrong recording your vote.")
	default:
		label := ""
		if idx < len(p.Options) {
			label = p.Options[idx].Label
		}
		ephemeral(s, i, fmt.Sprintf("Your vote for **%s** is in.", label))
	}
}
