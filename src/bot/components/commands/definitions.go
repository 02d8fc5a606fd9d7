package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandPoll           = "poll"
	CommandPollEnd        = "poll-end"
	CommandGiveaway       = "giveaway"
	CommandGiveawayEnd    = "giveaway-end"
	CommandGiveawayReroll = "giveaway-reroll"
	CommandDashboard      = "dashboard"
)

// VotePrefix is the custom id prefix of poll vote buttons; the option index
// follows it.
const VotePrefix = "poll_vote_"

// EnterID is the custom id of the giveaway entry button.
const EnterID = "giveaway_enter"

func pollOptions() []*discordgo.ApplicationCommandOption {
	opts := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "question",
			Description: "The question to ask",
			Required:    true,
		},
	}
	for i := 1; i <= 10; i++ {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        fmt.Sprintf("option%d", i),
			Description: fmt.Sprintf("Choice %d", i),
			Required:    i <= 2,
		})
	}
	opts = append(opts, &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "duration",
		Description: "How long the poll runs (e.g. 1d, 12h, 30m); empty for no deadline",
	})
	return opts
}

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandPoll: {
		Name:        CommandPoll,
		Description: "Create a poll",
		Options:     pollOptions(),
	},
	CommandPollEnd: {
		Name:        CommandPollEnd,
		Description: "End a poll",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message_id",
				Description: "Message ID of the poll",
				Required:    true,
			},
		},
	},
	CommandGiveaway: {
		Name:        CommandGiveaway,
		Description: "Start a giveaway",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prize",
				Description: "What is being given away",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "duration",
				Description: "How long the giveaway runs (e.g. 1d, 12h, 30m)",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "winners",
				Description: "Number of winners (default 1)",
			},
		},
	},
	CommandGiveawayEnd: {
		Name:        CommandGiveawayEnd,
		Description: "End a giveaway and draw winners",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message_id",
				Description: "Message ID of the giveaway",
				Required:    true,
			},
		},
	},
	CommandGiveawayReroll: {
		Name:        CommandGiveawayReroll,
		Description: "Redraw winners for an ended giveaway",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message_id",
				Description: "Message ID of the giveaway",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many winners to redraw (default: original winner count)",
			},
		},
	},
	CommandDashboard: {
		Name:        CommandDashboard,
		Description: "Get a one-time login code for the web dashboard",
	},
}

var defaultCommandOrder = []string{
	CommandPoll,
	CommandPollEnd,
	CommandGiveaway,
	CommandGiveawayEnd,
	CommandGiveawayReroll,
	CommandDashboard,
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("commands: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("commands: unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("commands: failed to register %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("commands: registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}
