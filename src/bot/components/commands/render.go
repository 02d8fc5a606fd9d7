package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

const (
	colorPrimary  = 0x5865f2
	colorClosed   = 0x747f8d
	colorGiveaway = 0xfee75c
)

var numberEmoji = [...]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

var medals = [...]string{"🥇", "🥈", "🥉"}

// bar renders a ten-segment progress bar for an option's share of the vote.
func bar(count, total int) string {
	filled := 0
	if total > 0 {
		filled = count * 10 / total
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func percent(count, total int) int {
	if total == 0 {
		return 0
	}
	return count * 100 / total
}

// PollEmbed renders the live state of a poll.
func PollEmbed(p *types.Poll, tally poll.Tally) *discordgo.MessageEmbed {
	total := tally.Total()
	var b strings.Builder
	for _, opt := range p.Options {
		count := tally[opt.Idx]
		fmt.Fprintf(&b, "%s **%s**\n`%s` %d votes (%d%%)\n",
			numberEmoji[opt.Idx], opt.Label, bar(count, total), count, percent(count, total))
	}

	footer := fmt.Sprintf("%d votes", total)
	if p.EndTime != nil {
		b.WriteString(fmt.Sprintf("\n⏰ Ends <t:%d:R>", p.EndTime.Unix()))
	}

	return &discordgo.MessageEmbed{
		Title:       "📊 " + p.Question,
		Description: b.String(),
		Color:       colorPrimary,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp:   p.CreatedAt.Format(time.RFC3339),
	}
}

// PollFinalEmbed renders the closed poll with its ranking.
func PollFinalEmbed(p *types.Poll, ranking []poll.Ranked) *discordgo.MessageEmbed {
	total := 0
	for _, r := range ranking {
		total += r.Count
	}
	var b strings.Builder
	for place, r := range ranking {
		marker := fmt.Sprintf("%d.", place+1)
		if place < len(medals) {
			marker = medals[place]
		}
		fmt.Fprintf(&b, "%s **%s** — %d votes (%d%%)\n", marker, r.Label, r.Count, percent(r.Count, total))
	}

	return &discordgo.MessageEmbed{
		Title:       "🏁 " + p.Question,
		Description: b.String(),
		Color:       colorClosed,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Poll closed • %d votes", total)},
		Timestamp:   p.CreatedAt.Format(time.RFC3339),
	}
}

// PollButtons builds one vote button per option, five to a row.
func PollButtons(n int) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for i := 0; i < n; i++ {
		row = append(row, discordgo.Button{
			Emoji:    &discordgo.ComponentEmoji{Name: numberEmoji[i]},
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("%s%d", VotePrefix, i),
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// PollSink delivers poll state by editing the published Discord message.
// A poll that has not been published yet has nothing to edit.
type PollSink struct {
	session *discordgo.Session
}

func NewPollSink(s *discordgo.Session) *PollSink { return &PollSink{session: s} }

func (ps *PollSink) Render(ctx context.Context, p *types.Poll, tally poll.Tally) error {
	if p.MessageID == nil {
		return nil
	}
	embeds := []*discordgo.MessageEmbed{PollEmbed(p, tally)}
	_, err := ps.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: p.ChannelID,
		ID:      *p.MessageID,
		Embeds:  &embeds,
	})
	if err != nil {
		return fmt.Errorf("edit poll message %s: %w", *p.MessageID, err)
	}
	return nil
}

func (ps *PollSink) RenderFinal(ctx context.Context, p *types.Poll, ranking []poll.Ranked) error {
	if p.MessageID == nil {
		return nil
	}
	embeds := []*discordgo.MessageEmbed{PollFinalEmbed(p, ranking)}
	components := []discordgo.MessageComponent{}
	_, err := ps.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    p.ChannelID,
		ID:         *p.MessageID,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("edit poll message %s: %w", *p.MessageID, err)
	}
	return nil
}

// GiveawayEmbed renders a running giveaway.
func GiveawayEmbed(g *types.Giveaway, entries int) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("Press 🎉 to enter or withdraw.\n\n**Winners:** %d\n**Entries:** %d\n**Ends:** <t:%d:R>\n**Hosted by:** <@%s>",
		g.WinnerCount, entries, g.EndTime.Unix(), g.HostID)
	return &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: desc,
		Color:       colorGiveaway,
		Timestamp:   g.CreatedAt.Format(time.RFC3339),
	}
}

// GiveawayFinalEmbed renders an ended giveaway with its winners.
func GiveawayFinalEmbed(g *types.Giveaway, winners []string) *discordgo.MessageEmbed {
	result := "No one entered."
	if len(winners) > 0 {
		mentions := make([]string, 0, len(winners))
		for _, w := range winners {
			mentions = append(mentions, "<@"+w+">")
		}
		result = "**Winners:** " + strings.Join(mentions, ", ")
	}
	return &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: "This giveaway has ended.\n\n" + result,
		Color:       colorClosed,
		Timestamp:   g.CreatedAt.Format(time.RFC3339),
	}
}

// GiveawayButton is the single enter/withdraw button row.
func GiveawayButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Emoji:    &discordgo.ComponentEmoji{Name: "🎉"},
				Label:    "Enter",
				Style:    discordgo.PrimaryButton,
				CustomID: EnterID,
			},
		}},
	}
}

// GiveawaySink edits the giveaway's Discord message on entry changes and at
// the final draw.
type GiveawaySink struct {
	session *discordgo.Session
}

func NewGiveawaySink(s *discordgo.Session) *GiveawaySink { return &GiveawaySink{session: s} }

func (gs *GiveawaySink) Render(ctx context.Context, g *types.Giveaway, entries int) error {
	embeds := []*discordgo.MessageEmbed{GiveawayEmbed(g, entries)}
	_, err := gs.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: g.ChannelID,
		ID:      g.MessageID,
		Embeds:  &embeds,
	})
	if err != nil {
		return fmt.Errorf("edit giveaway message %s: %w", g.MessageID, err)
	}
	return nil
}

func (gs *GiveawaySink) RenderFinal(ctx context.Context, g *types.Giveaway, winners []string) error {
	embeds := []*discordgo.MessageEmbed{GiveawayFinalEmbed(g, winners)}
	components := []discordgo.MessageComponent{}
	_, err := gs.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    g.ChannelID,
		ID:         g.MessageID,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("edit giveaway message %s: %w", g.MessageID, err)
	}
	return nil
}
