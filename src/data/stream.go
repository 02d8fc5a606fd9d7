package data

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

// Event sources. The bot skips events it published itself when it bridges the
// stream back onto Discord messages.
const (
	SourceBot = "bot"
	SourceAPI = "api"
)

// PollEventSink mirrors every render onto the Redis event stream, so dashboard
// consumers can live-update and the bot can re-render messages for polls the
// API changed.
type PollEventSink struct {
	rdb    *redis.Client
	source string
}

func NewPollEventSink(rdb *redis.Client, source string) *PollEventSink {
	return &PollEventSink{rdb: rdb, source: source}
}

func (s *PollEventSink) Render(ctx context.Context, p *types.Poll, tally poll.Tally) error {
	return PublishEvent(ctx, s.rdb, map[string]interface{}{
		"kind":   "poll",
		"source": s.source,
		"event":  "tally",
		"poll":   p.ID,
		"guild":  p.GuildID,
		"total":  tally.Total(),
		"status": p.Status,
	})
}

func (s *PollEventSink) RenderFinal(ctx context.Context, p *types.Poll, ranking []poll.Ranked) error {
	winner := ""
	if len(ranking) > 0 {
		winner = ranking[0].Label
	}
	return PublishEvent(ctx, s.rdb, map[string]interface{}{
		"kind":   "poll",
		"source": s.source,
		"event":  "closed",
		"poll":   p.ID,
		"guild":  p.GuildID,
		"winner": winner,
		"status": p.Status,
	})
}

// GiveawayEventSink mirrors giveaway state changes onto the event stream. The
// winners travel in the event so the consumer does not have to reconstruct
// which draw round was the latest.
type GiveawayEventSink struct {
	rdb    *redis.Client
	source string
}

func NewGiveawayEventSink(rdb *redis.Client, source string) *GiveawayEventSink {
	return &GiveawayEventSink{rdb: rdb, source: source}
}

func (s *GiveawayEventSink) Render(ctx context.Context, g *types.Giveaway, entries int) error {
	return PublishEvent(ctx, s.rdb, map[string]interface{}{
		"kind":     "giveaway",
		"source":   s.source,
		"event":    "entries",
		"giveaway": g.ID,
		"guild":    g.GuildID,
		"entries":  entries,
	})
}

func (s *GiveawayEventSink) RenderFinal(ctx context.Context, g *types.Giveaway, winners []string) error {
	return PublishEvent(ctx, s.rdb, map[string]interface{}{
		"kind":     "giveaway",
		"source":   s.source,
		"event":    "final",
		"giveaway": g.ID,
		"guild":    g.GuildID,
		"winners":  strings.Join(winners, ","),
	})
}
