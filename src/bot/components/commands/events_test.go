package commands

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/testutil"
	"github.com/sumire-bot/sumire/src/types"
)

type capturePollSink struct {
	mu      sync.Mutex
	renders int
	finals  int
	lastP   *types.Poll
	ranking []poll.Ranked
}

func (c *capturePollSink) Render(ctx context.Context, p *types.Poll, tally poll.Tally) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders++
	c.lastP = p
	return nil
}

func (c *capturePollSink) RenderFinal(ctx context.Context, p *types.Poll, ranking []poll.Ranked) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals++
	c.lastP = p
	c.ranking = ranking
	return nil
}

type captureGiveawaySink struct {
	finals  int
	winners []string
	entries int
}

func (c *captureGiveawaySink) Render(ctx context.Context, g *types.Giveaway, entries int) error {
	c.entries = entries
	return nil
}

func (c *captureGiveawaySink) RenderFinal(ctx context.Context, g *types.Giveaway, winners []string) error {
	c.finals++
	c.winners = winners
	return nil
}

func newBridge(t *testing.T) (*EventBridge, poll.Store, *giveaway.Service, *capturePollSink, *captureGiveawaySink) {
	t.Helper()
	db := testutil.SetupDB(t)
	store := poll.NewGormStore(db)
	gwaySvc := giveaway.NewService(db, nil)
	pollSink := &capturePollSink{}
	gwaySink := &captureGiveawaySink{}
	return NewEventBridge(nil, store, pollSink, gwaySvc, gwaySink), store, gwaySvc, pollSink, gwaySink
}

func TestBridgeRendersApiClosedPoll(t *testing.T) {
	bridge, store, _, sink, _ := newBridge(t)
	ctx := context.Background()

	p := testutil.CreatePoll(t, store)
	testutil.Vote(t, store, p.ID, "alice", 1)
	testutil.Vote(t, store, p.ID, "bob", 1)
	if _, err := store.Close(ctx, p.ID, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The way the API's close reaches the bot: a stream event carrying the
	// poll id, with the message state left to this side to rebuild.
	bridge.dispatch(ctx, map[string]interface{}{
		"kind":   "poll",
		"source": "api",
		"event":  "closed",
		"poll":   fmt.Sprint(p.ID),
	})

	if sink.finals != 1 {
		t.Fatalf("expected one final render, got %d", sink.finals)
	}
	if sink.lastP.Status != types.PollClosed {
		t.Errorf("rendered poll should be closed, got %q", sink.lastP.Status)
	}
	if len(sink.ranking) == 0 || sink.ranking[0].Index != 1 || sink.ranking[0].Count != 2 {
		t.Errorf("ranking = %+v", sink.ranking)
	}
}

func TestBridgeRendersApiTally(t *testing.T) {
	bridge, store, _, sink, _ := newBridge(t)
	ctx := context.Background()

	p := testutil.CreatePoll(t, store)
	testutil.Vote(t, store, p.ID, "alice", 0)

	bridge.dispatch(ctx, map[string]interface{}{
		"kind":   "poll",
		"source": "api",
		"event":  "tally",
		"poll":   fmt.Sprint(p.ID),
	})

	if sink.renders != 1 {
		t.Fatalf("expected one render, got %d", sink.renders)
	}
}

func TestBridgeSkipsOwnEvents(t *testing.T) {
	bridge, store, _, sink, _ := newBridge(t)
	ctx := context.Background()

	p := testutil.CreatePoll(t, store)
	bridge.dispatch(ctx, map[string]interface{}{
		"kind":   "poll",
		"source": "bot",
		"event":  "closed",
		"poll":   fmt.Sprint(p.ID),
	})

	if sink.renders != 0 || sink.finals != 0 {
		t.Errorf("bot-sourced event must not re-render, got %d/%d", sink.renders, sink.finals)
	}
}

func TestBridgeIgnoresUnknownPoll(t *testing.T) {
	bridge, _, _, sink, _ := newBridge(t)

	bridge.dispatch(context.Background(), map[string]interface{}{
		"kind":   "poll",
		"source": "api",
		"event":  "closed",
		"poll":   "9999",
	})

	if sink.finals != 0 {
		t.Errorf("unknown poll must not render, got %d finals", sink.finals)
	}
}

func TestBridgeRendersGiveawayReroll(t *testing.T) {
	bridge, _, gwaySvc, _, sink := newBridge(t)
	ctx := context.Background()

	g, err := gwaySvc.Create(ctx, giveaway.CreateParams{
		GuildID:     "guild-1",
		ChannelID:   "channel-1",
		MessageID:   "message-1",
		HostID:      "host-1",
		Prize:       "Nitro",
		WinnerCount: 1,
		Duration:    time.Hour,
	})
	if err != nil {
		t.Fatalf("create giveaway: %v", err)
	}

	bridge.dispatch(ctx, map[string]interface{}{
		"kind":     "giveaway",
		"source":   "api",
		"event":    "final",
		"giveaway": fmt.Sprint(g.ID),
		"winners":  "alice,bob",
	})

	if sink.finals != 1 {
		t.Fatalf("expected one final render, got %d", sink.finals)
	}
	if len(sink.winners) != 2 || sink.winners[0] != "alice" || sink.winners[1] != "bob" {
		t.Errorf("winners = %v", sink.winners)
	}
}
