package giveaway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/testutil"
	"github.com/sumire-bot/sumire/src/types"
)

func newService(t *testing.T) *giveaway.Service {
	t.Helper()
	return giveaway.NewService(testutil.SetupDB(t), nil)
}

func createGiveaway(t *testing.T, svc *giveaway.Service, winnerCount int) *types.Giveaway {
	t.Helper()
	g, err := svc.Create(context.Background(), giveaway.CreateParams{
		GuildID:     "guild-1",
		ChannelID:   "channel-1",
		MessageID:   "message-1",
		HostID:      "host-1",
		Prize:       "Nitro",
		WinnerCount: winnerCount,
		Duration:    time.Hour,
	})
	if err != nil {
		t.Fatalf("create giveaway: %v", err)
	}
	return g
}

func enter(t *testing.T, svc *giveaway.Service, id uint64, users ...string) {
	t.Helper()
	for _, u := range users {
		entered, _, err := svc.ToggleEntry(context.Background(), id, u)
		if err != nil {
			t.Fatalf("enter %s: %v", u, err)
		}
		if !entered {
			t.Fatalf("enter %s: toggled off instead of on", u)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params giveaway.CreateParams
	}{
		{"no prize", giveaway.CreateParams{WinnerCount: 1, Duration: time.Hour}},
		{"zero winners", giveaway.CreateParams{Prize: "Nitro", Duration: time.Hour}},
		{"too many winners", giveaway.CreateParams{Prize: "Nitro", WinnerCount: 21, Duration: time.Hour}},
		{"duration too short", giveaway.CreateParams{Prize: "Nitro", WinnerCount: 1, Duration: time.Second}},
		{"duration too long", giveaway.CreateParams{Prize: "Nitro", WinnerCount: 1, Duration: 29 * 24 * time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.params); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestToggleEntry(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 1)

	entered, count, err := svc.ToggleEntry(ctx, g.ID, "alice")
	if err != nil || !entered || count != 1 {
		t.Fatalf("first toggle: entered=%v count=%d err=%v", entered, count, err)
	}

	entered, count, err = svc.ToggleEntry(ctx, g.ID, "alice")
	if err != nil || entered || count != 0 {
		t.Fatalf("second toggle should withdraw: entered=%v count=%d err=%v", entered, count, err)
	}

	entered, count, err = svc.ToggleEntry(ctx, g.ID, "alice")
	if err != nil || !entered || count != 1 {
		t.Fatalf("third toggle should re-enter: entered=%v count=%d err=%v", entered, count, err)
	}
}

func TestToggleEntryAfterEnd(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 1)

	if _, _, err := svc.End(ctx, g.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, _, err := svc.ToggleEntry(ctx, g.ID, "late"); !errors.Is(err, giveaway.ErrEnded) {
		t.Fatalf("expected ErrEnded, got %v", err)
	}
}

func TestEndDrawsFromEntrants(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 2)
	enter(t, svc, g.ID, "alice", "bob", "carol", "dave")

	ended, winners, err := svc.End(ctx, g.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != types.GiveawayEnded || ended.EndedAt == nil {
		t.Errorf("giveaway not marked ended: %+v", ended)
	}
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %v", winners)
	}
	entrants := map[string]bool{"alice": true, "bob": true, "carol": true, "dave": true}
	seen := map[string]bool{}
	for _, w := range winners {
		if !entrants[w] {
			t.Errorf("winner %q never entered", w)
		}
		if seen[w] {
			t.Errorf("winner %q drawn twice", w)
		}
		seen[w] = true
	}
}

func TestEndWithFewerEntrantsThanWinners(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 5)
	enter(t, svc, g.ID, "alice", "bob")

	_, winners, err := svc.End(ctx, g.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(winners) != 2 {
		t.Errorf("expected both entrants to win, got %v", winners)
	}
}

func TestEndWithNoEntrants(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 1)

	_, winners, err := svc.End(ctx, g.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(winners) != 0 {
		t.Errorf("expected no winners, got %v", winners)
	}
}

func TestEndTwice(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 1)

	if _, _, err := svc.End(ctx, g.ID); err != nil {
		t.Fatalf("first end: %v", err)
	}
	if _, _, err := svc.End(ctx, g.ID); !errors.Is(err, giveaway.ErrAlreadyEnded) {
		t.Fatalf("second end: expected ErrAlreadyEnded, got %v", err)
	}
}

func TestRerollExcludesPreviousWinners(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 2)
	enter(t, svc, g.ID, "alice", "bob", "carol")

	_, first, err := svc.End(ctx, g.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	won := map[string]bool{}
	for _, w := range first {
		won[w] = true
	}

	second, err := svc.Reroll(ctx, g.ID, 1)
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 reroll winner, got %v", second)
	}
	if won[second[0]] {
		t.Errorf("reroll picked previous winner %q", second[0])
	}

	// All three entrants have now won; nobody is left.
	if _, err := svc.Reroll(ctx, g.ID, 1); !errors.Is(err, giveaway.ErrNoEligible) {
		t.Fatalf("expected ErrNoEligible, got %v", err)
	}

	winners, err := svc.Winners(ctx, g.ID)
	if err != nil {
		t.Fatalf("winners: %v", err)
	}
	if len(winners) != 3 {
		t.Fatalf("expected 3 recorded winners, got %d", len(winners))
	}
	if winners[2].Round != 1 {
		t.Errorf("reroll winner should be round 1, got %d", winners[2].Round)
	}
}

func TestRerollWhileRunning(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	g := createGiveaway(t, svc, 1)
	enter(t, svc, g.ID, "alice")

	if _, err := svc.Reroll(ctx, g.ID, 1); err == nil {
		t.Fatal("reroll before end should fail")
	}
}

func TestRecoverEndsExpired(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	base := time.Now()
	svc.SetClock(func() time.Time { return base })
	g := createGiveaway(t, svc, 1)
	enter(t, svc, g.ID, "alice")

	svc.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	if err := svc.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	got, err := svc.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.GiveawayEnded {
		t.Errorf("expired giveaway should be ended, got %q", got.Status)
	}
	winners, _ := svc.Winners(ctx, g.ID)
	if len(winners) != 1 || winners[0].UserID != "alice" {
		t.Errorf("expected alice to win, got %v", winners)
	}
}

// The sweep and a dashboard end run in separate processes with separate
// in-memory locks; only the row's status column can arbitrate between them.
func TestConcurrentEndSingleDraw(t *testing.T) {
	db := testutil.SetupDB(t)
	a := giveaway.NewService(db, nil)
	b := giveaway.NewService(db, nil)
	ctx := context.Background()

	g := createGiveaway(t, a, 1)
	enter(t, a, g.ID, "alice", "bob", "carol")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, svc := range []*giveaway.Service{a, b} {
		wg.Add(1)
		go func(i int, svc *giveaway.Service) {
			defer wg.Done()
			<-start
			_, _, errs[i] = svc.End(ctx, g.ID)
		}(i, svc)
	}
	close(start)
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, giveaway.ErrAlreadyEnded):
			lost++
		default:
			t.Fatalf("unexpected end error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("expected one winner and one ErrAlreadyEnded, got %d/%d", won, lost)
	}

	winners, err := a.Winners(ctx, g.ID)
	if err != nil {
		t.Fatalf("winners: %v", err)
	}
	if len(winners) != 1 {
		t.Errorf("losing end must not draw, got %d winners", len(winners))
	}
}
