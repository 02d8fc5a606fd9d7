package poll_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/testutil"
)

// The bot's scheduler and the dashboard API close polls from separate
// processes, so the store itself must arbitrate which closer wins.
func TestConcurrentCloseSingleWinner(t *testing.T) {
	store := poll.NewGormStore(testutil.SetupDB(t))
	p := testutil.CreatePoll(t, store)
	now := time.Now()

	const closers = 8
	var wg sync.WaitGroup
	errs := make([]error, closers)
	start := make(chan struct{})
	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = store.Close(context.Background(), p.ID, now)
		}(i)
	}
	close(start)
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, poll.ErrAlreadyClosed):
			lost++
		default:
			t.Fatalf("unexpected close error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one successful close, got %d", won)
	}
	if lost != closers-1 {
		t.Errorf("expected %d ErrAlreadyClosed, got %d", closers-1, lost)
	}

	got, err := store.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClosedAt == nil {
		t.Error("closed poll must record its close time")
	}
}
