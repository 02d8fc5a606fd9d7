package poll

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Scheduler arms one timer per deadline-bearing poll and keeps a periodic
// sweep as backstop. Timers are only a cache of "when to next check": the
// stored end time is the source of truth, so Recover can rebuild everything
// after a restart and the sweep catches anything a timer missed.
type Scheduler struct {
	svc        *Service
	store      Store
	sweepEvery time.Duration

	mu     sync.Mutex
	timers map[uint64]*time.Timer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(svc *Service, store Store, sweepEvery time.Duration) *Scheduler {
	sc := &Scheduler{
		svc:        svc,
		store:      store,
		sweepEvery: sweepEvery,
		timers:     make(map[uint64]*time.Timer),
		stop:       make(chan struct{}),
	}
	svc.SetSchedule(sc)
	return sc
}

// Arm schedules an auto close at end, replacing any previous timer for the
// poll.
func (sc *Scheduler) Arm(id uint64, end time.Time) {
	d := end.Sub(sc.svc.now())
	if d < 0 {
		d = 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t, ok := sc.timers[id]; ok {
		t.Stop()
	}
	sc.timers[id] = time.AfterFunc(d, func() { sc.fire(id) })
}

// Cancel releases the timer for a poll that was closed by hand, so no stale
// fire is left dangling.
func (sc *Scheduler) Cancel(id uint64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t, ok := sc.timers[id]; ok {
		t.Stop()
		delete(sc.timers, id)
	}
}

func (sc *Scheduler) fire(id uint64) {
	if _, _, err := sc.svc.Close(context.Background(), id); err != nil && !errors.Is(err, ErrAlreadyClosed) && !errors.Is(err, ErrNotFound) {
		log.Printf("poll %d: auto close failed: %v", id, err)
	}
}

// Recover reconciles polls whose deadline passed while the process was down
// and re-arms timers for the rest. Run before accepting any votes.
func (sc *Scheduler) Recover(ctx context.Context) error {
	polls, err := sc.store.ListActive(ctx)
	if err != nil {
		return err
	}
	now := sc.svc.now()
	for _, p := range polls {
		if p.EndTime == nil {
			continue
		}
		if now.Before(*p.EndTime) {
			sc.Arm(p.ID, *p.EndTime)
			continue
		}
		if _, _, err := sc.svc.Close(ctx, p.ID); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			log.Printf("poll %d: recovery close failed: %v", p.ID, err)
		}
	}
	return nil
}

// Start runs the backstop sweep until Stop is called.
func (sc *Scheduler) Start() {
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		ticker := time.NewTicker(sc.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-sc.stop:
				return
			case <-ticker.C:
				sc.sweep()
			}
		}
	}()
}

func (sc *Scheduler) sweep() {
	ctx := context.Background()
	polls, err := sc.store.ListActive(ctx)
	if err != nil {
		log.Printf("poll sweep: %v", err)
		return
	}
	now := sc.svc.now()
	for _, p := range polls {
		if p.EndTime == nil || now.Before(*p.EndTime) {
			continue
		}
		if _, _, err := sc.svc.Close(ctx, p.ID); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			log.Printf("poll %d: sweep close failed: %v", p.ID, err)
		}
	}
}

// Stop halts the sweep and releases all timers.
func (sc *Scheduler) Stop() {
	sc.stopOnce.Do(func() { close(sc.stop) })
	sc.wg.Wait()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for id, t := range sc.timers {
		t.Stop()
		delete(sc.timers, id)
	}
}
