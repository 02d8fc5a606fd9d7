package poll

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sumire-bot/sumire/src/types"
)

// Creation limits. Durations mirror the slash command bounds; a nil end time
// means the poll runs until closed by hand.
const (
	MinOptions  = 2
	MaxOptions  = 10
	MaxQuestion = 300
	MaxOption   = 100

	MinDuration = time.Minute
	MaxDuration = 28 * 24 * time.Hour
)

// Schedule is the part of the auto-close scheduler the service drives:
// arming a timer at creation and releasing it when a poll closes early.
type Schedule interface {
	Arm(id uint64, end time.Time)
	Cancel(id uint64)
}

type noopSchedule struct{}

func (noopSchedule) Arm(uint64, time.Time) {}
func (noopSchedule) Cancel(uint64)         {}

// Service is the poll lifecycle controller. All collaborators are injected;
// mutations of a single poll are serialized through a striped lock so that
// ledger read-modify-write units never interleave for the same poll.
type Service struct {
	store Store
	sink  Sink
	sched Schedule
	now   func() time.Time
	locks [64]sync.Mutex
}

func NewService(store Store, sink Sink) *Service {
	return &Service{
		store: store,
		sink:  sink,
		sched: noopSchedule{},
		now:   time.Now,
	}
}

// SetSchedule attaches the auto-close scheduler. Must be called before the
// service handles traffic.
func (s *Service) SetSchedule(sched Schedule) { s.sched = sched }

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) lock(id uint64) *sync.Mutex {
	return &s.locks[id%uint64(len(s.locks))]
}

// CreateParams carries everything a new poll needs. MessageID is nil for
// dashboard-created polls until the bot publishes them.
type CreateParams struct {
	GuildID   string
	ChannelID string
	MessageID *string
	AuthorID  string
	Question  string
	Options   []string
	Duration  *time.Duration
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*types.Poll, error) {
	if n := len([]rune(params.Question)); n < 1 || n > MaxQuestion {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("must be 1-%d characters", MaxQuestion)}
	}
	if len(params.Options) < MinOptions || len(params.Options) > MaxOptions {
		return nil, &ValidationError{Field: "options", Reason: fmt.Sprintf("must have %d-%d entries", MinOptions, MaxOptions)}
	}
	for i, opt := range params.Options {
		if n := len([]rune(opt)); n < 1 || n > MaxOption {
			return nil, &ValidationError{Field: fmt.Sprintf("options[%d]", i), Reason: fmt.Sprintf("must be 1-%d characters", MaxOption)}
		}
	}

	var endTime *time.Time
	if params.Duration != nil {
		d := *params.Duration
		if d < MinDuration {
			return nil, &ValidationError{Field: "duration", Reason: "minimum is 1 minute"}
		}
		if d > MaxDuration {
			return nil, &ValidationError{Field: "duration", Reason: "maximum is 4 weeks"}
		}
		t := s.now().Add(d)
		endTime = &t
	}

	p := &types.Poll{
		GuildID:   params.GuildID,
		ChannelID: params.ChannelID,
		MessageID: params.MessageID,
		AuthorID:  params.AuthorID,
		Question:  params.Question,
		Status:    types.PollActive,
		EndTime:   endTime,
	}
	if err := s.store.Create(ctx, p, params.Options); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	if p.EndTime != nil {
		s.sched.Arm(p.ID, *p.EndTime)
	}
	return p, nil
}

// Vote records or moves a voter's selection and renders the fresh tally.
// Re-clicking the current selection changes nothing. The render is best
// effort: a delivery failure is logged, never returned, because the vote is
// already durable.
func (s *Service) Vote(ctx context.Context, id uint64, voterID string, optionIndex int) (Tally, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	tally, err := s.store.ApplyVote(ctx, id, voterID, optionIndex, s.now())
	if err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		log.Printf("poll %d: reload after vote failed: %v", id, err)
		return tally, nil
	}
	if s.sink != nil {
		if err := s.sink.Render(ctx, p, tally); err != nil {
			log.Printf("poll %d: render failed: %v", id, err)
		}
	}
	return tally, nil
}

// Close ends a poll exactly once and renders the final ranking: vote count
// descending, ties won by the earlier-listed option.
func (s *Service) Close(ctx context.Context, id uint64) (*types.Poll, []Ranked, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Close(ctx, id, s.now())
	if err != nil {
		return nil, nil, err
	}
	s.sched.Cancel(id)

	tally, err := s.store.Tally(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("final tally: %w", err)
	}
	ranking := Rank(p.Options, tally)

	if s.sink != nil {
		if err := s.sink.RenderFinal(ctx, p, ranking); err != nil {
			log.Printf("poll %d: final render failed: %v", id, err)
		}
	}
	return p, ranking, nil
}

// Get exposes store lookup by id for transport layers.
func (s *Service) Get(ctx context.Context, id uint64) (*types.Poll, error) {
	return s.store.Get(ctx, id)
}

// GetByMessage resolves the poll published as the given Discord message.
func (s *Service) GetByMessage(ctx context.Context, messageID string) (*types.Poll, error) {
	return s.store.GetByMessage(ctx, messageID)
}

// Tally returns the current counts without mutating anything.
func (s *Service) Tally(ctx context.Context, id uint64) (Tally, error) {
	return s.store.Tally(ctx, id)
}
