package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sumire-bot/sumire/src/types"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("giveaway not found")
	ErrEnded        = errors.New("giveaway has ended")
	ErrAlreadyEnded = errors.New("giveaway already ended")
	ErrNoEligible   = errors.New("no eligible entrants")
)

const (
	MaxPrize    = 256
	MaxWinners  = 20
	MinDuration = time.Minute
	MaxDuration = 28 * 24 * time.Hour
)

// Sink delivers giveaway state to its Discord message; failures are logged by
// the service and never surfaced, mirroring the poll sink contract.
type Sink interface {
	Render(ctx context.Context, g *types.Giveaway, entries int) error
	RenderFinal(ctx context.Context, g *types.Giveaway, winners []string) error
}

type Service struct {
	db   *gorm.DB
	sink Sink
	now  func() time.Time
	mu   sync.Mutex // serializes draws and entry toggles

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(db *gorm.DB, sink Sink) *Service {
	return &Service{
		db:   db,
		sink: sink,
		now:  time.Now,
		stop: make(chan struct{}),
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type CreateParams struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	HostID      string
	Prize       string
	WinnerCount int
	Duration    time.Duration
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*types.Giveaway, error) {
	if n := len([]rune(params.Prize)); n < 1 || n > MaxPrize {
		return nil, fmt.Errorf("prize must be 1-%d characters", MaxPrize)
	}
	if params.WinnerCount < 1 || params.WinnerCount > MaxWinners {
		return nil, fmt.Errorf("winner count must be 1-%d", MaxWinners)
	}
	if params.Duration < MinDuration || params.Duration > MaxDuration {
		return nil, fmt.Errorf("duration must be between 1 minute and 4 weeks")
	}

	g := &types.Giveaway{
		GuildID:     params.GuildID,
		ChannelID:   params.ChannelID,
		MessageID:   params.MessageID,
		HostID:      params.HostID,
		Prize:       params.Prize,
		WinnerCount: params.WinnerCount,
		Status:      types.GiveawayActive,
		EndTime:     s.now().Add(params.Duration),
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, fmt.Errorf("create giveaway: %w", err)
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*types.Giveaway, error) {
	var g types.Giveaway
	err := s.db.WithContext(ctx).First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) GetByMessage(ctx context.Context, messageID string) (*types.Giveaway, error) {
	var g types.Giveaway
	err := s.db.WithContext(ctx).First(&g, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) ListByGuild(ctx context.Context, guildID string) ([]types.Giveaway, error) {
	var out []types.Giveaway
	err := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ToggleEntry enters the user, or withdraws them if already entered. Returns
// whether they are entered afterwards and the new entry count.
func (s *Service) ToggleEntry(ctx context.Context, id uint64, userID string) (entered bool, count int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.Get(ctx, id)
	if err != nil {
		return false, 0, err
	}
	if g.Status != types.GiveawayActive || !s.now().Before(g.EndTime) {
		return false, 0, ErrEnded
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry types.GiveawayEntry
		lookup := tx.Where("giveaway_id = ? AND user_id = ?", id, userID).First(&entry)
		switch {
		case lookup.Error == nil:
			entered = false
			return tx.Delete(&types.GiveawayEntry{GiveawayID: id, UserID: userID}).Error
		case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
			entered = true
			return tx.Create(&types.GiveawayEntry{GiveawayID: id, UserID: userID}).Error
		default:
			return lookup.Error
		}
	})
	if err != nil {
		return false, 0, err
	}

	if err := s.db.WithContext(ctx).Model(&types.GiveawayEntry{}).
		Where("giveaway_id = ?", id).Count(&count).Error; err != nil {
		return entered, 0, err
	}

	if s.sink != nil {
		if err := s.sink.Render(ctx, g, int(count)); err != nil {
			log.Printf("giveaway %d: render failed: %v", id, err)
		}
	}
	return entered, count, nil
}

func (s *Service) Entries(ctx context.Context, id uint64) ([]string, error) {
	var rows []types.GiveawayEntry
	if err := s.db.WithContext(ctx).Where("giveaway_id = ?", id).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out, nil
}

// Winners returns every drawn winner across all rounds.
func (s *Service) Winners(ctx context.Context, id uint64) ([]types.GiveawayWinner, error) {
	var rows []types.GiveawayWinner
	if err := s.db.WithContext(ctx).Where("giveaway_id = ?", id).Order("round, created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// End freezes the giveaway and draws up to WinnerCount winners at random from
// the entrants. A second End attempt is ErrAlreadyEnded.
func (s *Service) End(ctx context.Context, id uint64) (*types.Giveaway, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var g types.Giveaway
	var winners []string
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if g.Status != types.GiveawayActive {
			return ErrAlreadyEnded
		}

		var entries []types.GiveawayEntry
		if err := tx.Where("giveaway_id = ?", id).Find(&entries).Error; err != nil {
			return err
		}
		candidates := make([]string, 0, len(entries))
		for _, e := range entries {
			candidates = append(candidates, e.UserID)
		}
		winners = draw(candidates, g.WinnerCount)

		for _, w := range winners {
			row := types.GiveawayWinner{GiveawayID: id, UserID: w, Round: 0}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		// Conditional write, so the sweep and a dashboard end racing from
		// separate processes cannot both draw winners.
		res := tx.Model(&types.Giveaway{}).
			Where("id = ? AND status = ?", id, types.GiveawayActive).
			Updates(map[string]interface{}{"status": types.GiveawayEnded, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyEnded
		}
		g.Status = types.GiveawayEnded
		g.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.sink != nil {
		if err := s.sink.RenderFinal(ctx, &g, winners); err != nil {
			log.Printf("giveaway %d: final render failed: %v", id, err)
		}
	}
	return &g, winners, nil
}

// Reroll draws count fresh winners from the entrants who have never won this
// giveaway. The giveaway must already have ended.
func (s *Service) Reroll(ctx context.Context, id uint64, count int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var g types.Giveaway
	var winners []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if g.Status != types.GiveawayEnded {
			return fmt.Errorf("giveaway %d is still running", id)
		}
		if count < 1 {
			count = g.WinnerCount
		}

		var entries []types.GiveawayEntry
		if err := tx.Where("giveaway_id = ?", id).Find(&entries).Error; err != nil {
			return err
		}
		var prev []types.GiveawayWinner
		if err := tx.Where("giveaway_id = ?", id).Find(&prev).Error; err != nil {
			return err
		}
		won := make(map[string]bool, len(prev))
		round := 0
		for _, p := range prev {
			won[p.UserID] = true
			if p.Round >= round {
				round = p.Round + 1
			}
		}

		candidates := make([]string, 0, len(entries))
		for _, e := range entries {
			if !won[e.UserID] {
				candidates = append(candidates, e.UserID)
			}
		}
		if len(candidates) == 0 {
			return ErrNoEligible
		}

		winners = draw(candidates, count)
		for _, w := range winners {
			row := types.GiveawayWinner{GiveawayID: id, UserID: w, Round: round}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		if err := s.sink.RenderFinal(ctx, &g, winners); err != nil {
			log.Printf("giveaway %d: reroll render failed: %v", id, err)
		}
	}
	return winners, nil
}

// draw picks up to n distinct entrants uniformly at random.
func draw(candidates []string, n int) []string {
	if n > len(candidates) {
		n = len(candidates)
	}
	shuffled := make([]string, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// Recover ends giveaways whose deadline passed while the process was down.
func (s *Service) Recover(ctx context.Context) error {
	var due []types.Giveaway
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", types.GiveawayActive, s.now()).
		Find(&due).Error
	if err != nil {
		return err
	}
	for _, g := range due {
		if _, _, err := s.End(ctx, g.ID); err != nil && !errors.Is(err, ErrAlreadyEnded) {
			log.Printf("giveaway %d: recovery end failed: %v", g.ID, err)
		}
	}
	return nil
}

// StartSweep runs the periodic deadline check until StopSweep is called.
func (s *Service) StartSweep(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Recover(context.Background()); err != nil {
					log.Printf("giveaway sweep: %v", err)
				}
			}
		}
	}()
}

func (s *Service) StopSweep() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}
