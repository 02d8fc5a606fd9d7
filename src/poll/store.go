package poll

import (
	"context"
	"errors"
	"time"

	"github.com/sumire-bot/sumire/src/types"
	"gorm.io/gorm"
)

// Store is the durable keeper of poll records, addressable by id and by the
// Discord message the poll was published to.
type Store interface {
	Create(ctx context.Context, p *types.Poll, options []string) error
	Get(ctx context.Context, id uint64) (*types.Poll, error)
	GetByMessage(ctx context.Context, messageID string) (*types.Poll, error)
	ListActive(ctx context.Context) ([]types.Poll, error)
	ListByGuild(ctx context.Context, guildID string) ([]types.Poll, error)
	ListUnpublished(ctx context.Context) ([]types.Poll, error)
	SetMessageID(ctx context.Context, id uint64, messageID string) error
	ApplyVote(ctx context.Context, id uint64, voterID string, optionIndex int, now time.Time) (Tally, error)
	Tally(ctx context.Context, id uint64) (Tally, error)
	Voters(ctx context.Context, id uint64) (map[int][]string, error)
	Close(ctx context.Context, id uint64, now time.Time) (*types.Poll, error)
}

// GormStore implements Store over MySQL in production and SQLite in tests.
// It relies on the Service serializing mutations per poll; transactions here
// only keep each logical unit (ledger row + derived tally) consistent.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func withOptions(db *gorm.DB) *gorm.DB {
	return db.Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx") })
}

func (s *GormStore) Create(ctx context.Context, p *types.Poll, options []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		rows := make([]types.PollOption, 0, len(options))
		for i, label := range options {
			rows = append(rows, types.PollOption{PollID: p.ID, Idx: i, Label: label})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		p.Options = rows
		return nil
	})
}

func (s *GormStore) Get(ctx context.Context, id uint64) (*types.Poll, error) {
	var p types.Poll
	err := withOptions(s.db.WithContext(ctx)).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) GetByMessage(ctx context.Context, messageID string) (*types.Poll, error) {
	var p types.Poll
	err := withOptions(s.db.WithContext(ctx)).First(&p, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]types.Poll, error) {
	var polls []types.Poll
	err := withOptions(s.db.WithContext(ctx)).
		Where("status = ?", types.PollActive).
		Find(&polls).Error
	return polls, err
}

func (s *GormStore) ListByGuild(ctx context.Context, guildID string) ([]types.Poll, error) {
	var polls []types.Poll
	err := withOptions(s.db.WithContext(ctx)).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Find(&polls).Error
	return polls, err
}

func (s *GormStore) ListUnpublished(ctx context.Context) ([]types.Poll, error) {
	var polls []types.Poll
	err := withOptions(s.db.WithContext(ctx)).
		Where("message_id IS NULL AND status = ?", types.PollActive).
		Find(&polls).Error
	return polls, err
}

func (s *GormStore) SetMessageID(ctx context.Context, id uint64, messageID string) error {
	res := s.db.WithContext(ctx).Model(&types.Poll{}).
		Where("id = ?", id).
		Update("message_id", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ApplyVote(ctx context.Context, id uint64, voterID string, optionIndex int, now time.Time) (Tally, error) {
	var out Tally
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p types.Poll
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if p.Status != types.PollActive {
			return ErrClosed
		}
		// Closedness is decided by the wall clock, not by whether the
		// auto-close timer has fired yet.
		if p.EndTime != nil && !now.Before(*p.EndTime) {
			return ErrClosed
		}

		var optCount int64
		if err := tx.Model(&types.PollOption{}).Where("poll_id = ?", id).Count(&optCount).Error; err != nil {
			return err
		}
		if optionIndex < 0 || optionIndex >= int(optCount) {
			return ErrInvalidOption
		}

		var prev types.PollVote
		err := tx.Where("poll_id = ? AND voter_id = ?", id, voterID).First(&prev).Error
		switch {
		case err == nil:
			// Re-clicking the same option is a no-op, not a toggle.
			if prev.OptionIndex != optionIndex {
				if err := tx.Model(&types.PollVote{}).
					Where("poll_id = ? AND voter_id = ?", id, voterID).
					Update("option_index", optionIndex).Error; err != nil {
					return err
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := types.PollVote{PollID: id, VoterID: voterID, OptionIndex: optionIndex}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		default:
			return err
		}

		t, err := tallyTx(tx, id)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Tally(ctx context.Context, id uint64) (Tally, error) {
	return tallyTx(s.db.WithContext(ctx), id)
}

func tallyTx(tx *gorm.DB, id uint64) (Tally, error) {
	type row struct {
		OptionIndex int
		Count       int
	}
	var rows []row
	err := tx.Model(&types.PollVote{}).
		Select("option_index, count(*) as count").
		Where("poll_id = ?", id).
		Group("option_index").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	t := make(Tally, len(rows))
	for _, r := range rows {
		t[r.OptionIndex] = r.Count
	}
	return t, nil
}

func (s *GormStore) Voters(ctx context.Context, id uint64) (map[int][]string, error) {
	var votes []types.PollVote
	err := s.db.WithContext(ctx).
		Where("poll_id = ?", id).
		Order("updated_at ASC").
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int][]string)
	for _, v := range votes {
		out[v.OptionIndex] = append(out[v.OptionIndex], v.VoterID)
	}
	return out, nil
}

func (s *GormStore) Close(ctx context.Context, id uint64, now time.Time) (*types.Poll, error) {
	var p types.Poll
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := withOptions(tx).First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if p.Status != types.PollActive {
			return ErrAlreadyClosed
		}
		// Conditional write: the bot and the API run as separate
		// processes, so only the row itself can arbitrate which closer
		// wins.
		res := tx.Model(&types.Poll{}).
			Where("id = ? AND status = ?", id, types.PollActive).
			Updates(map[string]interface{}{"status": types.PollClosed, "closed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClosed
		}
		p.Status = types.PollClosed
		p.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
