package types

import "time"

// Poll status values. A poll transitions active -> closed exactly once.
const (
	PollActive = "active"
	PollClosed = "closed"
)

// Giveaway status values.
const (
	GiveawayActive = "active"
	GiveawayEnded  = "ended"
)

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

// Polls
type Poll struct {
	ID        uint64  `gorm:"primaryKey"`
	GuildID   string  `gorm:"size:64;index;not null"`
	ChannelID string  `gorm:"size:64;not null"`
	MessageID *string `gorm:"size:64;uniqueIndex"` // nil until published to Discord
	AuthorID  string  `gorm:"size:64;not null"`
	Question  string  `gorm:"size:300;not null"`
	Status    string  `gorm:"size:16;index;default:active"`
	EndTime   *time.Time
	CreatedAt time.Time
	ClosedAt  *time.Time
	Options   []PollOption `gorm:"foreignKey:PollID"`
}

// PollOption is one entry of a poll's ordered option list. Idx is the
// zero-based position votes address; it never changes after creation.
type PollOption struct {
	PollID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Idx    int    `gorm:"primaryKey;autoIncrement:false"`
	Label  string `gorm:"size:100;not null"`
}

// PollVote is the ledger: at most one row per (poll, voter). A revote
// overwrites OptionIndex in place.
type PollVote struct {
	PollID      uint64 `gorm:"primaryKey;autoIncrement:false"`
	VoterID     string `gorm:"primaryKey;size:64"`
	OptionIndex int    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Giveaways
type Giveaway struct {
	ID          uint64 `gorm:"primaryKey"`
	GuildID     string `gorm:"size:64;index;not null"`
	ChannelID   string `gorm:"size:64;not null"`
	MessageID   string `gorm:"size:64;uniqueIndex"`
	HostID      string `gorm:"size:64;not null"`
	Prize       string `gorm:"size:256;not null"`
	WinnerCount int    `gorm:"not null;default:1"`
	Status      string `gorm:"size:16;index;default:active"`
	EndTime     time.Time
	CreatedAt   time.Time
	EndedAt     *time.Time
}

// GiveawayEntry records one participant; the enter button toggles it.
type GiveawayEntry struct {
	GiveawayID uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID     string `gorm:"primaryKey;size:64"`
	CreatedAt  time.Time
}

// GiveawayWinner keeps every drawn winner across the initial draw and any
// rerolls, so a reroll can exclude all previous winners.
type GiveawayWinner struct {
	GiveawayID uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID     string `gorm:"primaryKey;size:64"`
	Round      int    `gorm:"not null;default:0"` // 0 = initial draw, 1+ = rerolls
	CreatedAt  time.Time
}
