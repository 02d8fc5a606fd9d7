package webserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sumire-bot/sumire/src/poll"
	"github.com/sumire-bot/sumire/src/types"
)

// Polls serves the dashboard's poll endpoints. Poll text arriving over HTTP
// is stripped of any markup before it reaches Discord.
type Polls struct {
	svc       *poll.Service
	store     poll.Store
	sanitizer *bluemonday.Policy
}

func NewPolls(svc *poll.Service, store poll.Store) Polls {
	return Polls{svc: svc, store: store, sanitizer: bluemonday.StrictPolicy()}
}

type pollListItem struct {
	ID          uint64     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	MessageID   *string    `json:"message_id"`
	Question    string     `json:"question"`
	OptionCount int        `json:"option_count"`
	TotalVotes  int        `json:"total_votes"`
	EndTime     *time.Time `json:"end_time"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

type pollResult struct {
	Index      int      `json:"index"`
	Option     string   `json:"option"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Voters     []string `json:"voters"`
}

func (h Polls) item(c *gin.Context, p *types.Poll) pollListItem {
	tally, err := h.store.Tally(c.Request.Context(), p.ID)
	total := 0
	if err == nil {
		total = tally.Total()
	}
	return pollListItem{
		ID:          p.ID,
		ChannelID:   p.ChannelID,
		MessageID:   p.MessageID,
		Question:    p.Question,
		OptionCount: len(p.Options),
		TotalVotes:  total,
		EndTime:     p.EndTime,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func (h Polls) List(c *gin.Context) {
	guildID := c.GetString("guild")
	polls, err := h.store.ListByGuild(c.Request.Context(), guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	active := []pollListItem{}
	closed := []pollListItem{}
	for i := range polls {
		item := h.item(c, &polls[i])
		if polls[i].Status == types.PollActive {
			active = append(active, item)
		} else {
			closed = append(closed, item)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"active":       active,
		"closed":       closed,
		"total_active": len(active),
		"total_closed": len(closed),
	})
}

func (h Polls) get(c *gin.Context) (*types.Poll, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad poll id"})
		return nil, false
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, poll.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"err": "poll not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return nil, false
	}
	// Tokens are guild scoped; a poll from another guild does not exist as
	// far as this caller is concerned.
	if p.GuildID != c.GetString("guild") {
		c.JSON(http.StatusNotFound, gin.H{"err": "poll not found"})
		return nil, false
	}
	return p, true
}

func (h Polls) Get(c *gin.Context) {
	p, ok := h.get(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tally, err := h.store.Tally(ctx, p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	voters, err := h.store.Voters(ctx, p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	total := tally.Total()
	results := make([]pollResult, 0, len(p.Options))
	for _, opt := range p.Options {
		count := tally[opt.Idx]
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		vs := voters[opt.Idx]
		if vs == nil {
			vs = []string{}
		}
		results = append(results, pollResult{
			Index:      opt.Idx,
			Option:     opt.Label,
			Count:      count,
			Percentage: pct,
			Voters:     vs,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          p.ID,
		"question":    p.Question,
		"status":      p.Status,
		"author_id":   p.AuthorID,
		"channel_id":  p.ChannelID,
		"message_id":  p.MessageID,
		"end_time":    p.EndTime,
		"created_at":  p.CreatedAt,
		"closed_at":   p.ClosedAt,
		"total_votes": total,
		"results":     results,
	})
}

func (h Polls) Create(c *gin.Context) {
	var req struct {
		ChannelID       string   `json:"channel_id" binding:"required"`
		Question        string   `json:"question" binding:"required"`
		Options         []string `json:"options" binding:"required"`
		DurationSeconds *int64   `json:"duration_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	options := make([]string, 0, len(req.Options))
	for _, opt := range req.Options {
		options = append(options, strings.TrimSpace(h.sanitizer.Sanitize(opt)))
	}

	params := poll.CreateParams{
		GuildID:   c.GetString("guild"),
		ChannelID: req.ChannelID,
		AuthorID:  c.GetString("user"),
		Question:  strings.TrimSpace(h.sanitizer.Sanitize(req.Question)),
		Options:   options,
	}
	if req.DurationSeconds != nil {
		d := time.Duration(*req.DurationSeconds) * time.Second
		params.Duration = &d
	}

	p, err := h.svc.Create(c.Request.Context(), params)
	if err != nil {
		if poll.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": p.ID, "status": p.Status, "end_time": p.EndTime})
}

func (h Polls) Close(c *gin.Context) {
	p, ok := h.get(c)
	if !ok {
		return
	}

	_, ranking, err := h.svc.Close(c.Request.Context(), p.ID)
	switch {
	case errors.Is(err, poll.ErrAlreadyClosed):
		c.JSON(http.StatusConflict, gin.H{"err": "poll already closed"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": p.ID, "status": types.PollClosed, "ranking": ranking})
}
