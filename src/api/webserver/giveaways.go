package webserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/types"
)

type Giveaways struct {
	svc *giveaway.Service
}

func NewGiveaways(svc *giveaway.Service) Giveaways {
	return Giveaways{svc: svc}
}

func (h Giveaways) get(c *gin.Context) (*types.Giveaway, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad giveaway id"})
		return nil, false
	}
	g, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, giveaway.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"err": "giveaway not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return nil, false
	}
	if g.GuildID != c.GetString("guild") {
		c.JSON(http.StatusNotFound, gin.H{"err": "giveaway not found"})
		return nil, false
	}
	return g, true
}

func (h Giveaways) List(c *gin.Context) {
	gs, err := h.svc.ListByGuild(c.Request.Context(), c.GetString("guild"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(gs))
	for i := range gs {
		g := &gs[i]
		entries, err := h.svc.Entries(c.Request.Context(), g.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
			return
		}
		items = append(items, gin.H{
			"id":           g.ID,
			"prize":        g.Prize,
			"status":       g.Status,
			"winner_count": g.WinnerCount,
			"entry_count":  len(entries),
			"end_time":     g.EndTime,
			"ended_at":     g.EndedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"giveaways": items, "total": len(items)})
}

func (h Giveaways) Get(c *gin.Context) {
	g, ok := h.get(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	entries, err := h.svc.Entries(ctx, g.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	winners, err := h.svc.Winners(ctx, g.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	rounds := make(map[int][]string)
	for _, w := range winners {
		rounds[w.Round] = append(rounds[w.Round], w.UserID)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           g.ID,
		"prize":        g.Prize,
		"status":       g.Status,
		"host_id":      g.HostID,
		"channel_id":   g.ChannelID,
		"message_id":   g.MessageID,
		"winner_count": g.WinnerCount,
		"end_time":     g.EndTime,
		"ended_at":     g.EndedAt,
		"entries":      entries,
		"winners":      rounds,
	})
}

func (h Giveaways) Reroll(c *gin.Context) {
	g, ok := h.get(c)
	if !ok {
		return
	}

	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	winners, err := h.svc.Reroll(c.Request.Context(), g.ID, req.Count)
	switch {
	case errors.Is(err, giveaway.ErrNoEligible):
		c.JSON(http.StatusConflict, gin.H{"err": "no eligible entrants left"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": g.ID, "winners": winners})
}
