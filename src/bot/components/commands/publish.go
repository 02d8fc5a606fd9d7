package commands

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sumire-bot/sumire/src/poll"
)

// Publisher posts dashboard-created polls to their channel. The dashboard API
// only writes rows; polls without a message id are picked up here, published
// with their vote buttons, and stamped with the resulting message id.
type Publisher struct {
	session  *discordgo.Session
	store    poll.Store
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPublisher(session *discordgo.Session, store poll.Store, interval time.Duration) *Publisher {
	return &Publisher{
		session:  session,
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (p *Publisher) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.publishPending()
			}
		}
	}()
}

func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Publisher) publishPending() {
	ctx := context.Background()
	pending, err := p.store.ListUnpublished(ctx)
	if err != nil {
		log.Printf("publisher: list unpublished: %v", err)
		return
	}

	for i := range pending {
		pl := &pending[i]
		tally, err := p.store.Tally(ctx, pl.ID)
		if err != nil {
			log.Printf("publisher: tally for poll %d: %v", pl.ID, err)
			continue
		}
		msg, err := p.session.ChannelMessageSendComplex(pl.ChannelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{PollEmbed(pl, tally)},
			Components: PollButtons(len(pl.Options)),
		})
		if err != nil {
			log.Printf("publisher: send poll %d to %s: %v", pl.ID, pl.ChannelID, err)
			continue
		}
		if err := p.store.SetMessageID(ctx, pl.ID, msg.ID); err != nil {
			log.Printf("publisher: stamp poll %d: %v", pl.ID, err)
			continue
		}
		log.Printf("publisher: poll %d published as message %s", pl.ID, msg.ID)
	}
}
