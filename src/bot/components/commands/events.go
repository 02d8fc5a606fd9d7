package commands

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sumire-bot/sumire/src/data"
	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/poll"
)

// EventBridge replays API-originated state changes onto the published Discord
// messages. The dashboard can close polls and reroll giveaways, but only the
// bot holds a Discord session; without the bridge those messages would keep
// rendering the pre-change state forever. Events the bot published itself are
// skipped, their messages were already edited by the bot's own sink.
type EventBridge struct {
	rdb      *redis.Client
	store    poll.Store
	pollSink poll.Sink
	gwaySvc  *giveaway.Service
	gwaySink giveaway.Sink

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEventBridge(rdb *redis.Client, store poll.Store, pollSink poll.Sink, gwaySvc *giveaway.Service, gwaySink giveaway.Sink) *EventBridge {
	return &EventBridge{
		rdb:      rdb,
		store:    store,
		pollSink: pollSink,
		gwaySvc:  gwaySvc,
		gwaySink: gwaySink,
		stop:     make(chan struct{}),
	}
}

// Start consumes the event stream until Stop is called. Only events appended
// after startup are read; anything older was rendered in its own process
// lifetime or is covered by the recovery sweep.
func (eb *EventBridge) Start() {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		lastID := "$"
		for {
			select {
			case <-eb.stop:
				return
			default:
				streams, err := eb.rdb.XRead(context.Background(), &redis.XReadArgs{
					Streams: []string{data.EventStream(), lastID},
					Count:   10,
					Block:   5 * time.Second,
				}).Result()
				if err != nil {
					if err != redis.Nil {
						log.Printf("event bridge: read stream: %v", err)
					}
					continue
				}
				for _, stream := range streams {
					for _, msg := range stream.Messages {
						lastID = msg.ID
						eb.dispatch(context.Background(), msg.Values)
					}
				}
			}
		}
	}()
}

func (eb *EventBridge) Stop() {
	eb.stopOnce.Do(func() { close(eb.stop) })
	eb.wg.Wait()
}

func stringValue(values map[string]interface{}, key string) string {
	if v, ok := values[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func (eb *EventBridge) dispatch(ctx context.Context, values map[string]interface{}) {
	if stringValue(values, "source") == data.SourceBot {
		return
	}
	switch stringValue(values, "kind") {
	case "poll":
		eb.dispatchPoll(ctx, values)
	case "giveaway":
		eb.dispatchGiveaway(ctx, values)
	}
}

func (eb *EventBridge) dispatchPoll(ctx context.Context, values map[string]interface{}) {
	id, err := strconv.ParseUint(stringValue(values, "poll"), 10, 64)
	if err != nil {
		log.Printf("event bridge: bad poll id %q", stringValue(values, "poll"))
		return
	}
	p, err := eb.store.Get(ctx, id)
	if err != nil {
		log.Printf("event bridge: load poll %d: %v", id, err)
		return
	}
	tally, err := eb.store.Tally(ctx, id)
	if err != nil {
		log.Printf("event bridge: tally poll %d: %v", id, err)
		return
	}

	switch stringValue(values, "event") {
	case "closed":
		if err := eb.pollSink.RenderFinal(ctx, p, poll.Rank(p.Options, tally)); err != nil {
			log.Printf("event bridge: final render poll %d: %v", id, err)
		}
	case "tally":
		if err := eb.pollSink.Render(ctx, p, tally); err != nil {
			log.Printf("event bridge: render poll %d: %v", id, err)
		}
	}
}

func (eb *EventBridge) dispatchGiveaway(ctx context.Context, values map[string]interface{}) {
	id, err := strconv.ParseUint(stringValue(values, "giveaway"), 10, 64)
	if err != nil {
		log.Printf("event bridge: bad giveaway id %q", stringValue(values, "giveaway"))
		return
	}
	g, err := eb.gwaySvc.Get(ctx, id)
	if err != nil {
		log.Printf("event bridge: load giveaway %d: %v", id, err)
		return
	}

	switch stringValue(values, "event") {
	case "final":
		var winners []string
		if raw := stringValue(values, "winners"); raw != "" {
			winners = strings.Split(raw, ",")
		}
		if err := eb.gwaySink.RenderFinal(ctx, g, winners); err != nil {
			log.Printf("event bridge: final render giveaway %d: %v", id, err)
		}
	case "entries":
		entries, err := strconv.Atoi(stringValue(values, "entries"))
		if err != nil {
			return
		}
		if err := eb.gwaySink.Render(ctx, g, entries); err != nil {
			log.Printf("event bridge: render giveaway %d: %v", id, err)
		}
	}
}
