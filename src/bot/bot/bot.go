package bot

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/sumire-bot/sumire/src/bot/components"
	"github.com/sumire-bot/sumire/src/bot/components/commands"
	"github.com/sumire-bot/sumire/src/data"
	"github.com/sumire-bot/sumire/src/giveaway"
	"github.com/sumire-bot/sumire/src/poll"
	"gorm.io/gorm"
)

type Config struct {
	Token         string
	GuildID       string
	DashboardURL  string
	SweepInterval time.Duration
	DB            *gorm.DB
	Redis         *redis.Client
}

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	rdb     *redis.Client
	config  Config

	pollStore poll.Store
	pollSvc   *poll.Service
	pollSched *poll.Scheduler
	gwaySvc   *giveaway.Service
	publisher *commands.Publisher
	bridge    *commands.EventBridge

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	pollHandler *commands.PollHandler
	gwayHandler *commands.GiveawayHandler
	dashHandler *commands.DashboardHandler
}

func New(config Config) (*Bot, error) {
	if err := data.LoadSettings(config.DB); err != nil {
		return nil, err
	}

	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		session: dg,
		db:      config.DB,
		rdb:     config.Redis,
		config:  config,
		stop:    make(chan struct{}),
	}
	b.initializeComponents()

	dg.AddHandler(b.handleReady)
	dg.AddHandler(b.handleInteraction)
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return b, nil
}

func (b *Bot) initializeComponents() {
	b.pollStore = poll.NewGormStore(b.db)

	// Every vote edits the poll message and mirrors the event onto the
	// Redis stream for the dashboard.
	pollSink := commands.NewPollSink(b.session)
	sink := poll.MultiSink{
		pollSink,
		data.NewPollEventSink(b.rdb, data.SourceBot),
	}
	b.pollSvc = poll.NewService(b.pollStore, sink)
	b.pollSched = poll.NewScheduler(b.pollSvc, b.pollStore, b.config.SweepInterval)

	gwaySink := commands.NewGiveawaySink(b.session)
	b.gwaySvc = giveaway.NewService(b.db, gwaySink)

	b.publisher = commands.NewPublisher(b.session, b.pollStore, 10*time.Second)

	// API-side closes and rerolls reach Discord through the stream.
	b.bridge = commands.NewEventBridge(b.rdb, b.pollStore, pollSink, b.gwaySvc, gwaySink)

	limiter := components.NewUserRateLimiter(30 * time.Second)
	b.pollHandler = commands.NewPollHandler(b.pollSvc, limiter)
	b.gwayHandler = commands.NewGiveawayHandler(b.gwaySvc, limiter)
	b.dashHandler = commands.NewDashboardHandler(b.rdb, b.config.DashboardURL)
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return err
	}

	// Settings can be edited in the database while the bot runs; pick the
	// changes up without a restart.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				if err := data.RefreshSettings(b.db); err != nil {
					log.Printf("refresh settings: %v", err)
				}
			}
		}
	}()
	return nil
}

func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
	b.pollSched.Stop()
	b.gwaySvc.StopSweep()
	b.publisher.Stop()
	b.bridge.Stop()
	b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)

	if err := commands.RegisterSlashCommands(s, b.config.GuildID); err != nil {
		log.Printf("register slash commands: %v", err)
	}

	// Reconcile deadlines that passed while the process was down before any
	// new vote can land, then keep timers and the sweep running.
	ctx := context.Background()
	if err := b.pollSched.Recover(ctx); err != nil {
		log.Printf("poll recovery: %v", err)
	}
	b.pollSched.Start()

	if err := b.gwaySvc.Recover(ctx); err != nil {
		log.Printf("giveaway recovery: %v", err)
	}
	b.gwaySvc.StartSweep(b.config.SweepInterval)

	b.publisher.Start()
	b.bridge.Start()
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case commands.CommandPoll, commands.CommandPollEnd:
			b.pollHandler.HandleCommand(s, i)
		case commands.CommandGiveaway, commands.CommandGiveawayEnd, commands.CommandGiveawayReroll:
			b.gwayHandler.HandleCommand(s, i)
		case commands.CommandDashboard:
			b.dashHandler.HandleCommand(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case strings.HasPrefix(customID, commands.VotePrefix):
			b.pollHandler.HandleComponent(s, i)
		case customID == commands.EnterID:
			b.gwayHandler.HandleComponent(s, i)
		}
	}
}
