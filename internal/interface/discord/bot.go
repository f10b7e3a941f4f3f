package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// Receives gateway events and hands them to the menu manager and the router.
// ══════════════════════════════════════════════════════════════════════════════

// Intents needed for prefixed commands and menu reactions.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// BotConfig contains configuration for the bot.
type BotConfig struct {
	// HandlerTimeout bounds the processing of one event.
	HandlerTimeout time.Duration

	Logger *slog.Logger
}

// Presence sets the bot's status once the gateway is ready.
type Presence interface {
	SetWatching(name string) error
}

// GuildForgetter drops the stored channel mapping of a guild the bot left.
type GuildForgetter interface {
	Remove(ctx context.Context, guildID string) bool
}

// Bot dispatches gateway events.
type Bot struct {
	session  *discordgo.Session
	router   *Router
	menus    *menu.Manager
	presence Presence
	guilds   GuildForgetter
	logger   *slog.Logger
	config   BotConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	remove []func()
}

// NewBot creates a bot over a session that has not been opened yet.
func NewBot(session *discordgo.Session, router *Router, menus *menu.Manager, presence Presence, guilds GuildForgetter, config BotConfig) *Bot {
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 2 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Bot{
		session:  session,
		router:   router,
		menus:    menus,
		presence: presence,
		guilds:   guilds,
		logger:   config.Logger.With("component", "bot"),
		config:   config,
	}
}

// Start registers the event handlers and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	b.session.Identify.Intents = Intents
	b.remove = append(b.remove,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onMessageCreate),
		b.session.AddHandler(b.onReactionAdd),
		b.session.AddHandler(b.onReactionRemove),
		b.session.AddHandler(b.onGuildDelete),
	)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.logger.Info("gateway connected")
	return nil
}

// Stop closes the gateway and waits for in-flight handlers.
func (b *Bot) Stop() error {
	for _, rm := range b.remove {
		rm()
	}
	b.remove = nil

	err := b.session.Close()
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info("gateway closed")
	return err
}

// track runs fn as an in-flight handler with its own timeout.
func (b *Bot) track(fn func(ctx context.Context)) {
	base := b.ctx
	if base == nil {
		base = context.Background()
	}
	b.wg.Add(1)
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(base, b.config.HandlerTimeout)
	defer cancel()
	fn(ctx)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if b.presence == nil {
		return
	}
	if err := b.presence.SetWatching(b.router.Prefix() + "help"); err != nil {
		b.logger.Warn("failed to set presence", "error", err)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	b.track(func(ctx context.Context) {
		b.HandleMessage(ctx, m.Message)
	})
}

// HandleMessage feeds a user message to the author's menu, and otherwise to
// the router. A prefixed message closes an open menu and still runs.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	in := menu.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if len(m.Attachments) > 0 {
		a := m.Attachments[0]
		in.Attachment = &menu.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType}
	}
	if b.menus.HandleMessage(m.Author.ID, in) {
		return
	}

	b.router.Dispatch(ctx, Incoming{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		MessageID: m.ID,
		Content:   m.Content,
	})
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	b.handleReaction(s, r.MessageReaction)
}

func (b *Bot) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	b.handleReaction(s, r.MessageReaction)
}

// Adding and removing a reaction both count as a press.
func (b *Bot) handleReaction(s *discordgo.Session, r *discordgo.MessageReaction) {
	if r == nil {
		return
	}
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	b.menus.HandleReaction(r.UserID, r.MessageID, r.Emoji.Name)
}

// An unavailable guild is an outage, not a removal, and keeps its channels.
func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g == nil || g.Guild == nil || g.Unavailable || b.guilds == nil {
		return
	}
	b.track(func(ctx context.Context) {
		if b.guilds.Remove(ctx, g.ID) {
			b.logger.Info("removed from guild, channel mapping dropped", "guild_id", g.ID)
		}
	})
}
