// Package discord wraps the discordgo session with the narrow set of REST
// calls the bot needs: posting, editing and deleting embeds, reading the
// bot's own history, provisioning channels, relaying images and writing to
// the operator log channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tplearn/tplearn-bot/pkg/circuitbreaker"
	"github.com/tplearn/tplearn-bot/pkg/retry"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Discord client.
type ClientConfig struct {
	// LogChannelID receives operator reports. Empty disables them.
	LogChannelID string

	// ImageChannelID receives re-uploaded menu images. Empty means attachment
	// URLs are used as they are.
	ImageChannelID string

	// DownloadTimeout bounds a single attachment download.
	DownloadTimeout time.Duration

	// MaxImageBytes caps the size of a relayed attachment.
	MaxImageBytes int64

	// Calendar stamps operator reports. Defaults to the Thailand calendar.
	Calendar *timeutil.Calendar

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DownloadTimeout: 30 * time.Second,
		MaxImageBytes:   8 << 20,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client performs REST calls through a discordgo session. Transient server
// errors are retried a few times and a run of them opens a circuit breaker.
// Rate limits are handled by discordgo.
type Client struct {
	session  *discordgo.Session
	http     *http.Client
	retrier  *retry.Retrier
	breaker  *circuitbreaker.Breaker
	calendar *timeutil.Calendar
	logger   *slog.Logger
	config   ClientConfig
}

var _ jobs.Messenger = (*Client)(nil)

// NewClient creates a client over an existing session.
func NewClient(session *discordgo.Session, config ClientConfig) *Client {
	def := DefaultClientConfig()
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = def.DownloadTimeout
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = def.MaxImageBytes
	}
	if config.Calendar == nil {
		config.Calendar = timeutil.Thailand()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "discord")
	return &Client{
		session: session,
		http:    &http.Client{Timeout: config.DownloadTimeout},
		retrier: retry.ChatRetrier(IsTransient),
		breaker: circuitbreaker.ChatBreaker(IsTransient, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		calendar: config.Calendar,
		logger:   logger,
		config:   config,
	}
}

// Session returns the underlying session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// BotID returns the bot's user ID once the gateway is ready.
func (c *Client) BotID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func (c *Client) do(ctx context.Context, op func(opts ...discordgo.RequestOption) error) error {
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return op(discordgo.WithContext(ctx))
		})
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Messages
// ──────────────────────────────────────────────────────────────────────────────

// History returns up to limit of the most recent messages in the channel
// that the bot authored, newest first.
func (c *Client) History(ctx context.Context, channelID string, limit int) ([]jobs.Posted, error) {
	botID := c.BotID()
	if botID == "" {
		return nil, ErrNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var msgs []*discordgo.Message
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		msgs, err = c.session.ChannelMessages(channelID, limit, "", "", "", opts...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("discord: history %s: %w", channelID, err)
	}

	return ownPosts(msgs, botID), nil
}

func ownPosts(msgs []*discordgo.Message, botID string) []jobs.Posted {
	out := make([]jobs.Posted, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Author == nil || m.Author.ID != botID {
			continue
		}
		p := jobs.Posted{ID: m.ID}
		if len(m.Embeds) > 0 {
			p.Embed = m.Embeds[0]
		}
		out = append(out, p)
	}
	return out
}

// Send posts an embed and returns the new message ID.
func (c *Client) Send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	return c.SendMessage(ctx, channelID, "", embed)
}

// SendMessage posts text and an optional embed.
func (c *Client) SendMessage(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	data := &discordgo.MessageSend{Content: content}
	if embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}

	var msg *discordgo.Message
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		msg, err = c.session.ChannelMessageSendComplex(channelID, data, opts...)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

// Edit replaces the embed of a message.
func (c *Client) Edit(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ChannelMessageEditEmbed(channelID, messageID, embed, opts...)
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: edit %s: %w", messageID, err)
	}
	return nil
}

// Delete removes a message. A message that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		return c.session.ChannelMessageDelete(channelID, messageID, opts...)
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("discord: delete %s: %w", messageID, err)
	}
	return nil
}

// React adds a reaction to a message.
func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		return c.session.MessageReactionAdd(channelID, messageID, emoji, opts...)
	})
	if err != nil {
		return fmt.Errorf("discord: react %s: %w", emoji, err)
	}
	return nil
}

// ClearReactions removes every reaction from a message.
func (c *Client) ClearReactions(ctx context.Context, channelID, messageID string) error {
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		return c.session.MessageReactionsRemoveAll(channelID, messageID, opts...)
	})
	if err != nil {
		return fmt.Errorf("discord: clear reactions: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Channels and permissions
// ──────────────────────────────────────────────────────────────────────────────

// ChannelExists reports whether the channel can still be resolved. Only an
// explicit "unknown channel" answer counts as missing.
func (c *Client) ChannelExists(ctx context.Context, channelID string) bool {
	if channelID == "" {
		return false
	}
	if c.session.State != nil {
		if ch, err := c.session.State.Channel(channelID); err == nil && ch != nil {
			return true
		}
	}

	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.Channel(channelID, opts...)
		return err
	})
	if err == nil {
		return true
	}
	if IsNotFound(err) {
		return false
	}
	c.logger.Warn("channel lookup failed", "channel_id", channelID, "error", err)
	return true
}

// CreateChannel creates a text channel in which @everyone cannot send messages.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string) (string, error) {
	data := readOnlyChannel(guildID, name)

	var ch *discordgo.Channel
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		ch, err = c.session.GuildChannelCreateComplex(guildID, data, opts...)
		return err
	})
	if err != nil {
		if IsForbidden(err) {
			return "", fmt.Errorf("discord: create channel %q: %w", name, ErrMissingPermissions)
		}
		return "", fmt.Errorf("discord: create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

// The @everyone role shares the guild's ID.
func readOnlyChannel(guildID, name string) discordgo.GuildChannelCreateData {
	return discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{{
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionSendMessages,
		}},
	}
}

// Permissions returns the user's effective permissions in a channel.
func (c *Client) Permissions(ctx context.Context, userID, channelID string) (int64, error) {
	if c.session.State != nil {
		if p, err := c.session.State.UserChannelPermissions(userID, channelID); err == nil {
			return p, nil
		}
	}

	var perms int64
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		var err error
		perms, err = c.session.UserChannelPermissions(userID, channelID, opts...)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("discord: permissions of %s: %w", userID, err)
	}
	return perms, nil
}

// SetWatching sets the "Watching ..." presence.
func (c *Client) SetWatching(name string) error {
	return c.session.UpdateWatchStatus(0, name)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotReady is returned before the gateway has identified the bot.
	ErrNotReady = errors.New("discord: session not ready")

	// ErrMissingPermissions is returned when the bot lacks a permission.
	ErrMissingPermissions = errors.New("discord: missing permissions")
)

func restStatus(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

// IsTransient reports whether a call failed in a way worth retrying: a 5xx
// answer or a network error.
func IsTransient(err error) bool {
	if status := restStatus(err); status != 0 {
		return status >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsNotFound reports whether the target no longer exists.
func IsNotFound(err error) bool {
	return restStatus(err) == http.StatusNotFound
}

// IsForbidden reports whether the bot lacks permissions for the call.
func IsForbidden(err error) bool {
	return restStatus(err) == http.StatusForbidden
}
