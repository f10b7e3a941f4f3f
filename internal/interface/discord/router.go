// Package discord is the chat-facing layer of the bot: it turns gateway
// events into menu input and prefixed commands, runs the per-command checks
// and renders replies.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/shared"
	extdiscord "github.com/tplearn/tplearn-bot/internal/infrastructure/external/discord"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/middleware"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Chat is the set of platform calls the command layer makes.
type Chat interface {
	SendMessage(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error)
	Edit(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error
	Delete(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	ClearReactions(ctx context.Context, channelID, messageID string) error
	CreateChannel(ctx context.Context, guildID, name string) (string, error)
	Permissions(ctx context.Context, userID, channelID string) (int64, error)
}

var _ Chat = (*extdiscord.Client)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// Request is one parsed command invocation.
type Request struct {
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
	Prefix    string
	Command   string
	Args      []string
}

// Arg returns the i-th argument or "".
func (r *Request) Arg(i int) string {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return ""
}

// HandlerFunc handles a command.
type HandlerFunc func(ctx context.Context, req *Request) error

// Command describes a prefixed command and the checks run before it.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string

	Cooldown   middleware.Cooldown
	GuildOnly  bool
	NeedsSetup bool
	OwnerOnly  bool
	Hidden     bool

	// Permission is a discordgo permission bit the invoker must hold.
	Permission int64

	Handle HandlerFunc
}

// UserError is shown to the invoker as a short ":x:" line.
type UserError struct {
	Text string
}

func (e *UserError) Error() string {
	return e.Text
}

func userErrorf(format string, args ...any) error {
	return &UserError{Text: fmt.Sprintf(format, args...)}
}

// Incoming is a chat message that may carry a command.
type Incoming struct {
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
	Content   string
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Prefix  string
	OwnerID string
	Logger  *slog.Logger
}

// Router resolves prefixed commands, runs their checks and reports failures.
type Router struct {
	chat     Chat
	channels *planner.Channels
	reporter jobs.Reporter
	limiter  *middleware.Limiter
	recovery *middleware.Recovery
	logger   *slog.Logger
	config   RouterConfig

	commands map[string]*Command
	order    []*Command
}

// NewRouter creates a router. reporter may be nil.
func NewRouter(chat Chat, channels *planner.Channels, reporter jobs.Reporter, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Prefix == "" {
		config.Prefix = ","
	}
	r := &Router{
		chat:     chat,
		channels: channels,
		reporter: reporter,
		limiter:  middleware.NewLimiter(),
		logger:   config.Logger.With(logger.Component("router")),
		config:   config,
		commands: make(map[string]*Command),
	}
	r.recovery = middleware.NewRecovery(middleware.RecoveryConfig{
		Logger: config.Logger,
		OnPanic: func(ctx context.Context, info *middleware.PanicInfo) {
			r.report(ctx, "router", info.String())
		},
	})
	return r
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.config.Prefix
}

// Register adds a command. Names and aliases are case-insensitive.
func (r *Router) Register(cmd Command) {
	c := cmd
	r.order = append(r.order, &c)
	r.commands[strings.ToLower(c.Name)] = &c
	for _, alias := range c.Aliases {
		r.commands[strings.ToLower(alias)] = &c
	}
}

// Help lists the visible commands in registration order.
func (r *Router) Help() []presenter.CommandHelp {
	out := make([]presenter.CommandHelp, 0, len(r.order))
	for _, c := range r.order {
		if c.Hidden {
			continue
		}
		out = append(out, presenter.CommandHelp{
			Name:        c.Name,
			Aliases:     c.Aliases,
			Usage:       c.Usage,
			Description: c.Description,
		})
	}
	return out
}

// Parse splits a message into a command and its arguments. It reports false
// when the message does not start with the prefix or the command is unknown.
func (r *Router) Parse(in Incoming) (*Command, *Request, bool) {
	rest, ok := strings.CutPrefix(in.Content, r.config.Prefix)
	if !ok {
		return nil, nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, nil, false
	}
	cmd, ok := r.commands[strings.ToLower(fields[0])]
	if !ok {
		return nil, nil, false
	}
	return cmd, &Request{
		GuildID:   in.GuildID,
		ChannelID: in.ChannelID,
		UserID:    in.UserID,
		MessageID: in.MessageID,
		Prefix:    r.config.Prefix,
		Command:   cmd.Name,
		Args:      fields[1:],
	}, true
}

// Dispatch runs the command carried by the message, if any. It reports
// whether a command was found.
func (r *Router) Dispatch(ctx context.Context, in Incoming) bool {
	cmd, req, ok := r.Parse(in)
	if !ok {
		return false
	}

	log := r.logger.With(logger.Command(cmd.Name), logger.User(req.UserID), logger.Guild(req.GuildID))
	ctx = logger.WithContext(ctx, log)

	err := r.recovery.Call(ctx, cmd.Name, req.UserID, req.GuildID, func() error {
		if err := r.check(ctx, cmd, req); err != nil {
			return err
		}
		return cmd.Handle(ctx, req)
	})
	if err == nil {
		log.Debug("command handled")
		return true
	}

	r.fail(ctx, log, cmd, req, err)
	return true
}

func (r *Router) check(ctx context.Context, cmd *Command, req *Request) error {
	if (cmd.GuildOnly || cmd.NeedsSetup || cmd.Permission != 0) && req.GuildID == "" {
		return userErrorf("This command cannot be used in private messages.")
	}
	if cmd.OwnerOnly && (r.config.OwnerID == "" || req.UserID != r.config.OwnerID) {
		return userErrorf("You do not own this bot.")
	}
	if cmd.Permission != 0 {
		perms, err := r.chat.Permissions(ctx, req.UserID, req.ChannelID)
		if err != nil {
			return fmt.Errorf("check permissions: %w", err)
		}
		if perms&cmd.Permission != cmd.Permission && perms&discordgo.PermissionAdministrator == 0 {
			return userErrorf("You are missing %s permission(s) to run this command.", permissionName(cmd.Permission))
		}
	}
	if cmd.NeedsSetup {
		if _, ok := r.channels.Get(req.GuildID); !ok {
			return userErrorf("Please use `%ssetup` to setup the bot first.", req.Prefix)
		}
	}

	scope := req.GuildID
	if scope == "" {
		scope = "dm:" + req.UserID
	}
	return r.limiter.Check(scope, cmd.Name, cmd.Cooldown)
}

func permissionName(p int64) string {
	switch p {
	case discordgo.PermissionManageServer:
		return "Manage Server"
	case discordgo.PermissionManageChannels:
		return "Manage Channels"
	default:
		return fmt.Sprintf("0x%x", p)
	}
}

// fail replies with a short notice. Unexpected errors also go to the operator.
func (r *Router) fail(ctx context.Context, log *slog.Logger, cmd *Command, req *Request, err error) {
	text, expected := describe(err)
	if expected {
		log.Debug("command rejected", "reason", err)
	} else {
		log.Error("command failed", "error", err)
		if !errors.Is(err, middleware.ErrPanic) {
			r.report(ctx, "router", fmt.Sprintf(
				":negative_squared_cross_mark: Command `%s` invoked by `%s` with error\n`%v`", cmd.Name, req.UserID, err))
		}
	}

	if _, sendErr := r.chat.SendMessage(ctx, req.ChannelID, ":x: **"+text+"**", nil); sendErr != nil {
		log.Warn("failed to send error reply", "error", sendErr)
	}
}

// describe maps an error to the line shown to the user and reports whether
// the error is an expected rejection.
func describe(err error) (string, bool) {
	var userErr *UserError
	var cdErr *middleware.CooldownError
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &userErr):
		return userErr.Text, true
	case errors.As(err, &cdErr):
		return cdErr.Error(), true
	case errors.Is(err, extdiscord.ErrMissingPermissions):
		return "It looks like I don't have permission to do that!", true
	case errors.As(err, &domainErr) && domainErr.Message != "":
		return domainErr.Message, true
	default:
		return "Something went wrong while processing your request!", false
	}
}

func (r *Router) report(ctx context.Context, component, text string) {
	if r.reporter != nil {
		r.reporter.Report(ctx, component, text)
	}
}
