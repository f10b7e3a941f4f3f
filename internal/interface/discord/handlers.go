package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/shared"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/middleware"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/logger"
)

// Updater runs a forced reconciliation of one guild.
type Updater interface {
	Force(ctx context.Context, guildID string, bypass bool) (jobs.UpdateStats, error)
}

// HandlersConfig contains configuration for the command handlers.
type HandlersConfig struct {
	// AssignmentLimit caps the active assignments of a guild.
	AssignmentLimit int

	Logger *slog.Logger
}

// Handlers implements the bot's commands.
type Handlers struct {
	planner   *planner.Planner
	channels  *planner.Channels
	menus     *menu.Manager
	presenter *presenter.Presenter
	chat      Chat
	updater   Updater
	reporter  jobs.Reporter
	router    *Router
	logger    *slog.Logger
	config    HandlersConfig
}

// NewHandlers creates the handlers. updater and reporter may be nil.
func NewHandlers(
	p *planner.Planner,
	channels *planner.Channels,
	menus *menu.Manager,
	pr *presenter.Presenter,
	chat Chat,
	updater Updater,
	reporter jobs.Reporter,
	config HandlersConfig,
) *Handlers {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.AssignmentLimit <= 0 {
		config.AssignmentLimit = 24
	}
	return &Handlers{
		planner:   p,
		channels:  channels,
		menus:     menus,
		presenter: pr,
		chat:      chat,
		updater:   updater,
		reporter:  reporter,
		logger:    config.Logger.With("component", "commands"),
		config:    config,
	}
}

// Register adds every command to the router.
func (h *Handlers) Register(r *Router) {
	h.router = r

	r.Register(Command{
		Name: "add", Description: "Open the homework menu to add an assignment.",
		Cooldown: middleware.Cooldown{Rate: 3, Per: 45 * time.Second}, NeedsSetup: true,
		Handle: h.Add,
	})
	r.Register(Command{
		Name: "edit", Usage: "<key>", Description: "Edit an assignment in the homework menu.",
		Cooldown: middleware.Cooldown{Rate: 3, Per: 45 * time.Second}, NeedsSetup: true,
		Handle: h.Edit,
	})
	r.Register(Command{
		Name: "remove", Aliases: []string{"delete", "del"}, Usage: "<key>", Description: "Remove an assignment.",
		Cooldown: middleware.Cooldown{Rate: 3, Per: 15 * time.Second}, NeedsSetup: true,
		Handle: h.Remove,
	})
	r.Register(Command{
		Name: "allworks", Aliases: []string{"aw", "allassignments"}, Description: "Show all assignments.",
		Cooldown: middleware.Cooldown{Rate: 2, Per: 20 * time.Second}, NeedsSetup: true,
		Handle: h.AllWorks,
	})
	r.Register(Command{
		Name: "info", Aliases: []string{"inf", "detail", "check"}, Usage: "<key>", Description: "Show one assignment.",
		Cooldown: middleware.Cooldown{Rate: 5, Per: 25 * time.Second}, NeedsSetup: true,
		Handle: h.Info,
	})
	r.Register(Command{
		Name: "setup", Description: "Create the Active-Works and Passed-Works channels.",
		Cooldown: middleware.Cooldown{Rate: 1, Per: 10 * time.Second}, GuildOnly: true,
		Permission: discordgo.PermissionManageServer,
		Handle:     h.Setup,
	})
	r.Register(Command{
		Name: "fix", Description: "Recreate missing bot channels.",
		Cooldown: middleware.Cooldown{Rate: 1, Per: 60 * time.Second}, GuildOnly: true,
		Permission: discordgo.PermissionManageServer,
		Handle:     h.Fix,
	})
	r.Register(Command{
		Name: "fupdate", Usage: "<guild_id> [bypass]", Description: "Force an update of a guild's active channel.",
		OwnerOnly: true, Hidden: true,
		Handle: h.ForceUpdate,
	})
	r.Register(Command{
		Name: "help", Description: "Show this message.",
		Handle: h.Help,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Add opens an empty menu. The limit is checked here, not at commit.
func (h *Handlers) Add(ctx context.Context, req *Request) error {
	if n := len(h.planner.GetAll(req.GuildID)); n >= h.config.AssignmentLimit {
		return shared.WrapError("assignment", "Add", shared.ErrLimitReached,
			fmt.Sprintf("Assignments limit has been reached. (%d)", h.config.AssignmentLimit), nil)
	}
	return h.openMenu(ctx, req, menu.OpenRequest{Kind: menu.KindAdd})
}

// Edit opens a menu prefilled with an existing assignment.
func (h *Handlers) Edit(ctx context.Context, req *Request) error {
	key := req.Arg(0)
	if key == "" || !h.planner.CheckValidKey(req.GuildID, key) {
		return h.overview(ctx, req, "Please provide the assignment key to edit!")
	}

	a, err := h.planner.Get(req.GuildID, key)
	if err != nil {
		return err
	}
	if a.AlreadyPassed {
		return shared.ErrEditPassed
	}
	return h.openMenu(ctx, req, menu.OpenRequest{Kind: menu.KindEdit, Key: key, Fields: a.Fields()})
}

func (h *Handlers) openMenu(ctx context.Context, req *Request, open menu.OpenRequest) error {
	open.UserID = req.UserID
	open.GuildID = req.GuildID
	open.ChannelID = req.ChannelID
	log := logger.FromContext(ctx, h.logger)
	open.Surface = newMenuSurface(h.chat, h.presenter, req.ChannelID, log)

	if h.menus.Active(req.UserID) {
		log.Debug("replacing open menu", "kind", open.Kind)
	}
	if err := h.menus.Open(ctx, open); err != nil {
		if errors.Is(err, shared.ErrSessionClosed) {
			return userErrorf("The bot is shutting down, please try again later.")
		}
		return err
	}
	return nil
}

// Remove deletes an assignment by key.
func (h *Handlers) Remove(ctx context.Context, req *Request) error {
	key := req.Arg(0)
	if key == "" || len(h.planner.GetAll(req.GuildID)) == 0 || !h.planner.CheckValidKey(req.GuildID, key) {
		return h.overview(ctx, req, "Please provide the assignment key to delete!")
	}

	a, ok := h.planner.Remove(ctx, req.GuildID, key)
	if !ok {
		return h.overview(ctx, req, "Please provide the assignment key to delete!")
	}
	return h.reply(ctx, req, "", h.presenter.Removed(a.Key))
}

// AllWorks shows the overview.
func (h *Handlers) AllWorks(ctx context.Context, req *Request) error {
	return h.reply(ctx, req, "", h.presenter.Overview(h.planner.GetSorted(req.GuildID)))
}

// Info shows one assignment, or the overview when the key is unknown.
func (h *Handlers) Info(ctx context.Context, req *Request) error {
	if len(h.planner.GetAll(req.GuildID)) == 0 {
		return h.reply(ctx, req, "No assignment yet!", nil)
	}

	key := req.Arg(0)
	if key == "" || !h.planner.CheckValidKey(req.GuildID, key) {
		return h.overview(ctx, req, "Please provide the assignment key to check assignment info!")
	}

	a, err := h.planner.Get(req.GuildID, key)
	if err != nil {
		return err
	}
	return h.reply(ctx, req, "", h.presenter.AssignmentEmbed(a))
}

// overview replies with the overview embed, prompting for a key only when
// there is something to pick.
func (h *Handlers) overview(ctx context.Context, req *Request, prompt string) error {
	sorted := h.planner.GetSorted(req.GuildID)
	if len(sorted) == 0 {
		prompt = ""
	}
	return h.reply(ctx, req, prompt, h.presenter.Overview(sorted))
}

func (h *Handlers) reply(ctx context.Context, req *Request, content string, embed *discordgo.MessageEmbed) error {
	if _, err := h.chat.SendMessage(ctx, req.ChannelID, content, embed); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNELS
// ══════════════════════════════════════════════════════════════════════════════

var channelNames = map[planner.ChannelKind]string{
	planner.ChannelActive: "Active-Works",
	planner.ChannelPassed: "Passed-Works",
}

// Setup provisions both channels of a guild that has none.
func (h *Handlers) Setup(ctx context.Context, req *Request) error {
	if _, ok := h.channels.Get(req.GuildID); ok {
		return h.reply(ctx, req, fmt.Sprintf(
			":x: **You've already setup the bot!**\nYou can type `%sfix` to fix simple problem!", req.Prefix), nil)
	}

	if err := h.createChannels(ctx, req.GuildID, planner.ChannelKinds); err != nil {
		return err
	}

	h.report(ctx, "setup", fmt.Sprintf("Successfully setup bot in %s", req.GuildID))
	return h.reply(ctx, req, ":white_check_mark: Successfully setup the bot!", nil)
}

// Fix recreates whichever channel no longer exists.
func (h *Handlers) Fix(ctx context.Context, req *Request) error {
	if _, ok := h.channels.Get(req.GuildID); !ok {
		return h.reply(ctx, req, fmt.Sprintf("Please use `%ssetup` to setup the bot first.", req.Prefix), nil)
	}

	missing := h.channels.Missing(ctx, req.GuildID)
	if len(missing) > 0 {
		if err := h.createChannels(ctx, req.GuildID, missing); err != nil {
			return err
		}
		h.planner.MarkDirty(req.GuildID)
	}

	h.report(ctx, "setup", fmt.Sprintf("Command `%sfix` has been ran on %s, recreated %d channel(s).",
		req.Prefix, req.GuildID, len(missing)))
	return h.reply(ctx, req, ":white_check_mark: **Fix Completed.**", nil)
}

func (h *Handlers) createChannels(ctx context.Context, guildID string, kinds []planner.ChannelKind) error {
	for _, kind := range kinds {
		id, err := h.chat.CreateChannel(ctx, guildID, channelNames[kind])
		if err != nil {
			return fmt.Errorf("create %s channel: %w", kind, err)
		}
		if !h.channels.Set(ctx, guildID, kind, id) {
			logger.FromContext(ctx, h.logger).Warn("channel mapping not persisted", "kind", kind)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR
// ══════════════════════════════════════════════════════════════════════════════

// ForceUpdate runs the reconciliation for one guild now.
func (h *Handlers) ForceUpdate(ctx context.Context, req *Request) error {
	guildID := req.Arg(0)
	if guildID == "" {
		return userErrorf("Missing required argument; `guild_id`")
	}
	bypass := false
	if raw := req.Arg(1); raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return userErrorf("Bad argument; `%s`", raw)
		}
		bypass = b
	}
	if h.updater == nil {
		return userErrorf("Updater is not running.")
	}

	st, err := h.updater.Force(ctx, guildID, bypass)
	switch {
	case errors.Is(err, jobs.ErrUpdateInProgress):
		return h.reply(ctx, req, "The bot currently updating data, Please try again later.\n"+
			"Please keep in mind that, bypassing the system will may result in bot getting rate limited.", nil)
	case err != nil:
		h.report(ctx, "update", fmt.Sprintf("Unable to update works at %s with error: %v", guildID, err))
		return h.reply(ctx, req, "Update failed, Exception in logs.", nil)
	}

	return h.reply(ctx, req, fmt.Sprintf("D: %d E: %d S: %d (skipped %d, failed %d) in %s",
		st.Deleted, st.Edited, st.Sent, st.Skipped, st.Failed, st.Duration.Round(time.Millisecond)), nil)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on", "enable", "enabled":
		return true, nil
	case "no", "n", "off", "disable", "disabled":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Help lists the commands.
func (h *Handlers) Help(ctx context.Context, req *Request) error {
	var cmds []presenter.CommandHelp
	if h.router != nil {
		cmds = h.router.Help()
	}
	return h.reply(ctx, req, "", presenter.Help(req.Prefix, cmds))
}

func (h *Handlers) report(ctx context.Context, component, text string) {
	if h.reporter != nil {
		h.reporter.Report(ctx, component, text)
	}
}
