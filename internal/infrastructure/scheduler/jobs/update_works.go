// Package jobs contains the scheduled jobs of the bot.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Posted is a message the bot authored.
type Posted struct {
	ID    string
	Embed *discordgo.MessageEmbed
}

// Messenger is the part of the chat client the jobs need.
type Messenger interface {
	// History returns up to limit of the bot's own messages in the channel,
	// newest first.
	History(ctx context.Context, channelID string, limit int) ([]Posted, error)
	Send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error)
	Edit(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error
	Delete(ctx context.Context, channelID, messageID string) error
}

// Renderer turns a record into the embed posted for it.
type Renderer interface {
	AssignmentEmbed(a assignment.Assignment) *discordgo.MessageEmbed
}

// Reporter forwards operator-facing messages.
type Reporter interface {
	Report(ctx context.Context, component, text string)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE WORKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ErrUpdateInProgress is returned by Force when a pass is already running.
var ErrUpdateInProgress = errors.New("update already in progress")

// UpdateWorksJob reconciles each dirty guild's active channel with its
// assignments using as few chat operations as possible.
type UpdateWorksJob struct {
	planner   *planner.Planner
	channels  *planner.Channels
	messenger Messenger
	renderer  Renderer
	reporter  Reporter
	logger    *slog.Logger
	config    UpdateWorksConfig

	updating  atomic.Bool
	lastStats atomic.Pointer[UpdateStats]
}

// UpdateWorksConfig contains configuration for the update job.
type UpdateWorksConfig struct {
	// HistoryLimit caps how many own messages are read per channel.
	HistoryLimit int

	// OpDelay is slept after each send, edit or delete.
	OpDelay time.Duration
}

// DefaultUpdateWorksConfig returns sensible defaults.
func DefaultUpdateWorksConfig() UpdateWorksConfig {
	return UpdateWorksConfig{
		HistoryLimit: 30,
		OpDelay:      3 * time.Second,
	}
}

// UpdateStats counts the chat operations of one pass.
type UpdateStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Guilds    int
	Failed    int
	Deleted   int
	Edited    int
	Sent      int
	Skipped   int
}

func (s *UpdateStats) add(o UpdateStats) {
	s.Deleted += o.Deleted
	s.Edited += o.Edited
	s.Sent += o.Sent
	s.Skipped += o.Skipped
}

// NewUpdateWorksJob creates the update job. reporter may be nil.
func NewUpdateWorksJob(
	p *planner.Planner,
	channels *planner.Channels,
	messenger Messenger,
	renderer Renderer,
	reporter Reporter,
	logger *slog.Logger,
	config UpdateWorksConfig,
) *UpdateWorksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultUpdateWorksConfig().HistoryLimit
	}
	if config.OpDelay < 0 {
		config.OpDelay = 0
	}

	return &UpdateWorksJob{
		planner:   p,
		channels:  channels,
		messenger: messenger,
		renderer:  renderer,
		reporter:  reporter,
		logger:    logger.With("component", "updater"),
		config:    config,
	}
}

// Name returns the job name.
func (j *UpdateWorksJob) Name() string {
	return "update_works"
}

// Description returns a human-readable description.
func (j *UpdateWorksJob) Description() string {
	return "Reconciles active channels of dirty guilds with their assignments"
}

// Run executes one scheduled pass. An overlapping pass is skipped.
func (j *UpdateWorksJob) Run(ctx context.Context) error {
	_, err := j.update(ctx, false)
	if errors.Is(err, ErrUpdateInProgress) {
		j.logger.Warn("previous update still running, skipping tick")
		return nil
	}
	return err
}

// Force marks the guild dirty and runs a pass now. With bypass the pass
// runs even while another one is in flight and rewrites every message,
// including those that already look current.
func (j *UpdateWorksJob) Force(ctx context.Context, guildID string, bypass bool) (UpdateStats, error) {
	j.planner.MarkDirty(guildID)
	return j.update(ctx, bypass)
}

// LastStats returns the statistics of the most recent pass.
func (j *UpdateWorksJob) LastStats() *UpdateStats {
	return j.lastStats.Load()
}

func (j *UpdateWorksJob) update(ctx context.Context, bypass bool) (UpdateStats, error) {
	// Only the pass that set the flag clears it, so a bypass finishing early
	// cannot open the door for a scheduled pass to overlap.
	if j.updating.CompareAndSwap(false, true) {
		defer j.updating.Store(false)
	} else if !bypass {
		return UpdateStats{}, ErrUpdateInProgress
	}

	stats := UpdateStats{StartedAt: time.Now()}
	for _, guildID := range j.planner.NeedUpdate() {
		if ctx.Err() != nil {
			j.planner.MarkDirty(guildID)
			continue
		}

		if !j.channels.Check(ctx, guildID) {
			j.logger.Debug("guild has no usable channels", "guild_id", guildID)
			continue
		}

		gs, err := j.updateGuild(ctx, guildID, bypass)
		stats.add(gs)
		stats.Guilds++
		if err != nil {
			stats.Failed++
			j.planner.MarkDirty(guildID)
			j.logger.Error("failed to update guild", "guild_id", guildID, "error", err)
			j.report(ctx, fmt.Sprintf("Failed to update guild %s: %v", guildID, err))
			continue
		}

		j.logger.Info("guild updated",
			"guild_id", guildID,
			"deleted", gs.Deleted,
			"edited", gs.Edited,
			"sent", gs.Sent,
			"skipped", gs.Skipped,
		)
	}
	stats.Duration = time.Since(stats.StartedAt)
	j.lastStats.Store(&stats)

	if stats.Guilds > 0 {
		j.report(ctx, fmt.Sprintf("Updated %d guild(s): D%d E%d S%d", stats.Guilds, stats.Deleted, stats.Edited, stats.Sent))
	}
	return stats, ctx.Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// Per-guild reconciliation
// ──────────────────────────────────────────────────────────────────────────────

// updateGuild pairs the newest message with the earliest assignment, so the
// channel reads latest-due at the top and earliest-due at the bottom.
func (j *UpdateWorksJob) updateGuild(ctx context.Context, guildID string, rewrite bool) (UpdateStats, error) {
	var st UpdateStats

	mapping, _ := j.channels.Get(guildID)
	channelID := mapping.Get(planner.ChannelActive)

	works := j.planner.GetSorted(guildID)
	posted, err := j.messenger.History(ctx, channelID, j.config.HistoryLimit)
	if err != nil {
		return st, fmt.Errorf("history: %w", err)
	}

	cw, cm := len(works), len(posted)
	switch {
	case cw < cm:
		for i, msg := range posted {
			if i < cw {
				err = j.sync(ctx, channelID, msg, works[i], rewrite, &st)
			} else {
				err = j.delete(ctx, channelID, msg, &st)
			}
			if err != nil {
				return st, err
			}
		}

	case cw > cm:
		works = slices.Clone(works)
		posted = slices.Clone(posted)
		slices.Reverse(works)
		slices.Reverse(posted)
		for i, a := range works {
			if i < cm {
				err = j.sync(ctx, channelID, posted[i], a, rewrite, &st)
			} else {
				err = j.send(ctx, channelID, a, &st)
			}
			if err != nil {
				return st, err
			}
		}

	default:
		for i := range works {
			if err := j.sync(ctx, channelID, posted[i], works[i], rewrite, &st); err != nil {
				return st, err
			}
		}
	}
	return st, nil
}

func (j *UpdateWorksJob) sync(ctx context.Context, channelID string, msg Posted, a assignment.Assignment, rewrite bool, st *UpdateStats) error {
	embed := j.renderer.AssignmentEmbed(a)
	if !rewrite && presenter.SameEmbed(msg.Embed, embed) {
		st.Skipped++
		return nil
	}
	if err := j.messenger.Edit(ctx, channelID, msg.ID, embed); err != nil {
		return fmt.Errorf("edit %s: %w", msg.ID, err)
	}
	st.Edited++
	return j.pause(ctx)
}

func (j *UpdateWorksJob) send(ctx context.Context, channelID string, a assignment.Assignment, st *UpdateStats) error {
	if _, err := j.messenger.Send(ctx, channelID, j.renderer.AssignmentEmbed(a)); err != nil {
		return fmt.Errorf("send %s: %w", a.Key, err)
	}
	st.Sent++
	return j.pause(ctx)
}

func (j *UpdateWorksJob) delete(ctx context.Context, channelID string, msg Posted, st *UpdateStats) error {
	if err := j.messenger.Delete(ctx, channelID, msg.ID); err != nil {
		return fmt.Errorf("delete %s: %w", msg.ID, err)
	}
	st.Deleted++
	return j.pause(ctx)
}

func (j *UpdateWorksJob) pause(ctx context.Context) error {
	if j.config.OpDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(j.config.OpDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (j *UpdateWorksJob) report(ctx context.Context, text string) {
	if j.reporter != nil {
		j.reporter.Report(ctx, "updater", text)
	}
}
