package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAY CHANGE JOB
// ══════════════════════════════════════════════════════════════════════════════

// DayChangeJob watches two calendars. When the relocation calendar rolls
// over, newly passed assignments are posted to the passed channel and old
// records are pruned. When the reconciliation calendar rolls over, every
// guild is queued for the updater so urgency titles and colours refresh.
// The original active message is left for the next updater pass to delete.
type DayChangeJob struct {
	planner    *planner.Planner
	channels   *planner.Channels
	store      planner.Store
	messenger  Messenger
	renderer   Renderer
	reporter   Reporter
	relocation *timeutil.Calendar
	trigger    *timeutil.Calendar
	logger     *slog.Logger

	mu             sync.Mutex
	loaded         bool
	lastRelocation string
	lastTrigger    string
}

// NewDayChangeJob creates the day-change job. relocation and trigger are
// usually the morning and Thailand calendars. reporter may be nil.
func NewDayChangeJob(
	p *planner.Planner,
	channels *planner.Channels,
	store planner.Store,
	messenger Messenger,
	renderer Renderer,
	reporter Reporter,
	relocation, trigger *timeutil.Calendar,
	logger *slog.Logger,
) *DayChangeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DayChangeJob{
		planner:    p,
		channels:   channels,
		store:      store,
		messenger:  messenger,
		renderer:   renderer,
		reporter:   reporter,
		relocation: relocation,
		trigger:    trigger,
		logger:     logger.With("component", "day_change"),
	}
}

// Name returns the job name.
func (j *DayChangeJob) Name() string {
	return "day_change"
}

// Description returns a human-readable description.
func (j *DayChangeJob) Description() string {
	return "Relocates passed assignments and queues updates when the day changes"
}

// Run checks both calendars once.
func (j *DayChangeJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.loaded {
		if err := j.load(ctx); err != nil {
			return err
		}
		j.loaded = true
	}

	if stamp := j.relocation.Stamp(); advanced(j.lastRelocation, stamp) {
		j.logger.Info("relocation day changed", "from", j.lastRelocation, "to", stamp)
		j.relocate(ctx)
		j.lastRelocation = stamp
		j.persist(ctx, planner.KeyToday, stamp)
	}

	if stamp := j.trigger.Stamp(); advanced(j.lastTrigger, stamp) {
		j.logger.Info("update day changed", "from", j.lastTrigger, "to", stamp)
		j.planner.TriggerUpdate()
		j.lastTrigger = stamp
		j.persist(ctx, planner.KeyTodayTH, stamp)
	}
	return nil
}

func (j *DayChangeJob) load(ctx context.Context) error {
	if _, err := j.store.Load(ctx, planner.KeyToday, &j.lastRelocation); err != nil {
		return fmt.Errorf("load %s: %w", planner.KeyToday, err)
	}
	if _, err := j.store.Load(ctx, planner.KeyTodayTH, &j.lastTrigger); err != nil {
		return fmt.Errorf("load %s: %w", planner.KeyTodayTH, err)
	}
	return nil
}

func (j *DayChangeJob) persist(ctx context.Context, key, stamp string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := j.store.Dump(ctx, key, stamp); err != nil {
		j.logger.Error("failed to persist day stamp", "key", key, "error", err)
	}
}

// advanced reports whether current is a later day than last. An unreadable
// last stamp counts as never seen.
func advanced(last, current string) bool {
	if last == current {
		return false
	}
	prev, err := time.Parse(timeutil.StampLayout, last)
	if err != nil {
		return true
	}
	now, err := time.Parse(timeutil.StampLayout, current)
	if err != nil {
		return false
	}
	return now.After(prev)
}

// relocate flips passed flags, posts each newly passed record to the guild's
// passed channel and prunes old records.
func (j *DayChangeJob) relocate(ctx context.Context) {
	flipped := j.planner.MarkPassed(ctx)

	guilds := make([]string, 0, len(flipped))
	for guildID := range flipped {
		guilds = append(guilds, guildID)
	}
	sort.Strings(guilds)

	for _, guildID := range guilds {
		mapping, ok := j.channels.Get(guildID)
		channelID := mapping.Get(planner.ChannelPassed)
		if !ok || channelID == "" {
			j.logger.Debug("no passed channel, skipping relocation", "guild_id", guildID)
			continue
		}

		records := make([]assignment.Assignment, 0, len(flipped[guildID]))
		for _, a := range flipped[guildID] {
			records = append(records, a)
		}
		sort.Slice(records, func(a, b int) bool { return records[a].Seq < records[b].Seq })

		for _, a := range records {
			if _, err := j.messenger.Send(ctx, channelID, j.renderer.AssignmentEmbed(a)); err != nil {
				j.logger.Error("failed to post passed assignment",
					"guild_id", guildID,
					"key", a.Key,
					"error", err,
				)
			}
		}
		j.logger.Info("relocated passed assignments", "guild_id", guildID, "count", len(records))
	}

	if n := j.planner.DeleteOldWork(ctx); n > 0 {
		j.logger.Info("deleted old assignments", "count", n)
		if j.reporter != nil {
			j.reporter.Report(ctx, "day_change", fmt.Sprintf("Deleted %d old assignment(s)", n))
		}
	}
}
