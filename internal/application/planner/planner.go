package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/domain/shared"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the planner.
type Config struct {
	// MaximumDays is how many days a passed assignment is kept before deletion.
	MaximumDays int

	// SaveTimeout bounds a single flush to the store.
	SaveTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaximumDays: 30,
		SaveTimeout: 10 * time.Second,
	}
}

// Planner is the in-memory assignment repository. Every mutation is flushed
// to the store as a whole "WORKS" document. A failed flush is logged and the
// in-memory state stays authoritative.
type Planner struct {
	store    Store
	calendar *timeutil.Calendar
	logger   *slog.Logger
	config   Config
	newKey   func() string

	mu    sync.RWMutex
	works map[string]map[string]assignment.Assignment
	dirty map[string]struct{}

	saveMu sync.Mutex
}

// New creates a planner. calendar is the clock "today" is read from.
func New(store Store, calendar *timeutil.Calendar, logger *slog.Logger, config Config) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaximumDays <= 0 {
		config.MaximumDays = 30
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 10 * time.Second
	}

	return &Planner{
		store:    store,
		calendar: calendar,
		logger:   logger.With("component", "planner"),
		config:   config,
		newKey:   randomKey,
		works:    make(map[string]map[string]assignment.Assignment),
		dirty:    make(map[string]struct{}),
	}
}

func randomKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:assignment.KeyLength]
}

// Load replaces the in-memory state with the persisted "WORKS" document and
// queues every loaded guild, since channels may lag a save from a previous run.
func (p *Planner) Load(ctx context.Context) error {
	works := make(map[string]map[string]assignment.Assignment)
	if _, err := p.store.Load(ctx, KeyWorks, &works); err != nil {
		return fmt.Errorf("planner: load works: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for guildID, records := range works {
		if records == nil {
			works[guildID] = make(map[string]assignment.Assignment)
			continue
		}
		for key, a := range records {
			if a.Key == "" {
				a.Key = key
			}
			if a.Lasted < 1 {
				a.Lasted = 1
			}
			records[key] = a
		}
	}
	p.works = works
	for guildID := range works {
		p.dirty[guildID] = struct{}{}
	}

	p.logger.Info("works loaded", "guilds", len(works))
	return nil
}

// Today returns the calendar date the planner evaluates against.
func (p *Planner) Today() time.Time {
	return p.calendar.Today()
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetAll returns the guild's assignments that have not passed, in insertion order.
func (p *Planner) GetAll(guildID string) []assignment.Assignment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeLocked(guildID)
}

func (p *Planner) activeLocked(guildID string) []assignment.Assignment {
	records := p.works[guildID]
	out := make([]assignment.Assignment, 0, len(records))
	for _, a := range records {
		if a.AlreadyPassed {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Get returns one assignment of the guild, passed or not.
func (p *Planner) Get(guildID, key string) (assignment.Assignment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.works[guildID][key]
	if !ok {
		return assignment.Assignment{}, shared.ErrKeyNotFound
	}
	return a, nil
}

// CheckValidKey reports whether key names an assignment of the guild.
func (p *Planner) CheckValidKey(guildID, key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.works[guildID][key]
	return ok
}

// GetSorted returns the guild's active assignments with undatable ones first
// in insertion order, then the rest ascending by due day. Ties keep insertion order.
func (p *Planner) GetSorted(guildID string) []assignment.Assignment {
	all := p.GetAll(guildID)
	today := p.Today()

	type entry struct {
		a   assignment.Assignment
		due assignment.Due
	}
	entries := make([]entry, len(all))
	for i, a := range all {
		entries[i] = entry{a: a, due: a.Due(today)}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].due, entries[j].due
		if di.Known != dj.Known {
			return !di.Known
		}
		if !di.Known {
			return false
		}
		return di.Day.Before(dj.Day)
	})

	out := make([]assignment.Assignment, len(entries))
	for i, e := range entries {
		out[i] = e.a
	}
	return out
}

// Guilds returns every guild that has assignment data.
func (p *Planner) Guilds() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.works))
	for guildID := range p.works {
		out = append(out, guildID)
	}
	sort.Strings(out)
	return out
}

// CountAll returns the number of active assignments across all guilds.
func (p *Planner) CountAll() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, records := range p.works {
		for _, a := range records {
			if !a.AlreadyPassed {
				n++
			}
		}
	}
	return n
}

// CountPassed returns the number of passed assignments still kept for the guild.
func (p *Planner) CountPassed(guildID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, a := range p.works[guildID] {
		if a.AlreadyPassed {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// Add inserts or replaces an assignment and returns its key. An empty key
// generates a fresh one that is unique within the guild. Passing an existing
// key edits that assignment in place.
func (p *Planner) Add(ctx context.Context, guildID, key string, fields assignment.Fields) (string, error) {
	fields = fields.Normalize()
	if fields.IsDefault() {
		return "", shared.ErrInvalidAssignment
	}

	today := p.Today()

	p.mu.Lock()
	records, ok := p.works[guildID]
	if !ok {
		records = make(map[string]assignment.Assignment)
		p.works[guildID] = records
	}

	if key == "" {
		key = p.uniqueKeyLocked(records)
	}

	a := assignment.New(key, fields, today)
	if prev, exists := records[key]; exists {
		a.Seq = prev.Seq
	} else {
		a.Seq = nextSeq(records)
	}
	records[key] = a
	p.dirty[guildID] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("assignment stored", "guild_id", guildID, "key", key)
	p.save(ctx)
	return key, nil
}

func (p *Planner) uniqueKeyLocked(records map[string]assignment.Assignment) string {
	for {
		k := p.newKey()
		if _, taken := records[k]; !taken {
			return k
		}
	}
}

func nextSeq(records map[string]assignment.Assignment) int64 {
	var max int64
	for _, a := range records {
		if a.Seq > max {
			max = a.Seq
		}
	}
	return max + 1
}

// Remove deletes an assignment and returns it. The second result is false when
// the guild has no data or the key is unknown.
func (p *Planner) Remove(ctx context.Context, guildID, key string) (assignment.Assignment, bool) {
	p.mu.Lock()
	records, ok := p.works[guildID]
	if !ok {
		p.mu.Unlock()
		return assignment.Assignment{}, false
	}
	a, ok := records[key]
	if !ok {
		p.mu.Unlock()
		return assignment.Assignment{}, false
	}
	delete(records, key)
	p.dirty[guildID] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("assignment removed", "guild_id", guildID, "key", key)
	p.save(ctx)
	return a, true
}

// MarkPassed re-evaluates every assignment against today and returns the ones
// that just became passed, grouped by guild. A passed assignment never turns
// back to active.
func (p *Planner) MarkPassed(ctx context.Context) map[string]map[string]assignment.Assignment {
	today := p.Today()
	changes := make(map[string]map[string]assignment.Assignment)

	p.mu.Lock()
	for guildID, records := range p.works {
		for key, a := range records {
			if a.AlreadyPassed || !a.IsPassed(today) {
				continue
			}
			a.AlreadyPassed = true
			records[key] = a

			if changes[guildID] == nil {
				changes[guildID] = make(map[string]assignment.Assignment)
			}
			changes[guildID][key] = a
		}
		if len(changes[guildID]) > 0 {
			p.dirty[guildID] = struct{}{}
		}
	}
	p.mu.Unlock()

	if len(changes) > 0 {
		p.save(ctx)
	}
	return changes
}

// DeleteOldWork deletes assignments whose date tracker lies more than
// MaximumDays in the past. Only passed or undatable assignments qualify.
// It returns how many were deleted.
func (p *Planner) DeleteOldWork(ctx context.Context) int {
	today := p.Today()
	count := 0

	p.mu.Lock()
	for guildID, records := range p.works {
		for key, a := range records {
			if !a.AlreadyPassed && a.Due(today).Known {
				continue
			}
			age, ok := a.TrackerAge(today)
			if !ok || age <= p.config.MaximumDays {
				continue
			}
			delete(records, key)
			p.dirty[guildID] = struct{}{}
			count++
		}
	}
	p.mu.Unlock()

	if count > 0 {
		p.save(ctx)
	}
	return count
}

// ──────────────────────────────────────────────────────────────────────────────
// Dirty-guild queue
// ──────────────────────────────────────────────────────────────────────────────

// MarkDirty queues a guild for reconciliation.
func (p *Planner) MarkDirty(guildID string) {
	p.mu.Lock()
	p.dirty[guildID] = struct{}{}
	p.mu.Unlock()
}

// TriggerUpdate queues every known guild for reconciliation.
func (p *Planner) TriggerUpdate() {
	p.mu.Lock()
	for guildID := range p.works {
		p.dirty[guildID] = struct{}{}
	}
	p.mu.Unlock()
	p.logger.Debug("update triggered")
}

// NeedUpdate returns the queued guilds and clears the queue.
func (p *Planner) NeedUpdate() []string {
	p.mu.Lock()
	out := make([]string, 0, len(p.dirty))
	for guildID := range p.dirty {
		out = append(out, guildID)
	}
	p.dirty = make(map[string]struct{})
	p.mu.Unlock()

	sort.Strings(out)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────────────────────────────────

// Save flushes the current state. It reports whether the write succeeded.
func (p *Planner) Save(ctx context.Context) bool {
	return p.save(ctx)
}

func (p *Planner) save(ctx context.Context) bool {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.RLock()
	doc, err := json.Marshal(p.works)
	p.mu.RUnlock()
	if err != nil {
		p.logger.Error("failed to encode works", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.SaveTimeout)
	defer cancel()

	if err := p.store.Dump(ctx, KeyWorks, json.RawMessage(doc)); err != nil {
		p.logger.Error("failed to save works", "error", err)
		return false
	}
	return true
}
