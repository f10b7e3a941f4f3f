package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// ChannelKind names one of the two output channels of a guild.
type ChannelKind string

const (
	ChannelActive ChannelKind = "active"
	ChannelPassed ChannelKind = "passed"
)

// ChannelKinds lists the kinds in provisioning order.
var ChannelKinds = []ChannelKind{ChannelActive, ChannelPassed}

// Mapping holds the output channels of one guild.
type Mapping struct {
	Active string `json:"active,omitempty"`
	Passed string `json:"passed,omitempty"`
}

// Get returns the channel of the given kind.
func (m Mapping) Get(kind ChannelKind) string {
	if kind == ChannelPassed {
		return m.Passed
	}
	return m.Active
}

// ChannelResolver tells whether a channel still exists on the platform.
type ChannelResolver interface {
	ChannelExists(ctx context.Context, channelID string) bool
}

// Channels maps guilds to their active and passed channels and persists the
// mapping under "GUILD".
type Channels struct {
	store    Store
	resolver ChannelResolver
	logger   *slog.Logger

	mu   sync.RWMutex
	data map[string]Mapping

	saveMu sync.Mutex
}

// NewChannels creates a channel manager.
func NewChannels(store Store, resolver ChannelResolver, logger *slog.Logger) *Channels {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channels{
		store:    store,
		resolver: resolver,
		logger:   logger.With("component", "channels"),
		data:     make(map[string]Mapping),
	}
}

// SetResolver replaces the resolver. The platform session is created after
// the manager, so the resolver is wired late.
func (c *Channels) SetResolver(resolver ChannelResolver) {
	c.mu.Lock()
	c.resolver = resolver
	c.mu.Unlock()
}

// Load replaces the in-memory mapping with the persisted "GUILD" document.
func (c *Channels) Load(ctx context.Context) error {
	data := make(map[string]Mapping)
	if _, err := c.store.Load(ctx, KeyGuild, &data); err != nil {
		return fmt.Errorf("channels: load guilds: %w", err)
	}

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	return nil
}

// Get returns the guild's mapping. The second result is false when the guild
// has never been set up.
func (c *Channels) Get(guildID string) (Mapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.data[guildID]
	return m, ok
}

// All returns a copy of every mapping.
func (c *Channels) All() map[string]Mapping {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Mapping, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// Set stores one channel of a guild and flushes.
func (c *Channels) Set(ctx context.Context, guildID string, kind ChannelKind, channelID string) bool {
	c.mu.Lock()
	m := c.data[guildID]
	switch kind {
	case ChannelActive:
		m.Active = channelID
	case ChannelPassed:
		m.Passed = channelID
	}
	c.data[guildID] = m
	c.mu.Unlock()

	return c.save(ctx)
}

// Remove forgets a guild.
func (c *Channels) Remove(ctx context.Context, guildID string) bool {
	c.mu.Lock()
	_, ok := c.data[guildID]
	delete(c.data, guildID)
	c.mu.Unlock()

	if !ok {
		return false
	}
	return c.save(ctx)
}

// Missing returns the kinds whose channel is unset or no longer exists.
func (c *Channels) Missing(ctx context.Context, guildID string) []ChannelKind {
	m, _ := c.Get(guildID)

	c.mu.RLock()
	resolver := c.resolver
	c.mu.RUnlock()

	var missing []ChannelKind
	for _, kind := range ChannelKinds {
		id := m.Get(kind)
		if id == "" || resolver == nil || !resolver.ChannelExists(ctx, id) {
			missing = append(missing, kind)
		}
	}
	return missing
}

// Check reports whether both channels of the guild exist.
func (c *Channels) Check(ctx context.Context, guildID string) bool {
	if _, ok := c.Get(guildID); !ok {
		return false
	}
	return len(c.Missing(ctx, guildID)) == 0
}

func (c *Channels) save(ctx context.Context) bool {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	doc, err := json.Marshal(c.data)
	c.mu.RUnlock()
	if err != nil {
		c.logger.Error("failed to encode guild channels", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := c.store.Dump(ctx, KeyGuild, json.RawMessage(doc)); err != nil {
		c.logger.Error("failed to save guild channels", "error", err)
		return false
	}
	return true
}
