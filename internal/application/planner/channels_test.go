package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/memory"
)

type fakeResolver map[string]bool

func (f fakeResolver) ChannelExists(_ context.Context, id string) bool {
	return f[id]
}

func TestChannels_CheckRequiresBothChannels(t *testing.T) {
	ctx := context.Background()
	resolver := fakeResolver{"a1": true, "p1": true}
	c := NewChannels(memory.New(), resolver, nil)

	assert.False(t, c.Check(ctx, guildA))

	require.True(t, c.Set(ctx, guildA, ChannelActive, "a1"))
	assert.False(t, c.Check(ctx, guildA))
	assert.Equal(t, []ChannelKind{ChannelPassed}, c.Missing(ctx, guildA))

	require.True(t, c.Set(ctx, guildA, ChannelPassed, "p1"))
	assert.True(t, c.Check(ctx, guildA))

	// Channel deleted on the platform.
	resolver["p1"] = false
	assert.False(t, c.Check(ctx, guildA))
	assert.Equal(t, []ChannelKind{ChannelPassed}, c.Missing(ctx, guildA))

	assert.False(t, c.Check(ctx, guildB))
}

func TestChannels_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := NewChannels(store, fakeResolver{}, nil)

	c.Set(ctx, guildA, ChannelActive, "a1")
	c.Set(ctx, guildA, ChannelPassed, "p1")
	c.Set(ctx, guildB, ChannelActive, "a2")

	reloaded := NewChannels(store, nil, nil)
	require.NoError(t, reloaded.Load(ctx))

	m, ok := reloaded.Get(guildA)
	require.True(t, ok)
	assert.Equal(t, Mapping{Active: "a1", Passed: "p1"}, m)
	assert.Len(t, reloaded.All(), 2)

	assert.True(t, reloaded.Remove(ctx, guildB))
	assert.False(t, reloaded.Remove(ctx, guildB))
	_, ok = reloaded.Get(guildB)
	assert.False(t, ok)
}

func TestChannels_NoResolverMeansMissing(t *testing.T) {
	ctx := context.Background()
	c := NewChannels(memory.New(), nil, nil)
	c.Set(ctx, guildA, ChannelActive, "a1")
	c.Set(ctx, guildA, ChannelPassed, "p1")

	assert.False(t, c.Check(ctx, guildA))

	c.SetResolver(fakeResolver{"a1": true, "p1": true})
	assert.True(t, c.Check(ctx, guildA))
}
