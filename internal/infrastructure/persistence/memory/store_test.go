package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadDump(t *testing.T) {
	ctx := context.Background()
	s := New()

	var missing map[string]string
	found, err := s.Load(ctx, "GUILD", &missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, missing)

	require.NoError(t, s.Dump(ctx, "GUILD", map[string]string{"1": "a"}))

	var got map[string]string
	found, err = s.Load(ctx, "GUILD", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"1": "a"}, got)
	assert.Equal(t, []string{"GUILD"}, s.Keys())
}

func TestStore_LoadDecodeError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Dump(ctx, "TODAY", "01-03-2024"))

	var wrong map[string]int
	found, err := s.Load(ctx, "TODAY", &wrong)
	assert.True(t, found)
	assert.Error(t, err)
}
