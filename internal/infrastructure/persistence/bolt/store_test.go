package bolt

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadDumpReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "tplearn.db")

	s, err := Open(path)
	require.NoError(t, err)

	var today string
	found, err := s.Load(ctx, "TODAY", &today)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Dump(ctx, "TODAY", "01-03-2024"))
	require.NoError(t, s.Dump(ctx, "GUILD", map[string]map[string]string{"1": {"active": "a", "passed": "p"}}))
	require.NoError(t, s.Dump(ctx, "TODAY", "02-03-2024"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	found, err = s.Load(ctx, "TODAY", &today)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "02-03-2024", today)

	var raw json.RawMessage
	_, err = s.Load(ctx, "GUILD", &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"active":"a","passed":"p"}}`, string(raw))
}

func TestStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Dump(ctx, "TODAY", "01-03-2024"))
	var wrong []int
	found, err := s.Load(ctx, "TODAY", &wrong)
	assert.True(t, found)
	assert.Error(t, err)
}
