package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "tplearn:WORKS", DocumentKey(PrefixDocument, "WORKS"))
	assert.Equal(t, "bot2:TODAY-TH", DocumentKey("bot2:", "TODAY-TH"))
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	cfg.PoolSize = 4

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
}

func TestConfig_InvalidURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "http://not-redis"
	_, err := cfg.Options()
	assert.Error(t, err)
}

func TestNewStore_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://127.0.0.1:1/0"
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewStore(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestStore_RejectsEmptyKey(t *testing.T) {
	s := NewStoreWithClient(nil, "")
	assert.Equal(t, PrefixDocument, s.prefix)

	_, err := s.Load(context.Background(), "", new(string))
	assert.ErrorIs(t, err, ErrKeyEmpty)
	assert.ErrorIs(t, s.Dump(context.Background(), "", "x"), ErrKeyEmpty)
}
