package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/pkg/circuitbreaker"
	"github.com/tplearn/tplearn-bot/pkg/retry"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

func newTestClient(t *testing.T, config ClientConfig) *Client {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)

	fixed := time.Date(2024, 3, 1, 5, 4, 3, 0, time.UTC)
	config.Calendar = timeutil.Thailand().WithClock(func() time.Time { return fixed })
	return NewClient(s, config)
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		notFound  bool
		forbidden bool
	}{
		{"server error", restError(http.StatusBadGateway), true, false, false},
		{"not found", restError(http.StatusNotFound), false, true, false},
		{"forbidden", restError(http.StatusForbidden), false, false, true},
		{"wrapped", fmt.Errorf("edit: %w", restError(http.StatusInternalServerError)), true, false, false},
		{"network", &netTimeout{}, true, false, false},
		{"plain", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.forbidden, IsForbidden(tt.err))
		})
	}
}

type netTimeout struct{}

func (*netTimeout) Error() string   { return "i/o timeout" }
func (*netTimeout) Timeout() bool   { return true }
func (*netTimeout) Temporary() bool { return true }

func TestOwnPosts(t *testing.T) {
	embed := &discordgo.MessageEmbed{Title: "Essay"}
	msgs := []*discordgo.Message{
		{ID: "3", Author: &discordgo.User{ID: "bot"}, Embeds: []*discordgo.MessageEmbed{embed}},
		{ID: "2", Author: &discordgo.User{ID: "someone"}},
		nil,
		{ID: "1", Author: &discordgo.User{ID: "bot"}},
	}

	got := ownPosts(msgs, "bot")
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Same(t, embed, got[0].Embed)
	assert.Equal(t, "1", got[1].ID)
	assert.Nil(t, got[1].Embed)
}

func TestReadOnlyChannel(t *testing.T) {
	data := readOnlyChannel("42", "Active-Works")
	assert.Equal(t, "Active-Works", data.Name)
	assert.Equal(t, discordgo.ChannelTypeGuildText, data.Type)
	require.Len(t, data.PermissionOverwrites, 1)

	ow := data.PermissionOverwrites[0]
	assert.Equal(t, "42", ow.ID)
	assert.Equal(t, discordgo.PermissionOverwriteTypeRole, ow.Type)
	assert.Equal(t, int64(discordgo.PermissionSendMessages), ow.Deny)
	assert.Zero(t, ow.Allow)
}

func TestHistoryBeforeReady(t *testing.T) {
	c := newTestClient(t, ClientConfig{})
	_, err := c.History(context.Background(), "1", 30)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestReportLine(t *testing.T) {
	c := newTestClient(t, ClientConfig{})

	assert.Equal(t, "**[01-03-2024 12:04:03] | [updater]:** done", c.reportLine("updater", "done"))

	long := c.reportLine("updater", strings.Repeat("x", 2000))
	assert.Equal(t, maxReportLength, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestHost_WithoutImageChannel(t *testing.T) {
	c := newTestClient(t, ClientConfig{})
	url, err := c.Host(context.Background(), menu.Attachment{URL: "https://cdn.example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", url)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/big.png":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, ClientConfig{MaxImageBytes: 32})
	ctx := context.Background()

	data, contentType, err := c.download(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", contentType)

	_, _, err = c.download(ctx, srv.URL+"/big.png")
	assert.ErrorContains(t, err, "larger than")

	_, _, err = c.download(ctx, srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status 404")
}

func TestDo_BreakerOpensOnServerErrors(t *testing.T) {
	c := newTestClient(t, ClientConfig{})
	c.retrier = retry.New(retry.WithMaxAttempts(1))
	ctx := context.Background()

	calls := 0
	failing := func(...discordgo.RequestOption) error {
		calls++
		return restError(http.StatusBadGateway)
	}
	for range 5 {
		assert.True(t, IsTransient(c.do(ctx, failing)))
	}

	err := c.do(ctx, failing)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 5, calls)
}

func TestDo_NotFoundDoesNotTrip(t *testing.T) {
	c := newTestClient(t, ClientConfig{})
	c.retrier = retry.New(retry.WithMaxAttempts(1))
	ctx := context.Background()

	for range 10 {
		err := c.do(ctx, func(...discordgo.RequestOption) error { return restError(http.StatusNotFound) })
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.breaker.State())
}
