package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/memory"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// fakeChannels simulates the bot's own messages per channel, oldest first.
type fakeChannels struct {
	mu       sync.Mutex
	next     int
	messages map[string][]Posted
	failing  map[string]bool

	sends, edits, deletes int
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		messages: make(map[string][]Posted),
		failing:  make(map[string]bool),
	}
}

var errPlatform = errors.New("platform unavailable")

func (f *fakeChannels) History(_ context.Context, channelID string, limit int) ([]Posted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[channelID] {
		return nil, errPlatform
	}
	msgs := f.messages[channelID]
	out := make([]Posted, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeChannels) Send(_ context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[channelID] {
		return "", errPlatform
	}
	f.next++
	id := fmt.Sprintf("m%d", f.next)
	f.messages[channelID] = append(f.messages[channelID], Posted{ID: id, Embed: embed})
	f.sends++
	return id, nil
}

func (f *fakeChannels) Edit(_ context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages[channelID] {
		if m.ID == messageID {
			f.messages[channelID][i].Embed = embed
			f.edits++
			return nil
		}
	}
	return fmt.Errorf("unknown message %s", messageID)
}

func (f *fakeChannels) Delete(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[channelID]
	for i, m := range msgs {
		if m.ID == messageID {
			f.messages[channelID] = append(msgs[:i], msgs[i+1:]...)
			f.deletes++
			return nil
		}
	}
	return fmt.Errorf("unknown message %s", messageID)
}

func (f *fakeChannels) ChannelExists(_ context.Context, id string) bool {
	return id != ""
}

// seed posts n unrelated embeds into the channel.
func (f *fakeChannels) seed(channelID string, n int) {
	for i := 0; i < n; i++ {
		_, _ = f.Send(context.Background(), channelID, &discordgo.MessageEmbed{Description: fmt.Sprintf("stale-%d", i)})
	}
	f.mu.Lock()
	f.sends = 0
	f.mu.Unlock()
}

// keys returns the keys shown in the channel, newest first.
func (f *fakeChannels) keys(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[channelID]
	out := make([]string, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i].Embed.Description)
	}
	return out
}

func (f *fakeChannels) counts() (sends, edits, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends, f.edits, f.deletes
}

type fakeReporter struct {
	mu    sync.Mutex
	lines []string
}

func (r *fakeReporter) Report(_ context.Context, component, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, component+": "+text)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func thai(y, m, d, hour, min int) time.Time {
	return time.Date(y, time.Month(m), d, hour, min, 0, 0, timeutil.ThailandTZ)
}

type fixture struct {
	clock     *clock
	store     *memory.Store
	planner   *planner.Planner
	channels  *planner.Channels
	chat      *fakeChannels
	presenter *presenter.Presenter
	reporter  *fakeReporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: thai(2024, 3, 1, 12, 0)}
	store := memory.New()
	chat := newFakeChannels()
	thailand := timeutil.Thailand().WithClock(clk.Now)

	return &fixture{
		clock:     clk,
		store:     store,
		planner:   planner.New(store, thailand, nil, planner.Config{MaximumDays: 30}),
		channels:  planner.NewChannels(store, chat, nil),
		chat:      chat,
		presenter: presenter.New(thailand, ",", []string{"fact"}),
		reporter:  &fakeReporter{},
	}
}

func (f *fixture) setup(t *testing.T, guildID string) {
	t.Helper()
	ctx := context.Background()
	require.True(t, f.channels.Set(ctx, guildID, planner.ChannelActive, "active-"+guildID))
	require.True(t, f.channels.Set(ctx, guildID, planner.ChannelPassed, "passed-"+guildID))
}

func (f *fixture) add(t *testing.T, guildID, title, date string) string {
	t.Helper()
	fields := assignment.DefaultFields()
	fields.Title = title
	fields.Date = date
	key, err := f.planner.Add(context.Background(), guildID, "", fields)
	require.NoError(t, err)
	return key
}

func (f *fixture) sortedKeys(guildID string) []string {
	works := f.planner.GetSorted(guildID)
	out := make([]string, len(works))
	for i, a := range works {
		out[i] = a.Key
	}
	return out
}
