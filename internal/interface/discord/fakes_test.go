package discord

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/memory"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

const (
	guildA  = "g1"
	chanA   = "general"
	userA   = "u1"
	ownerID = "owner"
)

type sent struct {
	channelID string
	content   string
	embed     *discordgo.MessageEmbed
}

type fakeChat struct {
	mu        sync.Mutex
	seq       int
	sent      []sent
	edits     map[string]*discordgo.MessageEmbed
	deleted   []string
	reactions map[string][]string
	created   []string
	existing  map[string]bool
	perms     map[string]int64
	createErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		edits:     make(map[string]*discordgo.MessageEmbed),
		reactions: make(map[string][]string),
		existing:  make(map[string]bool),
		perms:     make(map[string]int64),
	}
}

func (f *fakeChat) SendMessage(_ context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.sent = append(f.sent, sent{channelID: channelID, content: content, embed: embed})
	return fmt.Sprintf("m%d", f.seq), nil
}

func (f *fakeChat) Edit(_ context.Context, _, messageID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = embed
	return nil
}

func (f *fakeChat) Delete(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeChat) React(_ context.Context, _, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], emoji)
	return nil
}

func (f *fakeChat) ClearReactions(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reactions, messageID)
	return nil
}

func (f *fakeChat) CreateChannel(_ context.Context, guildID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, name)
	id := fmt.Sprintf("%s-%s-%d", guildID, name, len(f.created))
	f.existing[id] = true
	return id, nil
}

func (f *fakeChat) Permissions(_ context.Context, userID, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms[userID], nil
}

func (f *fakeChat) ChannelExists(_ context.Context, channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[channelID]
}

func (f *fakeChat) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeChat) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChat) edit(id string) *discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits[id]
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

func (r *fakeReporter) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type fakeUpdater struct {
	stats  jobs.UpdateStats
	err    error
	guild  string
	bypass bool
}

func (u *fakeUpdater) Force(_ context.Context, guildID string, bypass bool) (jobs.UpdateStats, error) {
	u.guild, u.bypass = guildID, bypass
	return u.stats, u.err
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	chat     *fakeChat
	reporter *fakeReporter
	updater  *fakeUpdater
	planner  *planner.Planner
	channels *planner.Channels
	menus    *menu.Manager
	router   *Router
	bot      *Bot
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	now := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	thailand := timeutil.Thailand().WithClock(func() time.Time { return now })
	store := memory.New()
	chat := newFakeChat()
	reporter := &fakeReporter{}
	updater := &fakeUpdater{}

	p := planner.New(store, thailand, nil, planner.Config{MaximumDays: 30})
	channels := planner.NewChannels(store, chat, nil)
	menus := menu.NewManager(p, nil, thailand, nil, menu.Config{Prefix: ","})
	t.Cleanup(menus.Shutdown)

	pr := presenter.New(thailand, ",", []string{"fact"})
	router := NewRouter(chat, channels, reporter, RouterConfig{Prefix: ",", OwnerID: ownerID})
	NewHandlers(p, channels, menus, pr, chat, updater, reporter, HandlersConfig{AssignmentLimit: limit}).Register(router)

	return &fixture{
		chat:     chat,
		reporter: reporter,
		updater:  updater,
		planner:  p,
		channels: channels,
		menus:    menus,
		router:   router,
		bot:      NewBot(nil, router, menus, nil, channels, BotConfig{}),
	}
}

func (f *fixture) setup(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.chat.existing["active-"+guildA] = true
	f.chat.existing["passed-"+guildA] = true
	require.True(t, f.channels.Set(ctx, guildA, planner.ChannelActive, "active-"+guildA))
	require.True(t, f.channels.Set(ctx, guildA, planner.ChannelPassed, "passed-"+guildA))
}

func (f *fixture) add(t *testing.T, title, date string) string {
	t.Helper()
	fields := assignment.DefaultFields()
	fields.Title = title
	fields.Date = date
	key, err := f.planner.Add(context.Background(), guildA, "", fields)
	require.NoError(t, err)
	return key
}

func (f *fixture) run(t *testing.T, userID, content string) sent {
	t.Helper()
	require.True(t, f.router.Dispatch(context.Background(), Incoming{
		GuildID:   guildA,
		ChannelID: chanA,
		UserID:    userID,
		MessageID: "in",
		Content:   content,
	}), "command %q not found", content)
	return f.chat.last(t)
}
