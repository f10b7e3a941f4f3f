package menu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/domain/shared"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// Config contains configuration for menu sessions.
type Config struct {
	// Timeout closes a session after this long without input.
	Timeout time.Duration

	// Prefix is the command prefix. A message starting with it closes the menu.
	Prefix string

	// OpTimeout bounds each chat operation a session performs.
	OpTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   300 * time.Second,
		Prefix:    ",",
		OpTimeout: 15 * time.Second,
	}
}

// OpenRequest describes a session to start.
type OpenRequest struct {
	UserID    string
	GuildID   string
	ChannelID string
	Kind      Kind
	Key       string
	Fields    assignment.Fields
	Surface   Surface
}

// Manager owns all live sessions, keyed by user.
type Manager struct {
	committer Committer
	images    ImageHost
	calendar  *timeutil.Calendar
	logger    *slog.Logger
	config    Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewManager creates a session manager. images may be nil, in which case
// attachments are referenced by their original URL.
func NewManager(committer Committer, images ImageHost, calendar *timeutil.Calendar, logger *slog.Logger, config Config) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Prefix == "" {
		config.Prefix = def.Prefix
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = def.OpTimeout
	}

	return &Manager{
		committer: committer,
		images:    images,
		calendar:  calendar,
		logger:    logger.With("component", "menu"),
		config:    config,
		sessions:  make(map[string]*Session),
	}
}

// Open posts a new menu and starts its session. A previous session of the
// same user is discarded without any message.
func (m *Manager) Open(ctx context.Context, req OpenRequest) error {
	if req.Surface == nil {
		return fmt.Errorf("menu: open: nil surface")
	}
	if req.Kind == "" {
		req.Kind = KindAdd
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return shared.ErrSessionClosed
	}
	prev := m.sessions[req.UserID]
	delete(m.sessions, req.UserID)
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	state := State{
		Kind:   req.Kind,
		Step:   StepTitle,
		Key:    req.Key,
		Fields: req.Fields.Normalize(),
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OpTimeout)
	messageID, err := req.Surface.Open(opCtx, state)
	cancel()
	if err != nil {
		return fmt.Errorf("menu: open: %w", err)
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		manager:   m,
		userID:    req.UserID,
		guildID:   req.GuildID,
		channelID: req.ChannelID,
		messageID: messageID,
		surface:   req.Surface,
		state:     state,
		events:    make(chan event, 16),
		cancel:    stop,
		done:      make(chan struct{}),
		logger:    m.logger.With("user_id", req.UserID, "guild_id", req.GuildID),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stop()
		return shared.ErrSessionClosed
	}
	if other := m.sessions[req.UserID]; other != nil {
		defer other.stop()
	}
	m.sessions[req.UserID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		s.run(runCtx)
	}()

	s.logger.Debug("menu opened", "kind", req.Kind, "key", req.Key)
	return nil
}

// HandleMessage routes a message to the author's session. It returns true
// when the message was consumed by a menu. A message starting with the
// command prefix closes the menu and is not consumed.
func (m *Manager) HandleMessage(userID string, msg Message) bool {
	s := m.session(userID)
	if s == nil || s.channelID != msg.ChannelID {
		return false
	}
	consumed := !hasPrefix(msg.Content, m.config.Prefix)
	s.send(event{message: &msg})
	return consumed
}

// HandleReaction routes a reaction on a menu message. It returns true when
// the reaction belongs to the user's live menu.
func (m *Manager) HandleReaction(userID, messageID, emoji string) bool {
	s := m.session(userID)
	if s == nil || s.messageID != messageID {
		return false
	}
	return s.send(event{reaction: emoji})
}

// Active reports whether the user has a live session.
func (m *Manager) Active(userID string) bool {
	return m.session(userID) != nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every session and waits for their goroutines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	if m.sessions[s.userID] == s {
		delete(m.sessions, s.userID)
	}
	m.mu.Unlock()
}

func hasPrefix(content, prefix string) bool {
	return prefix != "" && len(content) >= len(prefix) && content[:len(prefix)] == prefix
}
