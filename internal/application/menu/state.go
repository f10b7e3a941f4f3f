// Package menu implements the interactive add/edit menu. Each open menu is a
// session owned by one goroutine that consumes the user's messages and
// reactions until the assignment is committed, cancelled or the input
// timeout fires. A user has at most one session at a time.
package menu

import (
	"context"

	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
)

// Kind tells whether a session creates or edits an assignment.
type Kind string

const (
	KindAdd  Kind = "add"
	KindEdit Kind = "edit"
)

// Step is the field the next plain message fills.
type Step int

const (
	StepClosed Step = iota
	StepTitle
	StepDescription
	StepDate
	StepImage
)

// Next advances circularly: Image wraps back to Title.
func (s Step) Next() Step {
	if s >= StepImage || s < StepTitle {
		return StepTitle
	}
	return s + 1
}

// Valid reports whether s is one of the four field steps.
func (s Step) Valid() bool {
	return s >= StepTitle && s <= StepImage
}

// Menu reactions.
const (
	EmojiTitle       = "1️⃣"
	EmojiDescription = "2️⃣"
	EmojiDate        = "3️⃣"
	EmojiImage       = "4️⃣"
	EmojiFinish      = "✅"
	EmojiCancel      = "❎"
)

// Emojis lists the reactions added to a menu message, in order.
var Emojis = []string{EmojiTitle, EmojiDescription, EmojiDate, EmojiImage, EmojiFinish, EmojiCancel}

// StepEmoji returns the reaction that selects step.
func StepEmoji(step Step) string {
	if !step.Valid() {
		return ""
	}
	return Emojis[step-1]
}

// State is the snapshot of a session shown on the menu message.
type State struct {
	Kind   Kind
	Step   Step
	Key    string
	Fields assignment.Fields
}

// Outcome classifies how a session ended.
type Outcome int

const (
	// OutcomeCancelled covers explicit cancel, timeout and command interruption.
	OutcomeCancelled Outcome = iota
	// OutcomeRejected is a validation failure at commit.
	OutcomeRejected
	// OutcomeFailed is an unexpected error at commit.
	OutcomeFailed
	// OutcomeCommitted means the assignment was stored.
	OutcomeCommitted
)

// Result is what the closed menu shows.
type Result struct {
	Outcome Outcome
	Reason  string
	Key     string
}

// Attachment is a file sent along with a message.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Message is a chat message typed by the session owner.
type Message struct {
	ID         string
	ChannelID  string
	Content    string
	Attachment *Attachment
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Surface is the chat-side view of one session.
type Surface interface {
	// Open posts the menu and returns its message ID.
	Open(ctx context.Context, state State) (string, error)
	// Show re-renders the menu.
	Show(ctx context.Context, state State) error
	// Close replaces the menu with the final result.
	Close(ctx context.Context, result Result) error
	// Discard deletes a consumed input message.
	Discard(ctx context.Context, messageID string) error
	// Warn posts a short error notice.
	Warn(ctx context.Context, text string) error
}

// ImageHost turns an attachment into a long-lived URL.
type ImageHost interface {
	Host(ctx context.Context, a Attachment) (string, error)
}

// Committer stores the finished assignment.
type Committer interface {
	Add(ctx context.Context, guildID, key string, fields assignment.Fields) (string, error)
}
