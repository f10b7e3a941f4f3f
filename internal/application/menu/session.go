package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tplearn/tplearn-bot/internal/domain/assignment"
	"github.com/tplearn/tplearn-bot/internal/domain/shared"
)

type event struct {
	message  *Message
	reaction string
}

// Session is one user's open menu. All state is owned by the run goroutine.
type Session struct {
	manager   *Manager
	userID    string
	guildID   string
	channelID string
	messageID string
	surface   Surface
	logger    *slog.Logger

	state State

	events chan event
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Session) send(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// stop cancels the session without touching the menu message and waits for it.
func (s *Session) stop() {
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.manager.forget(s)

	timeout := s.manager.config.Timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			s.logger.Debug("menu timed out")
			s.close(ctx, Result{Outcome: OutcomeCancelled})
			return

		case ev := <-s.events:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(timeout)

			var finished bool
			if ev.message != nil {
				finished = s.onMessage(ctx, *ev.message)
			} else {
				finished = s.onReaction(ctx, ev.reaction)
			}
			if finished {
				return
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INPUT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Session) onMessage(ctx context.Context, msg Message) bool {
	if hasPrefix(msg.Content, s.manager.config.Prefix) {
		s.close(ctx, Result{Outcome: OutcomeCancelled, Reason: "Use another bot's command."})
		return true
	}

	s.do(ctx, func(ctx context.Context) error { return s.surface.Discard(ctx, msg.ID) })

	if rest, ok := strings.CutPrefix(msg.Content, "-"); ok {
		args := strings.Fields(strings.TrimLeft(rest, "-"))
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "goto", "gt":
				s.gotoStep(ctx, args[1:])
				return s.render(ctx)
			case "cancel", "exit":
				s.close(ctx, Result{Outcome: OutcomeCancelled})
				return true
			case "finish", "done":
				s.commit(ctx)
				return true
			}
		}
	}

	s.fill(ctx, msg)
	return s.render(ctx)
}

func (s *Session) gotoStep(ctx context.Context, args []string) {
	if len(args) == 0 {
		s.warn(ctx, ":x: **Invalid args; state is needed.**")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		s.warn(ctx, ":x: **Invalid args; state needs to be number**")
		return
	}
	if step := Step(n); step.Valid() {
		s.state.Step = step
		return
	}
	s.warn(ctx, ":x: **Invalid args: state need to be between 1 - 4.**")
}

// fill stores the message into the selected field and advances the step.
// An empty message is taken as a pending photo upload.
func (s *Session) fill(ctx context.Context, msg Message) {
	step := s.state.Step
	if strings.TrimSpace(msg.Content) == "" {
		step = StepImage
	}

	switch step {
	case StepTitle:
		s.state.Fields.Title = msg.Content
	case StepDescription:
		s.state.Fields.Description = msg.Content
	case StepDate:
		in := assignment.ParseDateInput(msg.Content, s.manager.calendar.Today())
		s.state.Fields.Date = in.Date
		s.state.Fields.Lasted = in.Lasted
	default:
		if url, ok := s.imageURL(ctx, msg); ok {
			s.state.Fields.ImageURL = url
		}
	}
	s.state.Step = step.Next()
}

func (s *Session) imageURL(ctx context.Context, msg Message) (string, bool) {
	if msg.Attachment != nil {
		if s.manager.images == nil {
			return msg.Attachment.URL, msg.Attachment.URL != ""
		}
		var url string
		err := s.do(ctx, func(ctx context.Context) error {
			var err error
			url, err = s.manager.images.Host(ctx, *msg.Attachment)
			return err
		})
		if err != nil {
			s.warn(ctx, ":x: **Unable to attach that image.**")
			return "", false
		}
		return url, true
	}

	content := strings.TrimSpace(msg.Content)
	if (strings.Contains(content, "http://") || strings.Contains(content, "https://")) && strings.Contains(content, ".") {
		return content, true
	}
	return "", false
}

func (s *Session) onReaction(ctx context.Context, emoji string) bool {
	switch emoji {
	case EmojiCancel:
		s.close(ctx, Result{Outcome: OutcomeCancelled})
		return true
	case EmojiFinish:
		s.commit(ctx)
		return true
	}

	for i, e := range Emojis[:4] {
		if e != emoji {
			continue
		}
		step := Step(i + 1)
		if step == s.state.Step {
			return false
		}
		s.state.Step = step
		return s.render(ctx)
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Session) commit(ctx context.Context) {
	fields := s.state.Fields.Normalize()
	today := s.manager.calendar.Today()

	if due := assignment.ParseDue(fields.Date, today); due.Known && due.LastDay(fields.Lasted).Before(today) {
		s.close(ctx, Result{Outcome: OutcomeRejected, Reason: shared.ErrPassedDate.Message})
		return
	}
	if fields.IsDefault() {
		s.close(ctx, Result{Outcome: OutcomeRejected, Reason: shared.ErrInvalidAssignment.Message})
		return
	}

	key, err := s.manager.committer.Add(ctx, s.guildID, s.state.Key, fields)
	switch {
	case errors.Is(err, shared.ErrInvalidAssignment):
		s.close(ctx, Result{Outcome: OutcomeRejected, Reason: shared.ErrInvalidAssignment.Message})
	case err != nil:
		s.logger.Error("failed to commit assignment", "kind", s.state.Kind, "error", err)
		s.close(ctx, Result{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("Unable to %s Assignment, Problem has been reported.", s.state.Kind),
		})
	case s.state.Kind == KindEdit:
		s.close(ctx, Result{Outcome: OutcomeCommitted, Reason: "Successfully Edited Assignment.", Key: key})
	default:
		s.close(ctx, Result{
			Outcome: OutcomeCommitted,
			Reason:  fmt.Sprintf("Successfully Added Assignment with key `%s`", key),
			Key:     key,
		})
	}
}

// render shows the current state. A failed render ends the session.
func (s *Session) render(ctx context.Context) bool {
	err := s.do(ctx, func(ctx context.Context) error { return s.surface.Show(ctx, s.state) })
	if err == nil {
		return false
	}
	s.logger.Warn("menu message is gone, closing", "error", err)
	s.warn(ctx, ":x: **Something went wrong - canceled all actions!**")
	s.close(ctx, Result{Outcome: OutcomeCancelled})
	return true
}

func (s *Session) close(ctx context.Context, result Result) {
	s.state.Step = StepClosed
	if err := s.do(ctx, func(ctx context.Context) error { return s.surface.Close(ctx, result) }); err != nil {
		s.logger.Warn("failed to close menu", "error", err)
	}
	s.logger.Debug("menu closed", "outcome", result.Outcome)
}

func (s *Session) warn(ctx context.Context, text string) {
	_ = s.do(ctx, func(ctx context.Context) error { return s.surface.Warn(ctx, text) })
}

func (s *Session) do(ctx context.Context, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.manager.config.OpTimeout)
	defer cancel()
	return op(opCtx)
}
