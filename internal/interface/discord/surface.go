package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
)

// menuSurface renders one session's menu message in a channel.
type menuSurface struct {
	chat      Chat
	presenter *presenter.Presenter
	channelID string
	messageID string
	logger    *slog.Logger
}

var _ menu.Surface = (*menuSurface)(nil)

func newMenuSurface(chat Chat, p *presenter.Presenter, channelID string, logger *slog.Logger) *menuSurface {
	return &menuSurface{chat: chat, presenter: p, channelID: channelID, logger: logger}
}

// Open posts the menu and adds the control reactions. A reaction that fails
// to attach is skipped; the text shortcuts still work.
func (s *menuSurface) Open(ctx context.Context, state menu.State) (string, error) {
	id, err := s.chat.SendMessage(ctx, s.channelID, "", s.presenter.MenuEmbed(state))
	if err != nil {
		return "", fmt.Errorf("post menu: %w", err)
	}
	s.messageID = id

	for _, emoji := range menu.Emojis {
		if err := s.chat.React(ctx, s.channelID, id, emoji); err != nil {
			s.logger.Debug("could not add reaction", "emoji", emoji, "error", err)
		}
	}
	return id, nil
}

func (s *menuSurface) Show(ctx context.Context, state menu.State) error {
	return s.chat.Edit(ctx, s.channelID, s.messageID, s.presenter.MenuEmbed(state))
}

func (s *menuSurface) Close(ctx context.Context, result menu.Result) error {
	if err := s.chat.ClearReactions(ctx, s.channelID, s.messageID); err != nil {
		s.logger.Debug("could not clear reactions", "error", err)
	}
	return s.chat.Edit(ctx, s.channelID, s.messageID, s.presenter.ClosedMenuEmbed(result))
}

func (s *menuSurface) Discard(ctx context.Context, messageID string) error {
	return s.chat.Delete(ctx, s.channelID, messageID)
}

func (s *menuSurface) Warn(ctx context.Context, text string) error {
	_, err := s.chat.SendMessage(ctx, s.channelID, text, nil)
	return err
}
