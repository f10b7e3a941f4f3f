package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/tplearn/tplearn-bot/internal/application/menu"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMAGE RELAY
// The user's input message is deleted by the menu, which invalidates its
// attachment URL. Images are therefore re-uploaded to a holding channel and
// the URL of the copy is stored.
// ══════════════════════════════════════════════════════════════════════════════

var _ menu.ImageHost = (*Client)(nil)

// Host re-uploads the attachment to the image channel and returns the new URL.
// Without an image channel the original URL is returned.
func (c *Client) Host(ctx context.Context, a menu.Attachment) (string, error) {
	if c.config.ImageChannelID == "" {
		return a.URL, nil
	}

	data, contentType, err := c.download(ctx, a.URL)
	if err != nil {
		return "", err
	}

	name := a.Filename
	if name == "" {
		name = path.Base(a.URL)
	}
	if a.ContentType != "" {
		contentType = a.ContentType
	}

	send := &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: contentType,
			Reader:      bytes.NewReader(data),
		}},
	}

	var msg *discordgo.Message
	err = c.do(ctx, func(opts ...discordgo.RequestOption) error {
		send.Files[0].Reader = bytes.NewReader(data)
		var err error
		msg, err = c.session.ChannelMessageSendComplex(c.config.ImageChannelID, send, opts...)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("discord: relay image: %w", err)
	}
	if len(msg.Attachments) == 0 {
		return "", fmt.Errorf("discord: relay image: upload returned no attachment")
	}

	c.logger.Debug("image relayed", "filename", name, "bytes", len(data))
	return msg.Attachments[0].URL, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("discord: download %s: %w", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("discord: download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("discord: download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("discord: download %s: %w", url, err)
	}
	if int64(len(data)) > c.config.MaxImageBytes {
		return nil, "", fmt.Errorf("discord: download %s: larger than %d bytes", url, c.config.MaxImageBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR LOG
// ══════════════════════════════════════════════════════════════════════════════

const maxReportLength = 1024

// Report posts a line to the operator log channel. Failures are only logged.
func (c *Client) Report(ctx context.Context, component, text string) {
	c.logger.Info("report", "source", component, "text", text)
	if c.config.LogChannelID == "" {
		return
	}

	line := c.reportLine(component, text)
	err := c.do(ctx, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ChannelMessageSend(c.config.LogChannelID, line, opts...)
		return err
	})
	if err != nil {
		c.logger.Error("failed to post report", "source", component, "error", err)
	}
}

func (c *Client) reportLine(component, text string) string {
	line := fmt.Sprintf("**[%s] | [%s]:** %s", c.calendar.LogStamp(), component, text)
	return clip(line, maxReportLength)
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
