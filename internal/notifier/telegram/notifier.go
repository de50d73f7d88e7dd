// Package telegram delivers announcements through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/amzdeals/postbot/internal/poster"
)

// Config holds the Bot API destination and credentials.
type Config struct {
	Token   string
	ChatID  string
	APIBase string
	Timeout time.Duration
}

// Notifier implements poster.Notifier via the sendPhoto method.
type Notifier struct {
	client *resty.Client
	token  string
	chatID string
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// New builds a Notifier. Missing credentials are a configuration error
// and fail construction rather than every attempt.
func New(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	base := cfg.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout)

	return &Notifier{
		client: client,
		token:  cfg.Token,
		chatID: cfg.ChatID,
	}, nil
}

// Notify sends one photo message with the title and affiliate link as
// caption. Exactly one outbound call is made per invocation.
func (n *Notifier) Notify(ctx context.Context, a poster.Announcement) error {
	if a.ImageURL == "" {
		return errors.New("announcement has no image")
	}

	var result apiResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    n.chatID,
			"photo":      a.ImageURL,
			"caption":    caption(a),
			"parse_mode": "Markdown",
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + n.token + "/sendPhoto")
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	if !resp.IsSuccess() || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = resp.Status()
		}
		return fmt.Errorf("telegram api: %s", desc)
	}
	return nil
}

func caption(a poster.Announcement) string {
	return fmt.Sprintf("🛒 *%s*\n\n🔗 [Buy Now](%s)", a.Title, a.Link)
}
