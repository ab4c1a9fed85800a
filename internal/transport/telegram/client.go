// Package telegram implements the bot's chat transport over the Telegram
// Bot API using long polling.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// pollTimeout is the long-poll hold time requested from getUpdates.
	pollTimeout = 30 * time.Second

	// errorBackoff is the pause after a failed poll before retrying.
	errorBackoff = 5 * time.Second
)

// MessageHandler processes one incoming message and returns the replies to
// send, one bubble each.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) []string
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []update `json:"result"`
}

type sendMessageRequest struct {
	ChatID             int64              `json:"chat_id"`
	Text               string             `json:"text"`
	LinkPreviewOptions linkPreviewOptions `json:"link_preview_options"`
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

// Client long-polls the Telegram Bot API and dispatches messages to a
// handler.
type Client struct {
	apiURL  string
	handler MessageHandler
	client  *http.Client
	offset  int64
}

// NewClient builds a client for the bot identified by token.
func NewClient(token string, handler MessageHandler) *Client {
	return &Client{
		apiURL:  "https://api.telegram.org/bot" + token,
		handler: handler,
		// The poll request itself holds for pollTimeout, so the client
		// timeout leaves headroom on top of it.
		client: &http.Client{Timeout: pollTimeout + 10*time.Second},
	}
}

// Run polls for updates until ctx is cancelled. Poll failures back off and
// retry; only cancellation stops the loop.
func (c *Client) Run(ctx context.Context) error {
	log.Info().Msg("Starting Telegram long polling")

	for {
		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Telegram polling stopped")
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to get updates")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}

			userID := strconv.FormatInt(u.Message.From.ID, 10)
			log.Info().Str("user_id", userID).Str("text", u.Message.Text).Msg("Received message")

			replies := c.handler.HandleMessage(ctx, userID, u.Message.Text)
			for _, reply := range replies {
				if err := c.sendMessage(ctx, u.Message.Chat.ID, reply); err != nil {
					log.Error().Err(err).Int64("chat_id", u.Message.Chat.ID).Msg("Failed to send message")
				}
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context) ([]update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(c.offset, 10))
	params.Set("timeout", strconv.Itoa(int(pollTimeout.Seconds())))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out updatesResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram API error: %s", out.Description)
	}
	return out.Result, nil
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:             chatID,
		Text:               text,
		LinkPreviewOptions: linkPreviewOptions{IsDisabled: true},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage returned status %d", resp.StatusCode)
	}
	return nil
}
