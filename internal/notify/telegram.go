package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onehud/registrar/internal/infrastructure/config"
	"github.com/onehud/registrar/internal/infrastructure/logging"
	"github.com/onehud/registrar/internal/registration"
)

// maxResponseBody caps how much of a Bot API response is read for logging.
const maxResponseBody = 64 * 1024

// sendMessageRequest is the sendMessage JSON body.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// apiResponse is the common Bot API envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Telegram sends registrations through the Telegram Bot API.
type Telegram struct {
	endpoint  string
	chatID    string
	parseMode string
	loc       *time.Location
	client    *http.Client
	logger    *logging.Logger
}

// NewTelegram builds a notifier from cfg.
//
// Parameters:
//   - cfg: notifier settings; BotToken and ChatID must be set
//   - loc: zone for the timestamp in the message; nil means UTC
//   - logger: optional
func NewTelegram(cfg config.NotifierConfig, loc *time.Location, logger *logging.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}

	return &Telegram{
		endpoint:  base + "/bot" + cfg.BotToken + "/sendMessage",
		chatID:    cfg.ChatID,
		parseMode: cfg.ParseMode,
		loc:       loc,
		client:    &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		logger:    logger.With("component", "notify"),
	}, nil
}

// Notify posts one message for req. Any non-2xx status or transport error
// yields ErrDelivery.
func (t *Telegram) Notify(ctx context.Context, req registration.Request) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      FormatRegistration(req, t.loc, t.parseMode),
		ParseMode: t.parseMode,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding message: %w", ErrDelivery, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrDelivery, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, redact(err))
	}
	defer resp.Body.Close()

	var decoded apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Warn("telegram rejected message",
			"status", resp.StatusCode, "description", decoded.Description)
		if decoded.Description != "" {
			return fmt.Errorf("%w: status %d: %s", ErrDelivery, resp.StatusCode, decoded.Description)
		}
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}

	t.logger.Info("registration delivered", "status", resp.StatusCode, "ok", decoded.OK)
	return nil
}

// redact strips the request URL, which carries the bot token, from net/http errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
