package notify

import "errors"

var (
	// ErrDelivery is returned when the Bot API rejects the message or cannot
	// be reached.
	ErrDelivery = errors.New("notify: delivery failed")

	// ErrNotConfigured is returned by NewTelegram when the token or chat ID is missing.
	ErrNotConfigured = errors.New("notify: bot token and chat id are required")
)
