// Package logging provides structured logging for the OneHUD registrar.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler and default fields.
//
// # Features
//
//   - JSON output for machine consumption
//   - Text output (logfmt style)
//   - Console output with colour when attached to a terminal (tint)
//   - Default fields (service, version) on all log entries
//
// # Configuration
//
//	logging:
//	  level: "info"        # debug, info, warn, error
//	  format: "console"    # json, text, console
//	  output: "stderr"     # stdout, stderr
//
// # Security
//
// Never log the bot token. Log the chat ID or a port name instead when a
// field is needed to correlate a delivery.
package logging
