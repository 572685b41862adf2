// Package api implements the local HTTP front end of the OneHUD registrar.
//
// This package provides:
//   - JSON endpoints to submit a registration and read the session state
//   - A websocket hub that pushes every status transition to open pages
//   - Read-only views of serial ports and the receipts ledger
//   - Prometheus /metrics and a runtime summary at /api/v1/system
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server sits between the embedded page (internal/panel) and one
// registration.Controller. POST /api/v1/register blocks until the run
// finishes and answers with the final status; pages that did not submit
// still see progress through the websocket.
//
// # Security
//
// There is no authentication. The server binds to loopback by default and
// is meant for the one person sitting at the machine with the device.
// Websocket upgrades are restricted to same-origin pages.
package api
