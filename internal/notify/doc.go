// Package notify delivers registrations to the operator's Telegram chat.
//
// Telegram implements registration.Notifier. Each Notify call is exactly one
// POST to the Bot API sendMessage method; it is never retried, because a
// repeated delivery would register the device twice.
package notify
