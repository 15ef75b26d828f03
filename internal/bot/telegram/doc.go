// Package telegram adapts the chat-platform-agnostic bot package to
// the Telegram Bot API: long-polled update pump in, messages and
// inline keyboards out.
package telegram
