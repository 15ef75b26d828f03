package bot

import (
	"github.com/nerrad567/relay-bridge/internal/auth"
)

// Notifier fans chat messages out to operators. It backs the engine's
// notification side-channel; delivery is best-effort and a failure for
// one recipient never blocks the rest.
type Notifier struct {
	api    ChatAPI
	users  *auth.Users
	logger Logger
}

// NewNotifier creates a notifier over the chat API.
func NewNotifier(api ChatAPI, users *auth.Users) *Notifier {
	return &Notifier{api: api, users: users, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (n *Notifier) SetLogger(l Logger) {
	if l != nil {
		n.logger = l
	}
}

// NotifyAll delivers the text to every operator.
func (n *Notifier) NotifyAll(text string) {
	for _, id := range n.users.IDs() {
		if err := n.api.Send(Message{ChatID: id, Text: text}); err != nil {
			n.logger.Warn("notification delivery failed", "user", id, "error", err)
		}
	}
}

// Send delivers the text to one recipient.
func (n *Notifier) Send(chatID int64, text string) {
	if err := n.api.Send(Message{ChatID: chatID, Text: text}); err != nil {
		n.logger.Warn("notification delivery failed", "user", chatID, "error", err)
	}
}
