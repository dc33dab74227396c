// ABOUTME: Best-effort wrapper around a Notifier bound to one chat
// ABOUTME: Logs and swallows delivery failures; owns idempotent re-render and message cleanup

package conversation

import (
	"context"
	"log/slog"
)

// Outbox sends on behalf of one event. Failures are logged and reported as a
// zero message id; they never reach the handler as errors.
type Outbox struct {
	n      Notifier
	chatID string
	logger *slog.Logger
}

// NewOutbox binds n to chatID.
func NewOutbox(n Notifier, chatID string, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{n: n, chatID: chatID, logger: logger}
}

// ChatID returns the chat this outbox writes to.
func (o *Outbox) ChatID() string {
	return o.chatID
}

// Send sends msg to the bound chat and returns its id, or 0 on failure.
func (o *Outbox) Send(ctx context.Context, msg Message) int {
	return o.SendTo(ctx, o.chatID, msg)
}

// SendTo sends msg to another chat, for example a trade counterpart.
func (o *Outbox) SendTo(ctx context.Context, chatID string, msg Message) int {
	id, err := o.n.SendText(ctx, chatID, msg)
	if err != nil {
		o.logger.Warn("send failed", "chat", chatID, "error", err)
		return 0
	}
	return id
}

// Photo sends an image, optionally as a reply. Returns 0 on failure.
func (o *Outbox) Photo(ctx context.Context, fileRef, caption string, replyTo int) int {
	id, err := o.n.SendPhoto(ctx, o.chatID, fileRef, caption, replyTo)
	if err != nil {
		o.logger.Warn("send photo failed", "chat", o.chatID, "error", err)
		return 0
	}
	return id
}

// Document sends a file. Returns 0 on failure.
func (o *Outbox) Document(ctx context.Context, fileRef, caption string) int {
	id, err := o.n.SendDocument(ctx, o.chatID, fileRef, caption)
	if err != nil {
		o.logger.Warn("send document failed", "chat", o.chatID, "error", err)
		return 0
	}
	return id
}

// Answer acknowledges a button press so the client stops its spinner.
func (o *Outbox) Answer(ctx context.Context, ev *Event) {
	if ev.Kind != KindCallback || ev.CallbackID == "" {
		return
	}
	if err := o.n.AnswerCallback(ctx, ev.CallbackID); err != nil {
		o.logger.Debug("answer callback failed", "error", err)
	}
}

// Render shows msg in response to ev. For a button press the message carrying
// the button is edited in place, and left alone when it already shows the same
// text. Otherwise a new message is sent. Returns the id of the message now
// showing msg, or 0 when delivery failed.
func (o *Outbox) Render(ctx context.Context, ev *Event, msg Message) int {
	if ev.Kind == KindCallback && ev.MessageID != 0 {
		o.Answer(ctx, ev)
		if msg.Text == ev.MessageText {
			return ev.MessageID
		}
		err := o.n.EditText(ctx, o.chatID, ev.MessageID, msg)
		if err == nil {
			return ev.MessageID
		}
		o.logger.Debug("edit failed, sending new message", "message", ev.MessageID, "error", err)
	}
	return o.Send(ctx, msg)
}

// Fetch downloads media, returning nil on failure.
func (o *Outbox) Fetch(ctx context.Context, fileRef string) []byte {
	data, err := o.n.Fetch(ctx, fileRef)
	if err != nil {
		o.logger.Warn("fetch media failed", "error", err)
		return nil
	}
	return data
}

// Link returns a deep link for payload.
func (o *Outbox) Link(payload string) string {
	return o.n.Link(payload)
}

// Flush deletes every tracked message of s, skipping individual failures, and
// empties the tracked list.
func (o *Outbox) Flush(ctx context.Context, s *Session) {
	for _, id := range s.Chat.PageMessages {
		if err := o.n.DeleteMessage(ctx, o.chatID, id); err != nil {
			o.logger.Debug("delete tracked message failed", "message", id, "error", err)
		}
	}
	s.Chat.PageMessages = nil
}
