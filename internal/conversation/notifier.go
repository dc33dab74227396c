// ABOUTME: Outbound messaging contract implemented by transports
// ABOUTME: Messages are plain text with optional inline keyboards of callback tokens

package conversation

import "context"

// Button is one inline keyboard button.
type Button struct {
	Text  string
	Token Token
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Message is an outbound text message.
type Message struct {
	Text     string
	Keyboard Keyboard
	// ReplyTo quotes an earlier message when non-zero.
	ReplyTo int
}

// Notifier delivers messages to participants. Every call may fail; handlers
// only reach it through an Outbox.
type Notifier interface {
	// SendText sends msg and returns the new message id.
	SendText(ctx context.Context, chatID string, msg Message) (int, error)
	SendPhoto(ctx context.Context, chatID, fileRef, caption string, replyTo int) (int, error)
	SendDocument(ctx context.Context, chatID, fileRef, caption string) (int, error)
	// EditText replaces the text and keyboard of an existing message.
	EditText(ctx context.Context, chatID string, messageID int, msg Message) error
	// DeleteMessage removes a message. Already-deleted messages are not an error.
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	// Fetch downloads the media behind fileRef.
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
	// Link returns a deep link that opens the bot with payload as the start argument.
	Link(payload string) string
}
