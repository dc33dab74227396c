// ABOUTME: Mock Notifier that records outbound calls for tests
// ABOUTME: Supports injected failures for sends, edits and deletes

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMockDelivery is returned by MockNotifier when a failure is injected.
var ErrMockDelivery = errors.New("mock delivery failure")

// Sent is one message recorded by MockNotifier.
type Sent struct {
	ID       int
	ChatID   string
	Kind     string // "text", "photo" or "document"
	Text     string // text or caption
	FileRef  string
	Keyboard Keyboard
	ReplyTo  int
}

// Edit is one recorded EditText call.
type Edit struct {
	ChatID    string
	MessageID int
	Message   Message
}

// MockNotifier is an in-memory Notifier for tests.
type MockNotifier struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	edits   []Edit
	deleted []int
	answers []string

	// Files backs Fetch.
	Files map[string][]byte
	// FailSend makes every send fail.
	FailSend bool
	// FailEdit makes every edit fail.
	FailEdit bool
	// FailDelete makes deleting these message ids fail.
	FailDelete map[int]bool
}

// NewMockNotifier creates a MockNotifier whose message ids start at 1000.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		nextID:     1000,
		Files:      make(map[string][]byte),
		FailDelete: make(map[int]bool),
	}
}

func (m *MockNotifier) record(s Sent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return 0, ErrMockDelivery
	}
	m.nextID++
	s.ID = m.nextID
	m.sent = append(m.sent, s)
	return s.ID, nil
}

func (m *MockNotifier) SendText(ctx context.Context, chatID string, msg Message) (int, error) {
	return m.record(Sent{ChatID: chatID, Kind: "text", Text: msg.Text, Keyboard: msg.Keyboard, ReplyTo: msg.ReplyTo})
}

func (m *MockNotifier) SendPhoto(ctx context.Context, chatID, fileRef, caption string, replyTo int) (int, error) {
	return m.record(Sent{ChatID: chatID, Kind: "photo", Text: caption, FileRef: fileRef, ReplyTo: replyTo})
}

func (m *MockNotifier) SendDocument(ctx context.Context, chatID, fileRef, caption string) (int, error) {
	return m.record(Sent{ChatID: chatID, Kind: "document", Text: caption, FileRef: fileRef})
}

func (m *MockNotifier) EditText(ctx context.Context, chatID string, messageID int, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEdit {
		return ErrMockDelivery
	}
	m.edits = append(m.edits, Edit{ChatID: chatID, MessageID: messageID, Message: msg})
	return nil
}

func (m *MockNotifier) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete[messageID] {
		return ErrMockDelivery
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *MockNotifier) AnswerCallback(ctx context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, callbackID)
	return nil
}

func (m *MockNotifier) Fetch(ctx context.Context, fileRef string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[fileRef]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", fileRef, ErrMockDelivery)
	}
	return data, nil
}

func (m *MockNotifier) Link(payload string) string {
	return "https://t.me/test_bot?start=" + payload
}

// Sent returns a copy of every recorded message.
func (m *MockNotifier) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// SentTo returns messages sent to chatID.
func (m *MockNotifier) SentTo(chatID string) []Sent {
	var out []Sent
	for _, s := range m.Sent() {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message, or a zero Sent.
func (m *MockNotifier) Last() Sent {
	sent := m.Sent()
	if len(sent) == 0 {
		return Sent{}
	}
	return sent[len(sent)-1]
}

// Edits returns a copy of every recorded edit.
func (m *MockNotifier) Edits() []Edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Edit(nil), m.edits...)
}

// Deleted returns the ids of successfully deleted messages.
func (m *MockNotifier) Deleted() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.deleted...)
}

// Answers returns answered callback ids.
func (m *MockNotifier) Answers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.answers...)
}

// Reset forgets everything recorded so far.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent, m.edits, m.deleted, m.answers = nil, nil, nil, nil
}

var _ Notifier = (*MockNotifier)(nil)
