// ABOUTME: Per-participant session data carried between events
// ABOUTME: UserData holds the draft and paging scratch; ChatData tracks transient messages

package conversation

import (
	"context"
	"slices"
	"time"

	"github.com/2389/tradein-gateway/internal/store"
)

// Key identifies one participant in one chat.
type Key struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

func (k Key) String() string {
	return k.ChatID + ":" + k.UserID
}

// Draft is the set of item changes collected by the edit flow before saving.
type Draft struct {
	Name        *string           `json:"name,omitempty"`
	Value       *string           `json:"value,omitempty"`
	Description *string           `json:"description,omitempty"`
	Category    map[string]string `json:"category,omitempty"`
	Images      []string          `json:"images,omitempty"`
	Files       []string          `json:"files,omitempty"`
}

// Patch converts the draft into a store patch.
func (d *Draft) Patch() store.ItemPatch {
	return store.ItemPatch{
		Name:        d.Name,
		Value:       d.Value,
		Description: d.Description,
		Category:    d.Category,
		Images:      d.Images,
		Files:       d.Files,
	}
}

// Set records a typed value for field. Name, Value and Description are the
// fixed fields; anything else is a custom category.
func (d *Draft) Set(field, value string) {
	switch field {
	case FieldName:
		d.Name = &value
	case FieldValue:
		d.Value = &value
	case FieldDescription:
		d.Description = &value
	default:
		if d.Category == nil {
			d.Category = make(map[string]string)
		}
		d.Category[field] = value
	}
}

// AddImage attaches a public image reference once.
func (d *Draft) AddImage(ref string) {
	d.Images = appendNew(d.Images, ref)
}

// AddFile attaches a private file reference once.
func (d *Draft) AddFile(ref string) {
	d.Files = appendNew(d.Files, ref)
}

// Empty reports whether nothing has been collected yet.
func (d *Draft) Empty() bool {
	return d.Patch().IsEmpty()
}

func appendNew(list []string, ref string) []string {
	if ref == "" || slices.Contains(list, ref) {
		return list
	}
	return append(list, ref)
}

// Fixed item fields the edit flow can prompt for.
const (
	FieldName        = "Name"
	FieldValue       = "Value"
	FieldDescription = "Description"
)

// PageRef is what a rendered search card points at. OwnerRef is the owner when
// the card was drawn, so a trade can detect that the item has since moved.
type PageRef struct {
	ItemID   string `json:"item_id"`
	OwnerRef string `json:"owner_ref"`
}

// UserData is the participant's scratch space for the current conversation.
type UserData struct {
	// Pending is the field awaiting a typed value in the TYPING state.
	Pending string `json:"pending,omitempty"`
	Draft   Draft  `json:"draft"`
	Offset  int    `json:"offset"`
	Query   string `json:"query,omitempty"`
	// Voice is the last transcript, kept until the next edit prompt.
	Voice string `json:"voice,omitempty"`
	// PageItems maps a rendered card's message id to the item it shows.
	PageItems map[int]PageRef `json:"page_items,omitempty"`
}

// ChatData is conversation-surface scratch space.
type ChatData struct {
	// PageMessages are transient messages to delete before the next redraw.
	PageMessages []int `json:"page_messages,omitempty"`
}

// Session is everything remembered about a participant between events.
type Session struct {
	Key       Key       `json:"key"`
	State     State     `json:"state"`
	User      UserData  `json:"user"`
	Chat      ChatData  `json:"chat"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an empty session for key.
func NewSession(key Key) *Session {
	return &Session{Key: key}
}

// ClearUser discards all participant scratch data.
func (s *Session) ClearUser() {
	s.User = UserData{}
}

// Track remembers transient message ids for the next cleanup. Zero ids are skipped.
func (s *Session) Track(ids ...int) {
	for _, id := range ids {
		if id != 0 {
			s.Chat.PageMessages = append(s.Chat.PageMessages, id)
		}
	}
}

// Tracks reports whether messageID is a tracked transient message.
func (s *Session) Tracks(messageID int) bool {
	return messageID != 0 && slices.Contains(s.Chat.PageMessages, messageID)
}

// MapCard records which item a rendered card shows.
func (s *Session) MapCard(messageID int, ref PageRef) {
	if messageID == 0 {
		return
	}
	if s.User.PageItems == nil {
		s.User.PageItems = make(map[int]PageRef)
	}
	s.User.PageItems[messageID] = ref
}

// TakeCard resolves and forgets the card mapping for messageID.
func (s *Session) TakeCard(messageID int) (PageRef, bool) {
	ref, ok := s.User.PageItems[messageID]
	if ok {
		delete(s.User.PageItems, messageID)
	}
	return ref, ok
}

// Sessions loads and stores sessions. Acquire blocks until no other event for
// the same key is being handled; every successful Acquire must be paired with
// Release.
type Sessions interface {
	Acquire(ctx context.Context, key Key) (*Session, error)
	// Commit persists s, or forgets it when its state is End.
	Commit(ctx context.Context, s *Session) error
	Release(key Key)
}
