// ABOUTME: Item edit sub-flow: field prompts, typed values, media attachments and save
// ABOUTME: Changes collect in the session draft and reach the store only on save

package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/tradein-gateway/internal/conversation"
)

func (f *Flow) editMenu(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Session.User.Voice = ""
	t.Out.Render(ctx, t.Event, conversation.Message{Text: textEditIntro, Keyboard: editKeyboard})
	return conversation.InEdit(conversation.SelectingFeature), nil
}

var fieldByToken = map[conversation.Token]string{
	conversation.TokenName:        conversation.FieldName,
	conversation.TokenValue:       conversation.FieldValue,
	conversation.TokenDescription: conversation.FieldDescription,
}

// askField prompts for one of the fixed fields.
func (f *Flow) askField(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	field := fieldByToken[t.Event.Token]
	t.Session.User.Pending = field
	t.Session.User.Voice = ""
	t.Out.Render(ctx, t.Event, conversation.Message{Text: fmt.Sprintf(textAskValue, strings.ToLower(field))})
	return conversation.InEdit(conversation.Typing), nil
}

func (f *Flow) askCategory(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Session.User.Voice = ""
	t.Out.Render(ctx, t.Event, conversation.Message{Text: textAskCategory})
	return conversation.InEdit(conversation.SelectingCategory), nil
}

// receivedCategory takes the name of a custom category and asks for its value.
func (f *Flow) receivedCategory(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	name := strings.TrimSpace(t.Event.Text)
	if name == "" {
		t.Out.Send(ctx, conversation.Message{Text: textAskCategory})
		return t.Session.State, nil
	}
	t.Session.User.Pending = name
	t.Out.Send(ctx, conversation.Message{Text: fmt.Sprintf(textAskValue, strings.ToLower(name))})
	return conversation.InEdit(conversation.Typing), nil
}

// receivedValue stores the typed value for the pending field.
func (f *Flow) receivedValue(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	u := &t.Session.User
	if u.Pending != "" {
		u.Draft.Set(u.Pending, t.Event.Text)
		u.Pending = ""
	}
	return f.draftSummary(ctx, t), nil
}

func (f *Flow) draftSummary(ctx context.Context, t *conversation.Turn) conversation.State {
	t.Out.Send(ctx, conversation.Message{
		Text:     textGotIt + "\n" + draftFacts(&t.Session.User.Draft),
		Keyboard: editKeyboard,
	})
	return conversation.InEdit(conversation.SelectingFeature)
}

// receivedPhoto attaches a public image. The upload itself is transient.
func (f *Flow) receivedPhoto(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Session.User.Draft.AddImage(t.Event.FileRef)
	return f.acknowledgeMedia(ctx, t, textPhotoPublic), nil
}

// receivedDocument attaches a document, as a public image when its name says
// it is one and as a private file otherwise.
func (f *Flow) receivedDocument(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	d := &t.Session.User.Draft
	if isImageName(t.Event.FileName) {
		d.AddImage(t.Event.FileRef)
		return f.acknowledgeMedia(ctx, t, textPhotoPublic), nil
	}
	d.AddFile(t.Event.FileRef)
	return f.acknowledgeMedia(ctx, t, textFilePrivate), nil
}

func (f *Flow) acknowledgeMedia(ctx context.Context, t *conversation.Turn, text string) conversation.State {
	t.Session.Track(t.Event.MessageID)
	t.Session.Track(t.Out.Send(ctx, conversation.Message{Text: text, ReplyTo: t.Event.MessageID}))
	return conversation.InEdit(conversation.SelectingFeature)
}

// receivedVoice echoes a transcript of the voice note back with the edit menu
// and remembers it on the session.
func (f *Flow) receivedVoice(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Session.Track(t.Event.MessageID)

	heard := textVoiceFailed
	if audio := t.Out.Fetch(ctx, t.Event.FileRef); audio != nil {
		text, err := f.voice.Transcribe(ctx, audio, voiceHints)
		if err == nil {
			heard = text
			t.Session.User.Voice = text
		} else {
			f.logger.Warn("transcription failed", "chat", t.Event.ChatID, "error", err)
		}
	}

	t.Out.Send(ctx, conversation.Message{Text: fmt.Sprintf(textVoiceEcho, heard), Keyboard: editKeyboard})
	return conversation.InEdit(conversation.SelectingFeature), nil
}

// saveItem writes the draft to the participant's item, creating it on first
// save, then returns to the root menu.
func (f *Flow) saveItem(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	item, created, err := f.store.UpsertItemByOwner(ctx, owner(t), t.Session.User.Draft.Patch())
	if err != nil {
		t.Out.Render(ctx, t.Event, conversation.Message{Text: textSaveFailed, Keyboard: editKeyboard})
		return t.Session.State, fmt.Errorf("saving item for %s: %w", owner(t), err)
	}

	notice := textUpdated
	if created {
		notice = fmt.Sprintf(textInserted, item.ID)
	}
	t.Out.Render(ctx, t.Event, conversation.Message{Text: notice})
	f.logger.Info("item saved", "item", item.ID, "owner", item.OwnerRef, "created", created)

	return f.reopenMenu(ctx, t), nil
}
