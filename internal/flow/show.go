// ABOUTME: Item display for the owner, including attached images, a promotion link and file download
// ABOUTME: Attached media are transient and removed on the next redraw

package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/store"
)

func (f *Flow) show(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	item, err := f.store.GetItemByOwner(ctx, owner(t))
	if errors.Is(err, store.ErrNotFound) {
		t.Out.Render(ctx, t.Event, conversation.Message{Text: textNoItem, Keyboard: showKeyboard(false)})
		return conversation.At(conversation.Showing), nil
	}
	if err != nil {
		return t.Session.State, fmt.Errorf("loading item for %s: %w", owner(t), err)
	}

	t.Out.Flush(ctx, t.Session)

	text := textYourItem + itemFacts(item) + "\n" + fmt.Sprintf(textPromote, t.Out.Link(item.ID))
	id := t.Out.Render(ctx, t.Event, conversation.Message{Text: text, Keyboard: showKeyboard(len(item.Files) > 0)})
	f.attachImages(ctx, t, item, id)

	return conversation.At(conversation.Showing), nil
}

// download sends the owner's private files.
func (f *Flow) download(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Answer(ctx, t.Event)

	item, err := f.store.GetItemByOwner(ctx, owner(t))
	if errors.Is(err, store.ErrNotFound) {
		return conversation.At(conversation.Showing), nil
	}
	if err != nil {
		return t.Session.State, fmt.Errorf("loading item for %s: %w", owner(t), err)
	}

	for _, ref := range item.Files {
		t.Session.Track(t.Out.Document(ctx, ref, textAttachedFile))
	}
	return conversation.At(conversation.Showing), nil
}

// attachImages replies to messageID with each of the item's images.
func (f *Flow) attachImages(ctx context.Context, t *conversation.Turn, item *store.Item, messageID int) {
	for _, ref := range item.Images {
		t.Session.Track(t.Out.Photo(ctx, ref, textAttachedImage, messageID))
	}
}
