// ABOUTME: Trade history listing for items the participant has traded away
// ABOUTME: One transient card per ledger record, oldest first

package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/store"
)

const tradeDateLayout = "2006-01-02 15:04"

func (f *Flow) history(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	records, err := f.store.ListTradesFrom(ctx, owner(t))
	if err != nil {
		return t.Session.State, fmt.Errorf("listing trades for %s: %w", owner(t), err)
	}

	t.Out.Flush(ctx, t.Session)
	t.Out.Render(ctx, t.Event, conversation.Message{
		Text:     fmt.Sprintf(textHistory, len(records)),
		Keyboard: backToMenuKeyboard,
	})

	for i, rec := range records {
		text := strings.TrimPrefix(renderFacts([]fact{
			{"Trans No", strconv.Itoa(i + 1)},
			{"Trade Date", rec.Timestamp.Format(tradeDateLayout)},
		}), "\n")
		item, err := f.store.GetItem(ctx, rec.ItemID)
		switch {
		case err == nil:
			text += itemFacts(item)
		case !errors.Is(err, store.ErrNotFound):
			f.logger.Warn("history item lookup failed", "item", rec.ItemID, "error", err)
		}
		t.Session.Track(t.Out.Send(ctx, conversation.Message{Text: text}))
	}

	return conversation.At(conversation.Tracking), nil
}
