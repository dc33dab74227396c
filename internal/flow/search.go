// ABOUTME: Candidate search with paging, name filtering, direct trade proposals and trade commit
// ABOUTME: Every rendered card is mapped to the item it shows so a selection never re-queries by position

package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/search"
	"github.com/2389/tradein-gateway/internal/store"
	"github.com/2389/tradein-gateway/internal/trade"
)

var moveByToken = map[conversation.Token]search.Move{
	conversation.TokenSearch: search.Stay,
	conversation.TokenPrev:   search.Prev,
	conversation.TokenNext:   search.Next,
}

func (f *Flow) search(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	return f.renderPage(ctx, t, moveByToken[t.Event.Token])
}

// searchText narrows the candidates to names containing the typed text and
// starts again from the first page.
func (f *Flow) searchText(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	u := &t.Session.User
	u.Query = strings.TrimSpace(t.Event.Text)
	u.Offset = 0

	next, err := f.renderPage(ctx, t, search.Stay)
	// Tracked after the redraw so the query stays until the next one
	t.Session.Track(t.Event.MessageID)
	return next, err
}

func (f *Flow) renderPage(ctx context.Context, t *conversation.Turn, move search.Move) (conversation.State, error) {
	u := &t.Session.User
	filter := store.CandidateFilter{Requester: owner(t), Query: u.Query}

	page, err := f.pager.Fetch(ctx, filter, u.Offset, move)
	if err != nil {
		return t.Session.State, fmt.Errorf("fetching candidates for %s: %w", owner(t), err)
	}

	t.Out.Flush(ctx, t.Session)
	u.PageItems = nil
	u.Offset = page.Offset

	header := page.Header()
	if u.Query != "" {
		header += "\n" + fmt.Sprintf(textFilter, u.Query)
	} else {
		header += "\n" + textTypeToFilter
	}
	t.Out.Render(ctx, t.Event, conversation.Message{
		Text:     header,
		Keyboard: pageKeyboard(page.HasPrev(), page.HasNext()),
	})

	for i, item := range page.Items {
		n := page.DisplayIndex(i)
		id := t.Out.Send(ctx, conversation.Message{
			Text:     fmt.Sprintf(textCardTitle, n) + itemFacts(item),
			Keyboard: cardKeyboard(n),
		})
		t.Session.Track(id)
		t.Session.MapCard(id, conversation.PageRef{ItemID: item.ID, OwnerRef: item.OwnerRef})
		f.attachImages(ctx, t, item, id)
	}

	return conversation.At(conversation.Searching), nil
}

// directTrade proposes a trade for the item named in a deep link or /trade
// command, showing it as the only candidate.
func (f *Flow) directTrade(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	itemID := t.Event.Arg(0)
	if !itemIDPattern.MatchString(itemID) || !store.IsItemID(itemID) {
		return f.rejectDirect(ctx, t, textBadItemID), nil
	}

	item, err := f.store.GetItem(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return f.rejectDirect(ctx, t, textItemMissing), nil
	}
	if err != nil {
		return t.Session.State, fmt.Errorf("loading item %s: %w", itemID, err)
	}
	if item.OwnerRef == owner(t) {
		return f.rejectDirect(ctx, t, textOwnItem), nil
	}

	t.Out.Flush(ctx, t.Session)
	t.Session.ClearUser()

	id := t.Out.Send(ctx, conversation.Message{
		Text:     textItemDetails + itemFacts(item),
		Keyboard: directTradeKeyboard,
	})
	t.Session.Track(id)
	t.Session.MapCard(id, conversation.PageRef{ItemID: item.ID, OwnerRef: item.OwnerRef})
	f.attachImages(ctx, t, item, id)

	return conversation.At(conversation.Searching), nil
}

// rejectDirect reports a bad direct-trade request without leaving the current state.
func (f *Flow) rejectDirect(ctx context.Context, t *conversation.Turn, text string) conversation.State {
	id := t.Out.Send(ctx, conversation.Message{Text: text, ReplyTo: t.Event.MessageID})
	if t.Session.State.Active() {
		t.Session.Track(id)
	}
	return t.Session.State
}

// tradeCommit executes the trade for the card whose button was pressed.
func (f *Flow) tradeCommit(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Answer(ctx, t.Event)
	t.Out.Flush(ctx, t.Session)

	ref, _ := t.Session.TakeCard(t.Event.MessageID)
	result, err := f.engine.Execute(ctx, trade.Request{
		RequesterRef:  owner(t),
		TargetItemID:  ref.ItemID,
		ExpectedOwner: ref.OwnerRef,
	})

	var rejected *trade.Error
	if errors.As(err, &rejected) {
		t.Session.Track(t.Out.Send(ctx, conversation.Message{Text: rejected.Message()}))
		return conversation.At(conversation.Searching), nil
	}
	if err != nil {
		f.logger.Error("trade failed", "owner", owner(t), "item", ref.ItemID, "error", err)
		t.Session.Track(t.Out.Send(ctx, conversation.Message{Text: textTradeFailed}))
		return conversation.At(conversation.Searching), nil
	}

	// The offered item now belongs to the counterpart
	t.Out.Send(ctx, conversation.Message{Text: textTradeDone})
	t.Out.SendTo(ctx, result.Offered.OwnerRef, conversation.Message{Text: textTradeDone})

	return f.reopenMenu(ctx, t), nil
}
