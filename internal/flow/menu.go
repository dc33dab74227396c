// ABOUTME: Root menu, conversation exits, help and small talk handlers
// ABOUTME: The root menu is also where every sub-flow returns

package flow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/2389/tradein-gateway/internal/conversation"
)

// start begins a fresh conversation, discarding whatever was in progress.
func (f *Flow) start(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Flush(ctx, t.Session)
	t.Session.ClearUser()

	t.Out.Send(ctx, conversation.Message{Text: fmt.Sprintf(textGreeting, t.Event.FirstName)})
	t.Out.Send(ctx, menuMessage())
	return conversation.At(conversation.SelectingAction), nil
}

// back returns to the root menu from a sub-flow. Paging position and the
// search query survive; an unsaved draft does not.
func (f *Flow) back(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	onTransient := t.Session.Tracks(t.Event.MessageID)
	t.Out.Flush(ctx, t.Session)

	u := &t.Session.User
	u.Pending = ""
	u.Draft = conversation.Draft{}
	u.PageItems = nil

	if onTransient {
		// The button sat on a message that Flush just deleted
		t.Out.Answer(ctx, t.Event)
		t.Out.Send(ctx, menuMessage())
	} else {
		t.Out.Render(ctx, t.Event, menuMessage())
	}
	return conversation.At(conversation.SelectingAction), nil
}

// reopenMenu sends a fresh root menu after a sub-flow finished with its own notice.
func (f *Flow) reopenMenu(ctx context.Context, t *conversation.Turn) conversation.State {
	t.Session.ClearUser()
	t.Out.Flush(ctx, t.Session)
	t.Out.Send(ctx, menuMessage())
	return conversation.At(conversation.SelectingAction)
}

func (f *Flow) end(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Answer(ctx, t.Event)
	t.Out.Send(ctx, conversation.Message{Text: textGoodbye})
	return conversation.End, nil
}

func (f *Flow) stop(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Send(ctx, conversation.Message{Text: textStopped})
	return conversation.End, nil
}

// help replies with the command list. Inside a conversation the reply is
// transient like any other aside.
func (f *Flow) help(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	id := t.Out.Send(ctx, conversation.Message{Text: textHelp, ReplyTo: t.Event.MessageID})
	if t.Session.State.Active() {
		t.Session.Track(id)
	}
	return t.Session.State, nil
}

func (f *Flow) smallTalk(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	said := strings.ToLower(strings.TrimSpace(t.Event.Text))

	var reply string
	switch {
	case slices.Contains([]string{"hello", "hi"}, strings.Trim(said, "!")):
		reply = fmt.Sprintf(textHello, t.Event.FirstName)
	case slices.Contains([]string{"who are you", "who is this", "what is this"}, strings.Trim(said, "?")):
		reply = fmt.Sprintf(textIntro, f.botName)
	default:
		reply = textNeedHelp
	}
	t.Out.Send(ctx, conversation.Message{Text: reply, ReplyTo: t.Event.MessageID})
	return conversation.End, nil
}

// unmatched answers events the current state has no use for with a hint, and
// treats both the stray message and the hint as transient.
func (f *Flow) unmatched(ctx context.Context, t *conversation.Turn) (conversation.State, error) {
	t.Out.Answer(ctx, t.Event)
	if t.Event.Kind != conversation.KindCallback {
		t.Session.Track(t.Event.MessageID)
	}
	t.Session.Track(t.Out.Send(ctx, conversation.Message{Text: textUnmatched}))
	return t.Session.State, nil
}
