// Package conversation is the state machine that drives a trade-in dialogue.
//
// # Overview
//
// Transports turn platform updates into Events and hand them to a Dispatcher.
// The Dispatcher loads the participant's Session, resolves a Handler from the
// Router for the session's current State, runs it, and commits the State the
// handler returns.
//
//	router := conversation.NewRouter()
//	router.Handle(conversation.At(conversation.SelectingAction),
//	    conversation.OnCallback(h.edit, conversation.TokenEdit),
//	)
//	d := conversation.NewDispatcher(router, sessions, notifier, logger)
//	err := d.Dispatch(ctx, ev)
//
// # States
//
// Root states are SELECTING_ACTION, EDITING, SHOWING, SEARCHING and TRACKING.
// EDITING has inner states SELECTING_FEATURE, SELECTING_CATEGORY and TYPING.
// The zero State (End) means no conversation; entering it clears UserData and
// deletes tracked messages.
//
// # Routing
//
// For a state, routes are tried in the order they were registered: the exact
// state first, then the enclosing root state, then global routes. The first
// match wins. While a conversation is active an event nothing accepts goes to
// the Unmatched handler; outside one it is dropped.
//
// # Events
//
// An Event is a tagged union of command, callback, text, photo, document and
// voice. Callback buttons carry a Token from a fixed set.
//
// # Outbound Messages
//
// Handlers never call the Notifier directly. The Outbox wraps it, logs and
// swallows delivery failures, skips edits that would not change the displayed
// text, and deletes tracked transient messages on Flush.
//
// # Concurrency
//
// Sessions.Acquire serializes events for one participant. Handler errors are
// logged and the session is not committed, so a failed event leaves the
// participant where they were.
package conversation
