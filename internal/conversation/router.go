// ABOUTME: Explicit (state, event) routing table for the conversation engine
// ABOUTME: Routes are tried in declared order: exact state, enclosing state, then global

package conversation

import (
	"context"
	"errors"
	"regexp"
)

// ErrNoRoute means no handler accepts the event in the current state.
var ErrNoRoute = errors.New("no route for event")

// Turn is one event being handled against its session.
type Turn struct {
	Event   *Event
	Session *Session
	Out     *Outbox
}

// Handler processes a turn and returns the next state. Returning the current
// state stays put; returning End finishes the conversation.
type Handler func(ctx context.Context, t *Turn) (State, error)

// Route pairs an event matcher with a handler.
type Route struct {
	Kind    Kind
	Tokens  []Token        // KindCallback: any of these; empty matches every token
	Command string         // KindCommand
	ArgRe   *regexp.Regexp // KindCommand: first argument must match; nil requires no argument check
	NoArgs  bool           // KindCommand: only match when there are no arguments
	Handler Handler
}

// Matches reports whether ev is accepted by the route.
func (r Route) Matches(ev *Event) bool {
	if ev.Kind != r.Kind {
		return false
	}
	switch r.Kind {
	case KindCallback:
		if len(r.Tokens) == 0 {
			return true
		}
		for _, t := range r.Tokens {
			if t == ev.Token {
				return true
			}
		}
		return false
	case KindCommand:
		if ev.Command != r.Command {
			return false
		}
		if r.NoArgs && len(ev.Args) > 0 {
			return false
		}
		if r.ArgRe != nil {
			return r.ArgRe.MatchString(ev.Arg(0))
		}
		return true
	default:
		return true
	}
}

// OnCallback routes button presses carrying one of tokens.
func OnCallback(h Handler, tokens ...Token) Route {
	return Route{Kind: KindCallback, Tokens: tokens, Handler: h}
}

// OnCommand routes a command regardless of arguments.
func OnCommand(name string, h Handler) Route {
	return Route{Kind: KindCommand, Command: name, Handler: h}
}

// OnBareCommand routes a command sent without arguments.
func OnBareCommand(name string, h Handler) Route {
	return Route{Kind: KindCommand, Command: name, NoArgs: true, Handler: h}
}

// OnCommandArg routes a command whose first argument matches re.
func OnCommandArg(name string, re *regexp.Regexp, h Handler) Route {
	return Route{Kind: KindCommand, Command: name, ArgRe: re, Handler: h}
}

// OnText routes free text.
func OnText(h Handler) Route { return Route{Kind: KindText, Handler: h} }

// OnPhoto routes photos.
func OnPhoto(h Handler) Route { return Route{Kind: KindPhoto, Handler: h} }

// OnDocument routes documents.
func OnDocument(h Handler) Route { return Route{Kind: KindDocument, Handler: h} }

// OnVoice routes voice notes.
func OnVoice(h Handler) Route { return Route{Kind: KindVoice, Handler: h} }

// Router is the routing table. It is built once at startup and read-only afterwards.
type Router struct {
	states    map[State][]Route
	global    []Route
	unmatched Handler
}

// NewRouter creates an empty table.
func NewRouter() *Router {
	return &Router{states: make(map[State][]Route)}
}

// Handle appends routes for state. Registering on a root-level state also
// covers its inner states after their own routes.
func (r *Router) Handle(state State, routes ...Route) {
	r.states[state] = append(r.states[state], routes...)
}

// Global appends routes tried in every state after the state's own routes.
func (r *Router) Global(routes ...Route) {
	r.global = append(r.global, routes...)
}

// Unmatched sets the handler for events nothing accepts while a conversation
// is active. Outside a conversation unmatched events are dropped.
func (r *Router) Unmatched(h Handler) {
	r.unmatched = h
}

// Resolve returns the first handler accepting ev in state.
func (r *Router) Resolve(state State, ev *Event) (Handler, error) {
	candidates := [][]Route{r.states[state]}
	if state.Inner != "" {
		candidates = append(candidates, r.states[state.Parent()])
	}
	candidates = append(candidates, r.global)

	for _, routes := range candidates {
		for _, route := range routes {
			if route.Matches(ev) {
				return route.Handler, nil
			}
		}
	}

	if state.Active() && r.unmatched != nil {
		return r.unmatched, nil
	}
	return nil, ErrNoRoute
}
