// ABOUTME: Two-level conversation state for the trade-in dialogue
// ABOUTME: The zero State means no conversation is in progress

package conversation

// Outer states of the root conversation.
const (
	SelectingAction = "SELECTING_ACTION"
	Editing         = "EDITING"
	Showing         = "SHOWING"
	Searching       = "SEARCHING"
	Tracking        = "TRACKING"
)

// Inner states of the EDITING sub-flow.
const (
	SelectingFeature  = "SELECTING_FEATURE"
	SelectingCategory = "SELECTING_CATEGORY"
	Typing            = "TYPING"
)

// State is where a participant is in the dialogue. Inner is only set while
// Outer is Editing.
type State struct {
	Outer string `json:"outer,omitempty"`
	Inner string `json:"inner,omitempty"`
}

// End is the terminal state. Returning it from a handler clears the session.
var End = State{}

// At returns the root-level state s.
func At(outer string) State {
	return State{Outer: outer}
}

// InEdit returns the EDITING sub-state inner.
func InEdit(inner string) State {
	return State{Outer: Editing, Inner: inner}
}

// Active reports whether a conversation is in progress.
func (s State) Active() bool {
	return s.Outer != ""
}

// Parent returns the enclosing root-level state, or s itself when it has no inner part.
func (s State) Parent() State {
	return State{Outer: s.Outer}
}

func (s State) String() string {
	switch {
	case !s.Active():
		return "END"
	case s.Inner == "":
		return s.Outer
	default:
		return s.Outer + "/" + s.Inner
	}
}
