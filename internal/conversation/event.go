// ABOUTME: Transport-neutral inbound events as a tagged union
// ABOUTME: Callback buttons carry one of a fixed set of tokens

package conversation

import "time"

// Kind tags what an Event carries.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindCallback
	KindText
	KindPhoto
	KindDocument
	KindVoice
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindDocument:
		return "document"
	case KindVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// Token is the payload of an inline button.
type Token string

const (
	TokenEdit        Token = "edit"
	TokenShow        Token = "show"
	TokenSearch      Token = "search"
	TokenTrack       Token = "track"
	TokenEnd         Token = "end"
	TokenDownload    Token = "download"
	TokenName        Token = "name"
	TokenValue       Token = "value"
	TokenDescription Token = "description"
	TokenCategory    Token = "category"
	TokenSave        Token = "save"
	TokenPrev        Token = "prev"
	TokenNext        Token = "next"
)

var knownTokens = map[Token]bool{
	TokenEdit: true, TokenShow: true, TokenSearch: true, TokenTrack: true,
	TokenEnd: true, TokenDownload: true, TokenName: true, TokenValue: true,
	TokenDescription: true, TokenCategory: true, TokenSave: true,
	TokenPrev: true, TokenNext: true,
}

// ParseToken validates raw callback data.
func ParseToken(raw string) (Token, bool) {
	t := Token(raw)
	return t, knownTokens[t]
}

// Commands understood by the bot.
const (
	CommandStart = "start"
	CommandTrade = "trade"
	CommandStop  = "stop"
	CommandHelp  = "help"
)

// Event is one inbound update, already stripped of transport details.
type Event struct {
	Kind      Kind
	ChatID    string
	UserID    string
	FirstName string

	// MessageID is the inbound message, or for callbacks the message the button sits on.
	MessageID int
	// MessageText is the text currently displayed on MessageID (callbacks only).
	MessageText string

	Command string   // KindCommand, without the leading slash
	Args    []string // KindCommand

	Token      Token  // KindCallback
	CallbackID string // KindCallback

	Text string // KindText, or the caption of media

	FileRef  string // KindPhoto, KindDocument, KindVoice
	FileName string // KindDocument

	ReceivedAt time.Time
}

// Key returns the session key for the event.
func (e *Event) Key() Key {
	return Key{ChatID: e.ChatID, UserID: e.UserID}
}

// Arg returns the i-th command argument or "".
func (e *Event) Arg(i int) string {
	if i < len(e.Args) {
		return e.Args[i]
	}
	return ""
}
