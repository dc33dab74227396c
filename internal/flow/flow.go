// ABOUTME: Trade-in dialogue handlers and the routing table that binds them to states
// ABOUTME: Handlers talk to storage through the store, trades through the engine, users through the Outbox

package flow

import (
	"log/slog"
	"regexp"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/search"
	"github.com/2389/tradein-gateway/internal/store"
	"github.com/2389/tradein-gateway/internal/trade"
	"github.com/2389/tradein-gateway/internal/transcribe"
)

// itemIDPattern is what a direct-trade argument must look like.
var itemIDPattern = regexp.MustCompile(`^[a-z0-9]{24}$`)

// voiceHints bias transcription towards the edit menu vocabulary.
var voiceHints = []string{"name", "value", "description", "category", "save", "back"}

// Options configure a Flow.
type Options struct {
	// BotName is how the bot introduces itself in small talk.
	BotName string
	// PageSize is the number of search cards per page; zero uses search.DefaultPageSize.
	PageSize int
}

// Flow holds the dependencies shared by every handler.
type Flow struct {
	store   store.Store
	engine  *trade.Engine
	pager   *search.Pager
	voice   transcribe.Transcriber
	botName string
	logger  *slog.Logger
}

// New creates the dialogue handlers. A nil transcriber disables voice notes; a
// nil logger uses slog.Default().
func New(st store.Store, engine *trade.Engine, voice transcribe.Transcriber, opts Options, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	if voice == nil {
		voice = transcribe.Nop{}
	}
	if opts.BotName == "" {
		opts.BotName = "the trade-in bot"
	}
	return &Flow{
		store:   st,
		engine:  engine,
		pager:   search.NewPager(st, opts.PageSize),
		voice:   voice,
		botName: opts.BotName,
		logger:  logger.With("component", "flow"),
	}
}

// Router builds the routing table. Routes are tried in the order listed.
func (f *Flow) Router() *conversation.Router {
	r := conversation.NewRouter()

	// Outside a conversation free text is small talk.
	r.Handle(conversation.End,
		conversation.OnText(f.smallTalk),
	)

	r.Handle(conversation.At(conversation.SelectingAction),
		conversation.OnCallback(f.editMenu, conversation.TokenEdit),
		conversation.OnCallback(f.show, conversation.TokenShow),
		conversation.OnCallback(f.search, conversation.TokenSearch, conversation.TokenPrev, conversation.TokenNext),
		conversation.OnCallback(f.history, conversation.TokenTrack),
		conversation.OnCallback(f.end, conversation.TokenEnd),
	)

	// Back from any edit sub-state.
	r.Handle(conversation.At(conversation.Editing),
		conversation.OnCallback(f.back, conversation.TokenEnd),
	)
	r.Handle(conversation.InEdit(conversation.SelectingFeature),
		conversation.OnCallback(f.askField, conversation.TokenName, conversation.TokenValue, conversation.TokenDescription),
		conversation.OnCallback(f.askCategory, conversation.TokenCategory),
		conversation.OnCallback(f.saveItem, conversation.TokenSave),
		conversation.OnPhoto(f.receivedPhoto),
		conversation.OnDocument(f.receivedDocument),
		conversation.OnVoice(f.receivedVoice),
	)
	r.Handle(conversation.InEdit(conversation.SelectingCategory),
		conversation.OnText(f.receivedCategory),
	)
	r.Handle(conversation.InEdit(conversation.Typing),
		conversation.OnText(f.receivedValue),
	)

	r.Handle(conversation.At(conversation.Showing),
		conversation.OnCallback(f.download, conversation.TokenDownload),
		conversation.OnCallback(f.back, conversation.TokenEnd),
	)

	r.Handle(conversation.At(conversation.Searching),
		conversation.OnCallback(f.search, conversation.TokenSearch, conversation.TokenPrev, conversation.TokenNext),
		conversation.OnCallback(f.back, conversation.TokenEnd),
		conversation.OnCallback(f.tradeCommit, conversation.TokenSave),
		conversation.OnText(f.searchText),
	)

	r.Handle(conversation.At(conversation.Tracking),
		conversation.OnCallback(f.back, conversation.TokenEnd),
	)

	r.Global(
		conversation.OnCommandArg(conversation.CommandStart, itemIDPattern, f.directTrade),
		conversation.OnCommand(conversation.CommandStart, f.start),
		conversation.OnCommand(conversation.CommandTrade, f.directTrade),
		conversation.OnCommand(conversation.CommandStop, f.stop),
		conversation.OnCommand(conversation.CommandHelp, f.help),
	)

	r.Unmatched(f.unmatched)
	return r
}

// owner is the owner reference of the participant behind t. Items belong to
// the private chat they were created from.
func owner(t *conversation.Turn) string {
	return t.Event.ChatID
}
