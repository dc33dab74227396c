// ABOUTME: User-facing texts, keyboards and item fact formatting
// ABOUTME: Everything here is plain text; transports send it without markup

package flow

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/store"
)

const (
	textGreeting      = "Hi %s, Let's trade-in!"
	textMenu          = "To abort session, type /stop or click [Stop]."
	textGoodbye       = "🏁Thank you. See you next time!"
	textStopped       = "🏁Okay, bye"
	textEditIntro     = "Update your item details.\nYou can also attach photos and files"
	textAskValue      = "Item %s? Please type the value:"
	textAskCategory   = "Describe the category, for example Colour or Size"
	textGotIt         = "Got it! Keep changing and click 💾Save to finish update, or Back to cancel and return"
	textPhotoPublic   = "The photo will be visible for all!"
	textFilePrivate   = "The file will be visible for you only until new owner!"
	textVoiceEcho     = "Oh, did you say this? %s"
	textVoiceFailed   = "Sorry, I could not hear you well :("
	textInserted      = "The item %s is inserted"
	textUpdated       = "👏Welldone! The item is updated and ready to trade"
	textSaveFailed    = "❌Sorry, the item could not be saved, please try again"
	textNoItem        = "No information yet. Please setup your item first"
	textYourItem      = "Here is your item details:"
	textPromote       = "Use this link to promote your item: %s"
	textAttachedImage = "Attached image"
	textAttachedFile  = "Attached file"
	textCardTitle     = "Item No: %d"
	textTradeButton   = "🛒Trade Item No: %d"
	textFilter        = "Showing names containing %q. Type another word to refine."
	textTypeToFilter  = "Type a word to search by name."
	textTradeDone     = "👏The trade-in is done! Check your new item details by running /start command"
	textTradeFailed   = "❌Sorry, the trade-in could not be completed"
	textHistory       = "%d historical trade-in(s) found"
	textBadItemID     = "❌Please provide correct item id for direct trade"
	textItemMissing   = "❌Sorry, this item id is incorrect or not available anymore!"
	textOwnItem       = "❌Sorry, this item is already owned by you"
	textItemDetails   = "Here is item details:"
	textHello         = "🤟G'Day %s!"
	textIntro         = "🤖I am %s. This marketplace allows to trade-in items with identical (or higher) value. Type /start to init new session, or /help for more options"
	textNeedHelp      = "😏hmm, looks like you need some /help"
	textUnmatched     = "Please use the buttons above, or type /stop to end the session."
)

const textHelp = "Type one of the following commands:" +
	"\n/start - to initiate guided session" +
	"\n/stop - to stop conversation" +
	"\n/trade item_id - to trade directly with advertised item" +
	"\nThere are some rules behind the scene:" +
	"\n-Bot represents many owners, but each owner can have only one item at the same time." +
	"\n-Owners can advertise their items externally. Bot will process provided deep links from external redirects." +
	"\n-Comprehensive search by pages. Owners can see details and photos of other items and choose which one to trade-in with." +
	"\n-Private content (files) is available only after transfer item ownership to new owner." +
	"\n-The winner is the owner with maximum number of trades in history OR acquiring highest value item." +
	"\n-👍Good luck in your trade-in process!"

func button(text string, token conversation.Token) conversation.Button {
	return conversation.Button{Text: text, Token: token}
}

var menuKeyboard = conversation.Keyboard{
	{button("✏️Update Item", conversation.TokenEdit), button("ℹ️Show Item", conversation.TokenShow)},
	{button("🔎Search & Trade", conversation.TokenSearch), button("⛓Trades History", conversation.TokenTrack)},
	{button("⏹Exit Conversation", conversation.TokenEnd)},
}

var editKeyboard = conversation.Keyboard{
	{button("❕Name", conversation.TokenName), button("❕Value", conversation.TokenValue)},
	{button("Description", conversation.TokenDescription), button("Other Category", conversation.TokenCategory)},
	{button("💾Save", conversation.TokenSave), button("🔙Back", conversation.TokenEnd)},
}

var backToMenuKeyboard = conversation.Keyboard{
	{button("🔙Back to main menu", conversation.TokenEnd)},
}

var directTradeKeyboard = conversation.Keyboard{
	{button("🛒Trade", conversation.TokenSave), button("🔙Back", conversation.TokenEnd)},
}

func menuMessage() conversation.Message {
	return conversation.Message{Text: textMenu, Keyboard: menuKeyboard}
}

func showKeyboard(hasFiles bool) conversation.Keyboard {
	row := []conversation.Button{button("🔙Back", conversation.TokenEnd)}
	if hasFiles {
		row = append([]conversation.Button{button("💾Download", conversation.TokenDownload)}, row...)
	}
	return conversation.Keyboard{row}
}

func pageKeyboard(hasPrev, hasNext bool) conversation.Keyboard {
	var row []conversation.Button
	if hasPrev {
		row = append(row, button("⬅️Prev page", conversation.TokenPrev))
	}
	if hasNext {
		row = append(row, button("➡️Next page", conversation.TokenNext))
	}
	row = append(row, button("🔙Back to main menu", conversation.TokenEnd))
	return conversation.Keyboard{row}
}

func cardKeyboard(n int) conversation.Keyboard {
	return conversation.Keyboard{{button(fmt.Sprintf(textTradeButton, n), conversation.TokenSave)}}
}

// fact is one "Key: value" line.
type fact struct {
	key, value string
}

func renderFacts(facts []fact) string {
	var b strings.Builder
	for _, f := range facts {
		if f.value == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(f.key)
		b.WriteString(": ")
		b.WriteString(f.value)
	}
	return b.String()
}

func categoryFacts(category map[string]string) []fact {
	var facts []fact
	for _, k := range slices.Sorted(maps.Keys(category)) {
		facts = append(facts, fact{k, category[k]})
	}
	return facts
}

// itemFacts lists the public fields of an item. Media is shown separately.
func itemFacts(it *store.Item) string {
	facts := []fact{
		{conversation.FieldName, it.Name},
		{conversation.FieldValue, it.Value},
		{conversation.FieldDescription, it.Description},
	}
	return renderFacts(append(facts, categoryFacts(it.Category)...))
}

// draftFacts lists what the edit flow has collected so far.
func draftFacts(d *conversation.Draft) string {
	var facts []fact
	if d.Name != nil {
		facts = append(facts, fact{conversation.FieldName, *d.Name})
	}
	if d.Value != nil {
		facts = append(facts, fact{conversation.FieldValue, *d.Value})
	}
	if d.Description != nil {
		facts = append(facts, fact{conversation.FieldDescription, *d.Description})
	}
	facts = append(facts, categoryFacts(d.Category)...)
	if n := len(d.Images); n > 0 {
		facts = append(facts, fact{"Images", fmt.Sprintf("%d attached", n)})
	}
	if n := len(d.Files); n > 0 {
		facts = append(facts, fact{"Files", fmt.Sprintf("%d attached", n)})
	}
	return renderFacts(facts)
}

// imageExtensions are document types kept as public images rather than private files.
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "bmp": true, "tiff": true,
}

func isImageName(fileName string) bool {
	i := strings.LastIndexByte(fileName, '.')
	if i < 0 {
		return false
	}
	return imageExtensions[strings.ToLower(fileName[i+1:])]
}
