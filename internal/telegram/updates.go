// ABOUTME: Converts Bot API updates into transport-neutral conversation events
// ABOUTME: Unsupported updates and unknown callback data are dropped

package telegram

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/tradein-gateway/internal/conversation"
)

// toEvent converts u. The second result is false for updates the bot ignores.
func toEvent(u tgbotapi.Update, now time.Time) (*conversation.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		return callbackEvent(cq, now)
	}
	if u.Message != nil {
		return messageEvent(u.Message)
	}
	return nil, false
}

func callbackEvent(cq *tgbotapi.CallbackQuery, now time.Time) (*conversation.Event, bool) {
	// Buttons on inline-mode messages carry no chat
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		return nil, false
	}
	token, ok := conversation.ParseToken(cq.Data)
	if !ok {
		return nil, false
	}
	return &conversation.Event{
		Kind:        conversation.KindCallback,
		ChatID:      formatID(cq.Message.Chat.ID),
		UserID:      formatID(cq.From.ID),
		FirstName:   cq.From.FirstName,
		MessageID:   cq.Message.MessageID,
		MessageText: cq.Message.Text,
		Token:       token,
		CallbackID:  cq.ID,
		ReceivedAt:  now.UTC(),
	}, true
}

func messageEvent(msg *tgbotapi.Message) (*conversation.Event, bool) {
	if msg.Chat == nil || msg.From == nil {
		return nil, false
	}
	ev := &conversation.Event{
		ChatID:     formatID(msg.Chat.ID),
		UserID:     formatID(msg.From.ID),
		FirstName:  msg.From.FirstName,
		MessageID:  msg.MessageID,
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}

	switch {
	case msg.IsCommand():
		ev.Kind = conversation.KindCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Args = strings.Fields(msg.CommandArguments())
	case len(msg.Photo) > 0:
		ev.Kind = conversation.KindPhoto
		ev.FileRef = largestPhoto(msg.Photo).FileID
		ev.Text = strings.TrimSpace(msg.Caption)
	case msg.Document != nil:
		ev.Kind = conversation.KindDocument
		ev.FileRef = msg.Document.FileID
		ev.FileName = msg.Document.FileName
		ev.Text = strings.TrimSpace(msg.Caption)
	case msg.Voice != nil:
		ev.Kind = conversation.KindVoice
		ev.FileRef = msg.Voice.FileID
	case strings.TrimSpace(msg.Text) != "":
		ev.Kind = conversation.KindText
		ev.Text = strings.TrimSpace(msg.Text)
	default:
		return nil, false
	}
	return ev, true
}

// largestPhoto picks the highest resolution of the sizes Telegram sends.
func largestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.Width*item.Height > best.Width*best.Height {
			best = item
			continue
		}
		if item.Width*item.Height == best.Width*best.Height && item.FileSize > best.FileSize {
			best = item
		}
	}
	return best
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
