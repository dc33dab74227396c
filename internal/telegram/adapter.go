// ABOUTME: Telegram Bot API adapter implementing conversation.Notifier
// ABOUTME: Sends, edits and deletes messages, answers callbacks and downloads media by file id

package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/tradein-gateway/internal/conversation"
)

// maxDownloadBytes bounds media fetched for transcription.
const maxDownloadBytes = 20 << 20

// Options configure the adapter.
type Options struct {
	Token string
	// APIEndpoint and FileEndpoint override the Bot API locations, mainly for tests.
	APIEndpoint  string
	FileEndpoint string
	HTTPClient   *http.Client
	Debug        bool
}

// Adapter talks to the Bot API on behalf of the conversation engine.
type Adapter struct {
	bot          *tgbotapi.BotAPI
	token        string
	fileEndpoint string
	client       *http.Client
	logger       *slog.Logger
}

// New connects to the Bot API and verifies the token.
func New(opts Options, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = tgbotapi.APIEndpoint
	}
	if opts.FileEndpoint == "" {
		opts.FileEndpoint = tgbotapi.FileEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	logger = logger.With("component", "telegram")
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	bot.Debug = opts.Debug

	logger.Info("authorized", "bot", bot.Self.UserName)
	return &Adapter{
		bot:          bot,
		token:        opts.Token,
		fileEndpoint: opts.FileEndpoint,
		client:       opts.HTTPClient,
		logger:       logger,
	}, nil
}

// Username returns the bot's @-less username.
func (a *Adapter) Username() string {
	return a.bot.Self.UserName
}

// SendText sends msg with its inline keyboard.
func (a *Adapter) SendText(ctx context.Context, chatID string, msg conversation.Message) (int, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}
	out := tgbotapi.NewMessage(id, msg.Text)
	out.ReplyToMessageID = msg.ReplyTo
	if len(msg.Keyboard) > 0 {
		out.ReplyMarkup = inlineKeyboard(msg.Keyboard)
	}
	sent, err := a.bot.Send(out)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}
	return sent.MessageID, nil
}

// SendPhoto re-sends a stored photo, optionally as a reply.
func (a *Adapter) SendPhoto(ctx context.Context, chatID, fileRef, caption string, replyTo int) (int, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileID(fileRef))
	photo.Caption = caption
	photo.ReplyToMessageID = replyTo
	sent, err := a.bot.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("sending photo: %w", err)
	}
	return sent.MessageID, nil
}

// SendDocument re-sends a stored document.
func (a *Adapter) SendDocument(ctx context.Context, chatID, fileRef, caption string) (int, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}
	doc := tgbotapi.NewDocument(id, tgbotapi.FileID(fileRef))
	doc.Caption = caption
	sent, err := a.bot.Send(doc)
	if err != nil {
		return 0, fmt.Errorf("sending document: %w", err)
	}
	return sent.MessageID, nil
}

// EditText replaces a message's text and keyboard. Telegram rejects edits
// that change nothing; those count as success.
func (a *Adapter) EditText(ctx context.Context, chatID string, messageID int, msg conversation.Message) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(id, messageID, msg.Text)
	if len(msg.Keyboard) > 0 {
		markup := inlineKeyboard(msg.Keyboard)
		edit.ReplyMarkup = &markup
	}
	if _, err := a.bot.Request(edit); err != nil {
		if isAPIError(err, "message is not modified") {
			return nil
		}
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message. Messages that are already gone are ignored.
func (a *Adapter) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(id, messageID)); err != nil {
		if isAPIError(err, "message to delete not found") {
			return nil
		}
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// AnswerCallback stops the client's loading indicator on a pressed button.
func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string) error {
	if _, err := a.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// Fetch downloads the file behind a Telegram file id.
func (a *Adapter) Fetch(ctx context.Context, fileRef string) ([]byte, error) {
	file, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: fileRef})
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}
	if file.FileSize > maxDownloadBytes {
		return nil, fmt.Errorf("file too large: %d bytes", file.FileSize)
	}

	link := fmt.Sprintf(a.fileEndpoint, a.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Link returns a t.me deep link that starts the bot with payload.
func (a *Adapter) Link(payload string) string {
	return "https://t.me/" + a.bot.Self.UserName + "?start=" + url.QueryEscape(payload)
}

func inlineKeyboard(kb conversation.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, string(b.Token)))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}

// isAPIError reports whether err is a Bot API error whose description contains fragment.
func isAPIError(err error, fragment string) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, fragment)
	}
	var apiVal tgbotapi.Error
	if errors.As(err, &apiVal) {
		return strings.Contains(apiVal.Message, fragment)
	}
	return false
}

// slogBotLogger routes the client library's logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

var _ conversation.Notifier = (*Adapter)(nil)
