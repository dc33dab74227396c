// ABOUTME: Tests for the Telegram adapter against a fake Bot API server
// ABOUTME: Covers outbound calls, error tolerance, media download, update conversion and delivery

package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tradein-gateway/internal/conversation"
)

const testToken = "123:secret"

type apiCall struct {
	method string
	form   map[string]string
}

// fakeAPI mimics the parts of the Bot API the adapter uses.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	nextID  int
	errors  map[string]string // method -> error description
	updates []tgbotapi.Update
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100, errors: make(map[string]string)}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		_, _ = w.Write([]byte("OggS-voice"))
		return
	}

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()
	form := make(map[string]string)
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	desc, failing := f.errors[method]
	f.nextID++
	id := f.nextID
	var pending []tgbotapi.Update
	if method == "getUpdates" {
		pending, f.updates = f.updates, nil
	}
	f.mu.Unlock()

	if failing {
		writeJSON(w, map[string]any{"ok": false, "error_code": 400, "description": desc})
		return
	}

	var result any
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Trade", "username": "TradeInBot"}
	case "sendMessage", "sendPhoto", "sendDocument":
		result = map[string]any{"message_id": id, "date": 0, "chat": map[string]any{"id": 42, "type": "private"}}
	case "getFile":
		result = map[string]any{"file_id": form["file_id"], "file_path": "voice/file_1.oga", "file_size": 10}
	case "getUpdates":
		if len(pending) == 0 {
			time.Sleep(10 * time.Millisecond)
			pending = []tgbotapi.Update{}
		}
		result = pending
	default:
		result = true
	}
	writeJSON(w, map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) fail(method, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = description
}

func (f *fakeAPI) queue(updates ...tgbotapi.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates...)
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	a, err := New(Options{
		Token:        testToken,
		APIEndpoint:  srv.URL + "/bot%s/%s",
		FileEndpoint: srv.URL + "/file/bot%s/%s",
		HTTPClient:   srv.Client(),
	}, nil)
	require.NoError(t, err)
	return a, api
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)
}

func TestAdapter_SendTextWithKeyboard(t *testing.T) {
	a, api := newTestAdapter(t)
	assert.Equal(t, "TradeInBot", a.Username())

	id, err := a.SendText(context.Background(), "42", conversation.Message{
		Text: "Choose",
		Keyboard: conversation.Keyboard{
			{{Text: "Edit", Token: conversation.TokenEdit}, {Text: "Show", Token: conversation.TokenShow}},
			{{Text: "Done", Token: conversation.TokenEnd}},
		},
		ReplyTo: 7,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	calls := api.callsTo("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].form["chat_id"])
	assert.Equal(t, "Choose", calls[0].form["text"])
	assert.Equal(t, "7", calls[0].form["reply_to_message_id"])

	var markup tgbotapi.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(calls[0].form["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "show", *markup.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "Done", markup.InlineKeyboard[1][0].Text)
}

func TestAdapter_SendTextRejectsBadChatID(t *testing.T) {
	a, _ := newTestAdapter(t)
	_, err := a.SendText(context.Background(), "not-a-chat", conversation.Message{Text: "x"})
	assert.Error(t, err)
}

func TestAdapter_SendMedia(t *testing.T) {
	a, api := newTestAdapter(t)
	ctx := context.Background()

	_, err := a.SendPhoto(ctx, "42", "photo-ref", "", 9)
	require.NoError(t, err)
	_, err = a.SendDocument(ctx, "42", "doc-ref", "manual.pdf")
	require.NoError(t, err)

	photos := api.callsTo("sendPhoto")
	require.Len(t, photos, 1)
	assert.Equal(t, "photo-ref", photos[0].form["photo"])
	assert.Equal(t, "9", photos[0].form["reply_to_message_id"])

	docs := api.callsTo("sendDocument")
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-ref", docs[0].form["document"])
	assert.Equal(t, "manual.pdf", docs[0].form["caption"])
}

func TestAdapter_EditToleratesNotModified(t *testing.T) {
	a, api := newTestAdapter(t)
	api.fail("editMessageText", "Bad Request: message is not modified: specified new message content is the same")

	err := a.EditText(context.Background(), "42", 5, conversation.Message{Text: "same"})
	assert.NoError(t, err)

	api.fail("editMessageText", "Bad Request: message can't be edited")
	err = a.EditText(context.Background(), "42", 5, conversation.Message{Text: "other"})
	assert.Error(t, err)
}

func TestAdapter_DeleteToleratesMissingMessage(t *testing.T) {
	a, api := newTestAdapter(t)
	api.fail("deleteMessage", "Bad Request: message to delete not found")
	assert.NoError(t, a.DeleteMessage(context.Background(), "42", 5))

	api.fail("deleteMessage", "Forbidden: bot was blocked by the user")
	assert.Error(t, a.DeleteMessage(context.Background(), "42", 5))
}

func TestAdapter_AnswerCallback(t *testing.T) {
	a, api := newTestAdapter(t)
	require.NoError(t, a.AnswerCallback(context.Background(), "cb-1"))

	calls := api.callsTo("answerCallbackQuery")
	require.Len(t, calls, 1)
	assert.Equal(t, "cb-1", calls[0].form["callback_query_id"])
}

func TestAdapter_Fetch(t *testing.T) {
	a, api := newTestAdapter(t)

	data, err := a.Fetch(context.Background(), "voice-ref")
	require.NoError(t, err)
	assert.Equal(t, "OggS-voice", string(data))
	require.Len(t, api.callsTo("getFile"), 1)
	assert.Equal(t, "voice-ref", api.callsTo("getFile")[0].form["file_id"])
}

func TestAdapter_Link(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, "https://t.me/TradeInBot?start=60e91064f508f554a10a3847", a.Link("60e91064f508f554a10a3847"))
}

func TestToEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user := &tgbotapi.User{ID: 7, FirstName: "Alice"}
	chat := &tgbotapi.Chat{ID: 100}

	t.Run("command with arguments", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
			MessageID: 3, From: user, Chat: chat, Date: int(now.Unix()),
			Text:     "/start 60e91064f508f554a10a3847",
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindCommand, ev.Kind)
		assert.Equal(t, "start", ev.Command)
		assert.Equal(t, []string{"60e91064f508f554a10a3847"}, ev.Args)
		assert.Equal(t, conversation.Key{ChatID: "100", UserID: "7"}, ev.Key())
		assert.Equal(t, "Alice", ev.FirstName)
		assert.Equal(t, now, ev.ReceivedAt)
	})

	t.Run("callback", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: "cb", From: user, Data: "next",
			Message: &tgbotapi.Message{MessageID: 9, Chat: chat, Text: "Page 1 of 3"},
		}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindCallback, ev.Kind)
		assert.Equal(t, conversation.TokenNext, ev.Token)
		assert.Equal(t, 9, ev.MessageID)
		assert.Equal(t, "Page 1 of 3", ev.MessageText)
		assert.Equal(t, "cb", ev.CallbackID)
	})

	t.Run("unknown callback data", func(t *testing.T) {
		_, ok := toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID: "cb", From: user, Data: "explode",
			Message: &tgbotapi.Message{MessageID: 9, Chat: chat},
		}}, now)
		assert.False(t, ok)
	})

	t.Run("largest photo", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
			From: user, Chat: chat, Caption: " bike ",
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 60},
				{FileID: "large", Width: 1280, Height: 853},
				{FileID: "medium", Width: 320, Height: 213},
			},
		}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindPhoto, ev.Kind)
		assert.Equal(t, "large", ev.FileRef)
		assert.Equal(t, "bike", ev.Text)
	})

	t.Run("document", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
			From: user, Chat: chat,
			Document: &tgbotapi.Document{FileID: "doc", FileName: "receipt.pdf"},
		}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindDocument, ev.Kind)
		assert.Equal(t, "receipt.pdf", ev.FileName)
	})

	t.Run("voice", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
			From: user, Chat: chat, Voice: &tgbotapi.Voice{FileID: "v"},
		}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindVoice, ev.Kind)
		assert.Equal(t, "v", ev.FileRef)
	})

	t.Run("text", func(t *testing.T) {
		ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "bike"}}, now)
		require.True(t, ok)
		assert.Equal(t, conversation.KindText, ev.Kind)
		assert.Equal(t, "bike", ev.Text)
	})

	t.Run("ignored", func(t *testing.T) {
		_, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Sticker: &tgbotapi.Sticker{FileID: "s"}}}, now)
		assert.False(t, ok)
		_, ok = toEvent(tgbotapi.Update{}, now)
		assert.False(t, ok)
	})
}

func TestRoutes_WebhookDeliversEvent(t *testing.T) {
	a, _ := newTestAdapter(t)

	got := make(chan *conversation.Event, 1)
	var wg sync.WaitGroup
	h := a.routes(context.Background(), "/hook", &wg, func(ctx context.Context, ev *conversation.Event) error {
		got <- ev
		return nil
	})

	body := `{"update_id":1,"message":{"message_id":2,"date":0,"from":{"id":7,"first_name":"Alice"},"chat":{"id":100,"type":"private"},"text":"hello"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	wg.Wait()
	select {
	case ev := <-got:
		assert.Equal(t, conversation.KindText, ev.Kind)
		assert.Equal(t, "hello", ev.Text)
	default:
		t.Fatal("no event delivered")
	}
}

func TestRoutes_HealthAndBadRequests(t *testing.T) {
	a, _ := newTestAdapter(t)
	var wg sync.WaitGroup
	h := a.routes(context.Background(), "/hook", &wg, func(context.Context, *conversation.Event) error { return nil })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPoll_DeliversUntilCanceled(t *testing.T) {
	a, api := newTestAdapter(t)
	api.queue(tgbotapi.Update{
		UpdateID: 11,
		Message: &tgbotapi.Message{
			MessageID: 2, From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 100}, Text: "hi",
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *conversation.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- a.Poll(ctx, time.Second, func(ctx context.Context, ev *conversation.Event) error {
			got <- ev
			return nil
		})
	}()

	select {
	case ev := <-got:
		assert.Equal(t, "hi", ev.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Poll did not return after cancel")
	}
	assert.NotEmpty(t, api.callsTo("deleteWebhook"))
}

func TestWebhookPath(t *testing.T) {
	for raw, want := range map[string]string{
		"https://bot.example.com":         "/telegram",
		"https://bot.example.com/":        "/telegram",
		"https://bot.example.com/tg/hook": "/tg/hook",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, webhookPath(u), fmt.Sprintf("path for %s", raw))
	}
}
