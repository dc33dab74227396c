// ABOUTME: Inbound update delivery by long polling or by webhook
// ABOUTME: Each update is dispatched on its own goroutine; the session layer serializes per participant

package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"

	"github.com/2389/tradein-gateway/internal/conversation"
)

// Handler processes one inbound event. *conversation.Dispatcher.Dispatch fits.
type Handler func(ctx context.Context, ev *conversation.Event) error

// Poll long-polls for updates until ctx is canceled, then waits for
// in-flight handlers to finish.
func (a *Adapter) Poll(ctx context.Context, timeout time.Duration, handle Handler) error {
	// A registered webhook makes getUpdates fail
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("removing webhook: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(timeout / time.Second)
	updates := a.bot.GetUpdatesChan(cfg)

	a.logger.Info("polling for updates", "timeout", timeout)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit
			go func() {
				for range updates {
				}
			}()
			return nil
		case u, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			a.deliver(ctx, &wg, u, handle)
		}
	}
}

// Serve registers webhookURL with Telegram and serves updates on addr until
// ctx is canceled. The webhook path is taken from webhookURL.
func (a *Adapter) Serve(ctx context.Context, addr, webhookURL string, handle Handler) error {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("parsing webhook url: %w", err)
	}
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("building webhook: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}

	var wg sync.WaitGroup
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(ctx, webhookPath(u), &wg, handle),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on webhook address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("webhook server listening", "addr", ln.Addr().String(), "path", webhookPath(u))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// routes builds the webhook router: Telegram posts updates to path, and
// /healthz answers liveness checks.
func (a *Adapter) routes(ctx context.Context, path string, wg *sync.WaitGroup, handle Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		u, err := a.bot.HandleUpdate(req)
		if err != nil {
			a.logger.Warn("bad webhook request", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		// Acknowledge at once; Telegram retries slow webhooks
		w.WriteHeader(http.StatusOK)
		a.deliver(ctx, wg, *u, handle)
	}).Methods(http.MethodPost)
	return r
}

func (a *Adapter) deliver(ctx context.Context, wg *sync.WaitGroup, u tgbotapi.Update, handle Handler) {
	ev, ok := toEvent(u, time.Now())
	if !ok {
		a.logger.Debug("ignoring update", "update_id", u.UpdateID)
		return
	}
	a.logger.Debug("inbound event",
		"kind", ev.Kind.String(),
		"chat", ev.ChatID,
		"user", ev.UserID,
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := handle(ctx, ev); err != nil {
			a.logger.Error("handling event failed", "kind", ev.Kind.String(), "chat", ev.ChatID, "error", err)
		}
	}()
}

func webhookPath(u *url.URL) string {
	if u.Path == "" || u.Path == "/" {
		return "/telegram"
	}
	return u.Path
}
