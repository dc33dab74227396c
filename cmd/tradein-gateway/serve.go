// ABOUTME: The serve subcommand: wires store, sessions, trade engine and Telegram transport
// ABOUTME: Runs the update loop and the cron-scheduled session sweep under one errgroup

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/2389/tradein-gateway/internal/config"
	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/flow"
	"github.com/2389/tradein-gateway/internal/session"
	"github.com/2389/tradein-gateway/internal/store"
	"github.com/2389/tradein-gateway/internal/telegram"
	"github.com/2389/tradein-gateway/internal/trade"
	"github.com/2389/tradein-gateway/internal/transcribe"
)

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Updates:   %s", cfg.Telegram.Mode)
	if cfg.Telegram.Mode == config.ModeWebhook {
		gray.Printf(" (%s on %s)", cfg.Telegram.WebhookURL, cfg.Telegram.ListenAddr)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Print("Voice:     ")
	if cfg.Transcriber.Enabled {
		cyan.Println("enabled")
	} else {
		yellow.Println("disabled")
	}
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	bot, err := telegram.New(telegram.Options{
		Token: cfg.Telegram.Token,
		Debug: cfg.Telegram.Debug,
	}, logger)
	if err != nil {
		return err
	}

	sessions := session.NewManager(st, session.Options{
		TTL:        cfg.Sessions.TTL,
		MaxEntries: cfg.Sessions.MaxEntries,
		Notifier:   bot,
	}, logger)
	defer sessions.Close()

	var voice transcribe.Transcriber = transcribe.Nop{}
	if cfg.Transcriber.Enabled {
		voice = transcribe.NewOpenAI(transcribe.Config{
			APIKey:   cfg.Transcriber.APIKey,
			BaseURL:  cfg.Transcriber.BaseURL,
			Model:    cfg.Transcriber.Model,
			Language: cfg.Transcriber.Language,
		}, logger)
	}

	handlers := flow.New(st, trade.NewEngine(st, logger), voice, flow.Options{
		BotName:  "@" + bot.Username(),
		PageSize: cfg.Trading.PageSize,
	}, logger)
	dispatcher := conversation.NewDispatcher(handlers.Router(), sessions, bot, logger)

	logger.Info("starting tradein-gateway",
		"config", configPath,
		"bot", bot.Username(),
		"mode", cfg.Telegram.Mode,
		"session_ttl", cfg.Sessions.TTL,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if cfg.Telegram.Mode == config.ModeWebhook {
			return bot.Serve(gctx, cfg.Telegram.ListenAddr, cfg.Telegram.WebhookURL, dispatcher.Dispatch)
		}
		return bot.Poll(gctx, cfg.Telegram.PollTimeout, dispatcher.Dispatch)
	})

	g.Go(func() error {
		return runSweeper(gctx, cfg.Sessions.SweepSchedule, sessions, logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("tradein-gateway stopped")
	return nil
}

// runSweeper deletes expired sessions on schedule until ctx is canceled.
func runSweeper(ctx context.Context, schedule string, sessions *session.Manager, logger *slog.Logger) error {
	logger = logger.With("component", "sweeper")

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := sessions.Sweep(ctx)
		if err != nil {
			logger.Error("session sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("expired sessions removed", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
