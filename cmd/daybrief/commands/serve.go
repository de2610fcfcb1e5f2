package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/assistant"
	"github.com/jholhewres/daybrief/pkg/daybrief/channels"
	"github.com/jholhewres/daybrief/pkg/daybrief/channels/discord"
	"github.com/jholhewres/daybrief/pkg/daybrief/channels/telegram"
	"github.com/jholhewres/daybrief/pkg/daybrief/channels/twilio"
	"github.com/jholhewres/daybrief/pkg/daybrief/config"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/scheduler"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
	"github.com/jholhewres/daybrief/pkg/daybrief/web"
)

// newServeCmd creates the `daybrief serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant daemon",
		Long: `Start Daybrief as a daemon: connects the configured channels
(Telegram, Discord), serves the web dashboard and SMS webhook, and runs
the notification scheduler.

Examples:
  daybrief serve
  daybrief serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd, cfg)

	config.ResolveKeyringSecrets(cfg, logger)

	// ── State files ──
	tokenFile := store.NewFile(cfg.TokenPath())
	memoryFile := store.NewFile(cfg.MemoryPath())
	scheduleFile := store.NewFile(cfg.SchedulePath())

	// ── Outlook gateway ──
	auth := outlook.NewAuthenticator(
		cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.TenantID,
		cfg.RedirectURL(), tokenFile, logger,
	)
	// Day boundaries follow the schedule's timezone so "today" in a 9 PM
	// briefing still means the user's day, not the UTC one.
	bootSched := scheduler.Default()
	if _, err := scheduleFile.Load(&bootSched); err != nil {
		bootSched = scheduler.Default()
	}
	graph := outlook.NewClient(auth, logger, outlook.WithLocation(bootSched.Location()))

	// ── Assistant pipeline ──
	llm := assistant.NewLLMClient(assistant.LLMConfig{
		Provider:   cfg.AI.Provider,
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		APIVersion: cfg.AI.APIVersion,
	}, logger)
	assembler := assistant.NewContextAssembler(graph, logger)
	proc := assistant.NewProcessor(assembler, graph, llm, memoryFile, logger)
	router := assistant.NewRouter(proc, auth, logger)

	// ── Channels ──
	manager := channels.NewManager(router, logger)
	var targets []channels.NotifyTarget

	if cfg.Telegram.Token != "" {
		tg := telegram.New(telegram.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		}, logger)
		manager.Register(tg)
		targets = append(targets, tg)
		logger.Info("telegram channel registered")
	}

	if cfg.Discord.Token != "" {
		dc := discord.New(discord.Config{
			Token:     cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
		}, logger)
		manager.Register(dc)
		targets = append(targets, dc)
		logger.Info("discord channel registered")
	}

	// SMS is last in the notification order: the chat channels are free,
	// Twilio costs per message.
	sms := twilio.New(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		UserNumber: cfg.Twilio.UserNumber,
	}, logger)
	if sms.IsConfigured() {
		targets = append(targets, sms)
		logger.Info("sms delivery configured")
	}

	notifier := channels.NewNotifier(logger, targets...)

	// ── Scheduler ──
	sched := scheduler.New(scheduleFile, auth, proc, graph, graph, notifier, logger)

	// ── Web server ──
	webSrv := web.NewServer(web.Config{
		Address:           cfg.Web.Address,
		AuthToken:         cfg.Web.AuthToken,
		BaseURL:           cfg.BaseURL,
		UserNumber:        cfg.Twilio.UserNumber,
		ValidateSignature: cfg.Twilio.ValidateSignature,
	}, auth, router, proc, notifier, sms, sched, logger)

	// ── Start ──
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting channels: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	if err := webSrv.Start(); err != nil {
		return fmt.Errorf("starting web server: %w", err)
	}

	logger.Info("daybrief running, press Ctrl+C to stop",
		"name", cfg.Name,
		"address", cfg.Web.Address,
		"webhook", cfg.WebhookURL(),
	)
	if !auth.IsAuthenticated() {
		logger.Warn("microsoft not connected, visit the dashboard to sign in", "url", cfg.BaseURL+"/auth/signin")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		webSrv.Stop()
		sched.Stop()
		manager.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}
