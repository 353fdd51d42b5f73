package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord_assistant_bot/internal/config"
	"discord_assistant_bot/internal/discord"
	"discord_assistant_bot/internal/feature/autoresponder"
	"discord_assistant_bot/internal/feature/economy"
	"discord_assistant_bot/internal/feature/payroll"
	"discord_assistant_bot/internal/feature/support"
	"discord_assistant_bot/internal/health"
	"discord_assistant_bot/internal/logging"
	"discord_assistant_bot/internal/storage"
)

const (
	// dbConnectTimeout covers the full retry budget of the connection
	// manager: three attempts with five-second backoffs plus headroom.
	dbConnectTimeout       = 60 * time.Second
	discordShutdownTimeout = 10 * time.Second
	healthShutdownTimeout  = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":   "startup",
		"db_name": cfg.DBName,
	}).Info("configuration loaded")

	manager := storage.NewManager(cfg, logger)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), dbConnectTimeout)
	err = manager.Initialize(connectCtx)
	cancelConnect()
	if err != nil {
		logger.WithError(err).Error("database connection error")
		fmt.Fprintf(os.Stderr, "database connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "db_ready").Info("database connected and schema ensured")

	ledger := storage.NewLedgerStore(manager, cfg.StartingGrant, logger)
	fines := storage.NewFineStore(manager, logger)
	rolePayments := storage.NewRolePaymentStore(manager, logger)
	tickets := storage.NewSupportTicketStore(manager, logger)
	autoResponses := storage.NewAutoResponseStore(manager, logger)
	stats := storage.NewStatsProvider(manager)

	economyService := economy.NewService(manager, ledger, fines, logger)
	responder := autoresponder.NewResponder(autoResponses, logger)

	client, err := discord.NewClient(cfg, logger,
		discord.WithEconomy(economyService),
		discord.WithResponder(responder),
		discord.WithRolePayments(rolePayments),
	)
	if err != nil {
		logger.WithError(err).Error("discord client setup error")
		fmt.Fprintf(os.Stderr, "discord client setup error: %v\n", err)
		os.Exit(1)
	}

	platform := discord.NewPlatformAdapter(client.Session(), logger)
	supportService := support.NewService(tickets, platform, platform, platform, logger)
	client.Configure(discord.WithSupport(supportService))

	scheduler := payroll.NewScheduler(rolePayments, ledger, platform, logger)

	healthServer := health.NewServer(cfg.HTTPPort, manager, stats, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	logger.WithField("event", "discord_ready").Info("discord client initialized")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(context.Background())

	go scheduler.Run(runCtx)

	discordDone := make(chan struct{})
	go func() {
		if err := client.Start(runCtx); err != nil {
			logger.WithError(err).Error("discord client error")
		}
		close(discordDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case <-discordDone:
		logger.WithField("event", "discord_stopped_early").Warn("discord client stopped before shutdown signal")
	}

	cancelRun()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), discordShutdownTimeout)
	select {
	case <-discordDone:
	case <-waitCtx.Done():
		logger.WithField("event", "discord_shutdown_timeout").Warn("timed out waiting for discord client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	if err := manager.Close(); err != nil {
		logger.WithError(err).Error("database close error")
	} else {
		logger.WithField("event", "db_closed").Info("database handle closed")
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
