package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/Gurkunwar/standupbot/internal/api"
	"github.com/Gurkunwar/standupbot/internal/bot"
	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/Gurkunwar/standupbot/internal/config"
	"github.com/Gurkunwar/standupbot/internal/database"
	"github.com/Gurkunwar/standupbot/internal/logging"
	"github.com/Gurkunwar/standupbot/internal/services"
	"github.com/Gurkunwar/standupbot/internal/store"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and run scheduled standups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return serve(cmd, cfg)
		},
	}
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb, err := store.InitRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	dg, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	gateway := bot.NewGateway(dg)
	definitions := &services.DefinitionRepo{DB: db}
	summarizer := &services.ReportSummarizer{
		History: &services.GormHistory{DB: db},
		Gateway: gateway,
		Logger:  logger,
	}
	standups := services.NewStandupService(definitions, store.NewCheckpoints(rdb, cfg.CheckpointTTL),
		gateway, summarizer, logger, standup.WithRetryPolicy(cfg.RetryPolicy()))

	handler := bot.NewBotHandler(standups, logger)
	dg.AddHandler(handler.OnInteraction)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer dg.Close()
	bot.RegisterCommands(dg, logger)

	if err := standups.Resume(ctx); err != nil {
		logger.Error("cannot resume standup runs", "error", err)
	}

	scheduler := services.NewScheduler(definitions, standups, logger)
	if err := scheduler.Reload(ctx); err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	logger.Info("🚀 standup bot is live", "http_addr", cfg.HTTPAddr)

	server := api.NewServer(standups, []byte(cfg.JWTSecret), logger)
	if err := server.Start(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
