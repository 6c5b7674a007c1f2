package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	bankRepository "github.com/happyfeetx/kiosk/bank/repository"
	birthdayRepository "github.com/happyfeetx/kiosk/birthday/repository"
	"github.com/happyfeetx/kiosk/config"
	"github.com/happyfeetx/kiosk/core/database"
	guildApplication "github.com/happyfeetx/kiosk/guild/application"
	guildRepository "github.com/happyfeetx/kiosk/guild/repository"
	schedulerRepository "github.com/happyfeetx/kiosk/scheduler/repository"
	"github.com/happyfeetx/kiosk/shard"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func run() error {
	cfg, err := config.Load(configDir)
	if err != nil {
		if config.IsNotFound(err) {
			path, werr := config.WriteDefault(configDir)
			if werr != nil {
				return werr
			}
			fmt.Printf("A new configuration file has been created at %s.\n", path)
			fmt.Println("Please fill it in with appropriate values and re-run the program.")
			os.Exit(1)
		}
		return err
	}

	setupLogging(cfg)

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guildRepo := guildRepository.NewGuildGormRepository(db)
	taskRepo := schedulerRepository.NewTaskGormRepository(db)
	bankRepo := bankRepository.NewBankGormRepository(db)
	birthdayRepo := birthdayRepository.NewBirthdayGormRepository(db)
	for _, init := range []interface {
		Init(context.Context) error
	}{guildRepo, taskRepo, bankRepo, birthdayRepo} {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	state := guildApplication.NewState(guildRepo)
	manager := shard.NewManager(cfg, state, taskRepo, birthdayRepo)

	if err := manager.Start(ctx); err != nil {
		return err
	}
	logrus.WithField("shards", cfg.ShardCount).Info("kiosk is running")

	<-ctx.Done()
	logrus.Info("shutdown signal received")
	manager.Stop()
	return nil
}

func setupLogging(cfg *config.Settings) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.LogToFile && cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.WithError(err).Warn("log file unavailable, logging to stderr")
			return
		}
		logrus.SetOutput(f)
	}
}
