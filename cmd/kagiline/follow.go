package main

import (
	"context"
	"time"

	"github.com/raykavin/kagiline"
	"github.com/raykavin/kagiline/internal/config"
	"github.com/raykavin/kagiline/pkg/notification"
	"github.com/raykavin/kagiline/pkg/plot"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/spf13/cobra"
)

func buildFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Restore charts and keep them updated with live bars",
		RunE:  runFollow,
	}
}

func runFollow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	feeder, err := initializeFeeder(ctx, cfg, log)
	if err != nil {
		return err
	}

	reversal, err := cfg.Reversal()
	if err != nil {
		return err
	}

	db, err := storage.FromFile(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	options := []kagiline.Option{kagiline.WithStorage(db), kagiline.WithLogger(log)}
	if cfg.Feed.Source == config.SourceCSV {
		options = append(options, kagiline.WithSync())
	}
	if cfg.Mail.Enabled {
		options = append(options, kagiline.WithNotifier(notification.NewMail(notification.MailParams{
			SMTPServerAddress: cfg.Mail.Host,
			SMTPServerPort:    cfg.Mail.Port,
			From:              cfg.Mail.From,
			To:                cfg.Mail.To,
			Password:          cfg.Mail.Password,
		})))
	}

	tracker, err := kagiline.NewTracker(kagiline.Settings{
		Pairs:     cfg.Chart.Pairs,
		Timeframe: cfg.Chart.Timeframe,
		Reversal:  reversal,
		History:   cfg.Chart.History,
		Lookback:  cfg.Chart.Lookback,
	}, feeder, options...)
	if err != nil {
		return err
	}

	if cfg.Telegram.Enabled {
		telegram, err := notification.NewTelegram(notification.TelegramSettings{
			Token: cfg.Telegram.Token,
			Users: cfg.Telegram.Users,
		}, notification.WithStatus(tracker.Status))
		if err != nil {
			return err
		}
		tracker.AddNotifier(telegram)
	}

	if cfg.Plot.Enabled {
		chart, err := plot.NewChart(log, plot.WithPort(cfg.Plot.Port))
		if err != nil {
			return err
		}
		tracker.Subscribe(chart.OnEvent)

		go func() {
			if err := chart.Start(); err != nil {
				log.WithError(err).Error("chart server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := chart.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("chart server shutdown")
			}
		}()
	}

	if err := tracker.Run(ctx); err != nil {
		return err
	}
	log.Info(tracker.Status())
	return nil
}
