package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/telunas/sshwatch/internal/config"
	"github.com/telunas/sshwatch/internal/server"
	"github.com/telunas/sshwatch/internal/version"
	"github.com/telunas/sshwatch/pkg/gemini"
	"github.com/telunas/sshwatch/pkg/monitor"
	"github.com/telunas/sshwatch/pkg/notify"
	"github.com/telunas/sshwatch/pkg/tailer"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	// A local .env is optional; the environment wins either way.
	_ = godotenv.Load()

	cfg := config.Default()
	log.WithFields(logrus.Fields{
		"version":  version.Version,
		"log_path": cfg.LogPath,
	}).Info("Starting sshwatch")

	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, notifications will carry a placeholder instead of AI analysis")
	}
	if cfg.FonnteToken == "" || cfg.FonnteDeviceNo == "" {
		log.Warn("FONNTE_TOKEN/FONNTE_DEVICE_NO not set, notifications will be logged and dropped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	source := tailer.New(tailer.Config{
		Path:         cfg.LogPath,
		PollInterval: cfg.PollInterval,
	}, log)

	enricher := gemini.NewClient(gemini.Config{
		APIKey:   cfg.GeminiAPIKey,
		Endpoint: cfg.GeminiAPIURL,
	}, log)

	notifier := notify.NewClient(notify.Config{
		API:      cfg.FonnteAPI,
		Token:    cfg.FonnteToken,
		DeviceNo: cfg.FonnteDeviceNo,
	}, log)

	mon := monitor.New(monitor.Config{
		WindowMinutes:     cfg.WindowMinutes,
		ThresholdAttempts: cfg.ThresholdAttempts,
		NotifyOnSuccess:   cfg.NotifyOnSuccess,
		SuccessCooldown:   cfg.SuccessCooldown,
		SweepInterval:     cfg.SweepInterval,
	}, source, enricher, notifier, log)

	srv := server.New(cfg.HTTPAddr, mon, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Status server error")
		}
	}()

	go func() {
		if err := mon.Run(ctx); err != nil {
			log.WithError(err).Error("Monitor error")
		}
		cancel()
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}

	log.Info("sshwatch shutdown complete")
}
