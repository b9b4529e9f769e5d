package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dchurch/fridge/internal/backup"
	"github.com/dchurch/fridge/internal/database"
	"github.com/dchurch/fridge/internal/email"
	"github.com/dchurch/fridge/internal/logging"
	"github.com/dchurch/fridge/internal/nutrition"
	"github.com/dchurch/fridge/internal/server"
	"github.com/dchurch/fridge/internal/store"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("FRIDGE_LOG_LEVEL"))

	port := envDefault("FRIDGE_PORT", "8080")
	dbPath := envDefault("FRIDGE_DB_PATH", "fridge.db")
	baseURL := envDefault("FRIDGE_BASE_URL", "http://localhost:"+port)

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("RESEND_API_KEY"),
		envDefault("SENDER_EMAIL", "noreply@localhost"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("RESEND_API_KEY not set, outgoing email disabled")
	}

	estimator := nutrition.NewClient(nutrition.Config{
		Provider:     os.Getenv("AI_PROVIDER"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
	})
	if !estimator.Configured() {
		logger.Warn("no AI provider key set, nutrition estimation disabled")
	}

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("BACKUP_S3_BUCKET"),
			Region:    envDefault("BACKUP_S3_REGION", "auto"),
			AccessKey: os.Getenv("BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("BACKUP_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("BACKUP_PASSPHRASE"),
		ScheduleHour:  envInt("BACKUP_SCHEDULE_HOUR", 3),
		RetentionDays: envInt("BACKUP_RETENTION_DAYS", 30),
	}, db, store.NewBackupStore(db), logger)

	srv := server.New(db, emailClient, estimator, backupMgr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// cleanupLoop expires stale tokens, sessions, and rate-limit entries once
// an hour.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
			if _, err := srv.VerificationStore().DeleteExpired(); err != nil {
				logger.Error("verification token cleanup", "error", err)
			}
			if _, err := srv.InvitationStore().ExpireOverdue(); err != nil {
				logger.Error("invitation cleanup", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
