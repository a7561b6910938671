package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/internal/llm"
	"github.com/graemedakers/decision-jar/internal/notify"
	"github.com/graemedakers/decision-jar/internal/tasks"
	"github.com/graemedakers/decision-jar/pkg/config"
	"github.com/graemedakers/decision-jar/pkg/crypto"
	"github.com/graemedakers/decision-jar/pkg/queue"
	"github.com/graemedakers/decision-jar/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

// reminderTickInterval is how often the worker sweeps for due reminders.
const reminderTickInterval = time.Minute

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)

	logger.Info("starting decision-jar worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Initialize encryptor for stored user API keys
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Client for the reminder tick loop
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	defer asynqClient.Close()

	// Create task handler
	billingService := billing.NewService(db)
	planner := ideas.NewPlanner(db, llm.NewClient(cfg.LLM), billingService, encryptor)
	handler := tasks.NewHandler(
		db,
		logger,
		jars.NewService(db, logger),
		planner,
		notify.NewSender(cfg.Push, logger),
		notify.NewDeviceService(db),
	)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	// Periodically enqueue the reminder sweep
	go func() {
		ticker := time.NewTicker(reminderTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := asynqClient.Enqueue(tasks.NewReminderTickTask(), asynq.Queue("low")); err != nil {
					logger.Error("failed to enqueue reminder tick", "error", err)
				}
			}
		}
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
