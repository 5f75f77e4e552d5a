package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/preplens/preplens-api/activity"
	"github.com/preplens/preplens-api/bank"
	"github.com/preplens/preplens-api/engine"
	"github.com/preplens/preplens-api/handlers"
	"github.com/preplens/preplens-api/jobs"
	"github.com/preplens/preplens-api/mock"
	"github.com/preplens/preplens-api/notify"
	"github.com/preplens/preplens-api/store"
	"github.com/preplens/preplens-api/tasks"
	"github.com/preplens/preplens-api/utils"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	utils.LogStartup("PrepLens engine starting...")

	if err := godotenv.Load(); err != nil {
		utils.LogInfo("No .env file found, using environment variables")
	}

	port := utils.GetEnvOrDefault("PORT", "8044")
	backend := utils.GetEnvOrDefault("STORE_BACKEND", "local")
	redisURL := utils.GetEnvOrDefault("REDIS_URL", "")

	questionBank, err := bank.Load()
	if err != nil {
		log.Fatalf("[FATAL] Failed to load question bank: %v", err)
	}
	utils.LogStartup("Question bank loaded: %d questions", questionBank.Size())

	var documents store.Store
	switch backend {
	case "redis":
		if redisURL == "" {
			log.Fatalf("[FATAL] STORE_BACKEND=redis requires REDIS_URL")
		}
		utils.LogStartup("Connecting to redis store at %s...", redisURL)
		remote, err := store.OpenRedis(redisURL)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open redis store: %v", err)
		}
		defer remote.Close()
		documents = remote
	case "local":
		path := utils.GetEnvOrDefault("STORE_PATH", "./preplens.db")
		utils.LogStartup("Opening local store at %s...", path)
		local, err := store.OpenLocal(path)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open local store: %v", err)
		}
		defer local.Close()
		documents = local
	default:
		log.Fatalf("[FATAL] Unknown STORE_BACKEND %q (want local or redis)", backend)
	}

	notifications := notify.NewService(documents)
	taskService := tasks.NewService(documents)
	activities := activity.NewService(documents)
	mocks := mock.NewService(documents)

	// Engine notifications go through the job queue when redis is
	// around; otherwise they are written directly.
	var notifier engine.Notifier = notifications
	var jobManager *jobs.Manager
	if redisURL != "" {
		jobManager = jobs.NewManager(redisURL)
		jobManager.RegisterHandlers(notifications)
		go func() {
			if err := jobManager.Start(); err != nil {
				utils.LogError("Job queue stopped: %v", err)
			}
		}()
		notifier = jobManager
	}

	assessments := engine.New(documents, questionBank, notifier, taskService)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		utils.LogShutdown("Received shutdown signal...")
		if jobManager != nil {
			jobManager.Stop()
		}
		if closer, ok := documents.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				utils.LogError("Closing store: %v", err)
			}
		}
		os.Exit(0)
	}()

	utils.LogStartup("Setting up API routes...")
	router := handlers.NewRouter(assessments, activities, mocks, notifications, taskService)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	utils.LogStartup("Starting HTTP server on port %s...", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[FATAL] Server failed to start: %v", err)
	}
}
