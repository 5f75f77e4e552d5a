// Package jobs runs best-effort follow-up delivery through an asynq
// queue when Redis is available. The queued notifier satisfies the same
// interface as the direct one, so the engine never knows which it got.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/preplens/preplens-api/notify"
	"github.com/preplens/preplens-api/utils"
)

const TypePushNotification = "notification:push"

type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

type notificationPayload struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewManager(redisURL string) *Manager {
	addr := strings.TrimPrefix(redisURL, "redis://")
	redisOpt := asynq.RedisClientOpt{
		Addr: addr,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: utils.GetEnvInt("JOB_CONCURRENCY", 10),
		Queues: map[string]int{
			"default": 3, // follow-up notifications
			"low":     1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			utils.LogError("Job failed: type=%s error=%v", task.Type(), err)
		}),
		Logger: &AsynqLogger{},
	})

	mux := asynq.NewServeMux()

	return &Manager{
		client: client,
		server: server,
		mux:    mux,
	}
}

func (m *Manager) RegisterHandlers(notifications *notify.Service) {
	m.mux.HandleFunc(TypePushNotification, m.handlePushNotification(notifications))
}

func (m *Manager) Start() error {
	utils.LogStartup("Starting job queue worker...")
	return m.server.Run(m.mux)
}

func (m *Manager) Stop() {
	utils.LogShutdown("Stopping job queue...")
	m.server.Stop()
	m.server.Shutdown()
	m.client.Close()
}

// Push enqueues a notification instead of writing it directly. It
// implements the engine's Notifier interface.
func (m *Manager) Push(ctx context.Context, userID, title, message, msgType string) error {
	payload := notificationPayload{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    msgType,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	task := asynq.NewTask(TypePushNotification, payloadBytes)
	opts := []asynq.Option{
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Second),
	}

	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification task: %w", err)
	}

	utils.LogInfo("Queued notification job: ID=%s user=%s type=%s", info.ID, userID, msgType)
	return nil
}

func (m *Manager) handlePushNotification(notifications *notify.Service) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload notificationPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal notification payload: %w", err)
		}

		utils.LogInfo("Processing notification job: user=%s type=%s", payload.UserID, payload.Type)

		if err := notifications.Push(ctx, payload.UserID, payload.Title, payload.Message, payload.Type); err != nil {
			return fmt.Errorf("failed to push %s notification to %s: %w", payload.Type, payload.UserID, err)
		}
		return nil
	}
}

// Custom logger that routes asynq output through the shared logging helpers
type AsynqLogger struct{}

func (l *AsynqLogger) Debug(args ...interface{}) {
	utils.LogDebug(fmt.Sprint(args...))
}

func (l *AsynqLogger) Info(args ...interface{}) {
	utils.LogInfo(fmt.Sprint(args...))
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}

func (l *AsynqLogger) Error(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	utils.LogError(fmt.Sprint(args...))
}
