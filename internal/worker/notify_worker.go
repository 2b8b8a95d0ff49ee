package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"homeserve/internal/database"
	"homeserve/internal/domain"
	"homeserve/internal/metrics"
	"homeserve/internal/models"
	"homeserve/internal/notify"

	"github.com/redis/go-redis/v9"
)

const (
	TaskCompletionCode = "completion_code"
	TaskStatusUpdate   = "status_update"
)

// notifyTaskPayload is persisted in NotificationTask.Payload as JSON.
// The text is rendered at enqueue time so the worker stays transport-only.
type notifyTaskPayload struct {
	Contact *models.Contact `json:"contact"`
	Text    string          `json:"text"`
}

// NotifyWorker drains the notification outbox and delivers through a Sender.
// Enqueue persists first, then schedules via redis or the in-memory queue;
// the DB poll catches anything both faster paths lost.
type NotifyWorker struct {
	db            *database.DB
	sender        domain.Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *log.Logger
}

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(db *database.DB, sender domain.Sender, redisClient *redis.Client, retry RetryPolicy, logger *log.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		logger = log.Default()
	}

	return &NotifyWorker{
		db:            db,
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueCompletionCode schedules delivery of a freshly issued completion code.
func (w *NotifyWorker) EnqueueCompletionCode(ctx context.Context, booking *models.Booking, contact *models.Contact, code string) error {
	return w.enqueue(ctx, TaskCompletionCode, booking.BookingID, contact, notify.RenderCompletionCode(booking, code))
}

// EnqueueStatusUpdate schedules a customer-facing status message.
func (w *NotifyWorker) EnqueueStatusUpdate(ctx context.Context, booking *models.Booking, contact *models.Contact) error {
	return w.enqueue(ctx, TaskStatusUpdate, booking.BookingID, contact, notify.RenderStatusUpdate(booking))
}

func (w *NotifyWorker) enqueue(ctx context.Context, taskType, bookingID string, contact *models.Contact, text string) error {
	if contact == nil {
		return errors.New("contact is required")
	}

	payloadBytes, err := json.Marshal(notifyTaskPayload{Contact: contact, Text: text})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Printf("notify_worker: redis push failed, fallback to memory queue: %v", err)
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Printf("notify_worker: in-memory queue full, task %d dropped to polling", task.ID)
	}

	return nil
}

// Start launches main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Printf("notify_worker: started")
	defer w.logger.Printf("notify_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Printf("notify_worker: fetch pending: %v", err)
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.NotificationTask{}, false
		}
		w.logger.Printf("notify_worker: redis BRPOP error: %v", err)
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Printf("notify_worker: decode redis task: %v", err)
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	var payload notifyTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}
	if payload.Contact == nil || payload.Text == "" {
		w.failTask(ctx, task, errors.New("contact or text missing"))
		return
	}

	if err := w.sender.SendMessage(ctx, payload.Contact, payload.Text); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.TaskType, "ok")
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Printf("notify_worker: mark completed %d: %v", task.ID, err)
	}
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		metrics.IncNotification(task.TaskType, "failed")
		if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Printf("notify_worker: mark failed %d: %v", task.ID, err)
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	metrics.IncNotification(task.TaskType, "retry")
	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Printf("notify_worker: mark retry %d: %v", task.ID, err)
	}
}

func (w *NotifyWorker) failTask(ctx context.Context, task *models.NotificationTask, err error) {
	metrics.IncNotification(task.TaskType, "failed")
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "failed", err.Error(), nil); err != nil {
		w.logger.Printf("notify_worker: mark failed %d: %v", task.ID, err)
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Printf("notify_worker: encode deadletter %d: %v", task.ID, err)
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Printf("notify_worker: deadletter push %d: %v", task.ID, err)
	}
}
