package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mia/config"
	"mia/models"
	"mia/services/booking"
	"mia/services/payment"
	"mia/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypePaymentReconcile = "payment:reconcile"

// Reconciler applies processor status to bookings.
type Reconciler interface {
	ReconcilePayment(ctx context.Context, externalSessionID string) (*booking.Reconciliation, error)
}

// RedisOpt returns the asynq connection for the queue database.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewReconcileTask builds the retry task for a checkout session. The task id
// is derived from the session so a session is queued at most once.
func NewReconcileTask(sessionID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(models.ReconcilePayload{SessionID: sessionID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypePaymentReconcile, b)
	opts := []asynq.Option{
		asynq.TaskID("reconcile:" + sessionID),
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(time.Hour),
	}
	return task, opts, nil
}

// Enqueuer is implemented by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReconcileQueue schedules retries of reconciliations that hit a transient failure.
type ReconcileQueue struct {
	client Enqueuer
}

func NewReconcileQueue(client Enqueuer) *ReconcileQueue {
	return &ReconcileQueue{client: client}
}

func (q *ReconcileQueue) Schedule(sessionID string) error {
	task, opts, err := NewReconcileTask(sessionID)
	if err != nil {
		return err
	}
	info, err := q.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue reconciliation for %s: %w", sessionID, err)
	}
	utils.GetLogger().Info("Reconciliation queued", zap.String("checkoutSession", sessionID), zap.String("taskID", info.ID))
	return nil
}

// InitReconcileWorker starts the queue worker in the background. The caller
// stops it with Shutdown on the returned server.
func InitReconcileWorker(reconciler Reconciler) *asynq.Server {
	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			Logger:   utils.GetLogger().Sugar(),
			LogLevel: asynq.WarnLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePaymentReconcile, handleReconcileTask(reconciler))

	go func() {
		logger := utils.GetLogger()
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Start(mux)
			if err == nil {
				logger.Info("Reconcile worker started")
				return
			}
			logger.Error("Failed to start reconcile worker",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("Reconcile worker disabled after repeated start failures")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func handleReconcileTask(reconciler Reconciler) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReconcilePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil || p.SessionID == "" {
			return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
		}

		res, err := reconciler.ReconcilePayment(ctx, p.SessionID)
		switch {
		case err == nil:
			utils.GetLogger().Info("Queued reconciliation applied",
				zap.String("checkoutSession", p.SessionID),
				zap.String("status", string(res.Settlement.Status)),
				zap.Bool("transitioned", res.Transitioned))
			return nil
		case errors.Is(err, payment.ErrUnknownSession), errors.Is(err, booking.ErrBookingNotFound):
			utils.GetLogger().Warn("Dropping reconciliation", zap.String("checkoutSession", p.SessionID), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
}
