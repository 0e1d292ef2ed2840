package worker

import (
	"context"
	"time"

	"github.com/medivisit/telehealth-api/internal/repository"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

// ExpiryWorker cancels available slots whose scheduled time has passed
// without ever being booked. Booked and closed appointments are never
// touched.
type ExpiryWorker struct {
	repo     repository.AppointmentRepository
	interval time.Duration
	logger   *logger.Logger
}

func NewExpiryWorker(repo repository.AppointmentRepository, interval time.Duration, l *logger.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		repo:     repo,
		interval: interval,
		logger:   l.WithComponent("expiry-worker"),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.repo.CancelStaleAvailable(ctx, time.Now())
	if err != nil {
		w.logger.Error(err, "failed to cancel stale appointments")
		return
	}
	if n > 0 {
		w.logger.WithFields(map[string]interface{}{"cancelled": n}).Info("expired unbooked appointments")
	}
}
