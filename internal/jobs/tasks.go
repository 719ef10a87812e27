package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const TypeReleaseStaleReservations = "reservations:release_stale"

type ReleaseStalePayload struct {
	OlderThanSeconds int64 `json:"older_than_seconds"`
}

func NewReleaseStaleTask(olderThan time.Duration) (*asynq.Task, error) {
	b, err := json.Marshal(ReleaseStalePayload{OlderThanSeconds: int64(olderThan / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReleaseStaleReservations, b, asynq.MaxRetry(1), asynq.Timeout(time.Minute)), nil
}

type ReservationReleaser interface {
	ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Handlers struct {
	Releaser ReservationReleaser
}

func (h *Handlers) HandleReleaseStale(ctx context.Context, t *asynq.Task) error {
	var p ReleaseStalePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if p.OlderThanSeconds <= 0 {
		return fmt.Errorf("%w: older_than_seconds must be positive", asynq.SkipRetry)
	}

	n, err := h.Releaser.ReleaseStaleReservations(ctx, time.Duration(p.OlderThanSeconds)*time.Second)
	if err != nil {
		return err
	}
	slog.Debug("stale reservation sweep", "released", n)
	return nil
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReleaseStaleReservations, h.HandleReleaseStale)
}

// Schedule registers the periodic sweep on scheduler.
func Schedule(scheduler *asynq.Scheduler, cronExpr string, ttl time.Duration) error {
	task, err := NewReleaseStaleTask(ttl)
	if err != nil {
		return err
	}
	if _, err := scheduler.Register(cronExpr, task); err != nil {
		return fmt.Errorf("register %s: %w", TypeReleaseStaleReservations, err)
	}
	return nil
}
