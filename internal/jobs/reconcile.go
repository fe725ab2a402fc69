package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Spok95/stock-bot/internal/domain/journal"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
)

type PendingStore interface {
	ListPending(ctx context.Context, since time.Time) ([]journal.Entry, error)
	UpdateState(ctx context.Context, id uuid.UUID, status journal.Status, state string) error
}

type Verifier interface {
	Verify(ctx context.Context, pickingID int64, maxAttempts int, delay time.Duration) transfers.VerifyResult
}

type Metrics interface {
	ObserveReconcile(result string)
}

// Reconciler дочитывает состояние операций, которые остались pending после проверки.
type Reconciler struct {
	store    PendingStore
	verifier Verifier
	metrics  Metrics
	clock    clockwork.Clock
	lookback time.Duration
	log      *slog.Logger
}

func NewReconciler(store PendingStore, v Verifier, m Metrics, clock clockwork.Clock, lookback time.Duration, log *slog.Logger) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, verifier: v, metrics: m, clock: clock, lookback: lookback, log: log}
}

// Summary — итог одного прохода.
type Summary struct {
	Checked  int
	Done     int
	Failed   int
	Pending  int
	ReadErrs int
}

// RunOnce проверяет каждую pending-операцию одним чтением без пауз.
// done переводит запись в done, cancel в failed; остальное остаётся pending.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	since := r.clock.Now().Add(-r.lookback)
	entries, err := r.store.ListPending(ctx, since)
	if err != nil {
		return sum, fmt.Errorf("list pending operations: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		sum.Checked++
		vr := r.verifier.Verify(ctx, e.PickingID, 1, 0)

		var status journal.Status
		switch {
		case vr.Success:
			status = journal.StatusDone
			sum.Done++
		case vr.State == stock.StateCancel:
			status = journal.StatusFailed
			sum.Failed++
		case vr.State == stock.StateError:
			sum.ReadErrs++
			r.observe("read_error")
			r.log.Warn("reconcile read failed", "operation_id", e.ID, "picking_id", e.PickingID, "err", vr.LastErr)
			continue
		default:
			sum.Pending++
			r.observe("pending")
			continue
		}

		if err := r.store.UpdateState(ctx, e.ID, status, string(vr.State)); err != nil {
			errs = append(errs, fmt.Errorf("update operation %s: %w", e.ID, err))
			continue
		}
		r.observe(string(status))
		r.log.Info("operation reconciled", "operation_id", e.ID, "picking_id", e.PickingID, "status", status)
	}
	return sum, errors.Join(errs...)
}

func (r *Reconciler) observe(result string) {
	if r.metrics != nil {
		r.metrics.ObserveReconcile(result)
	}
}

// Scheduler запускает сверку по расписанию.
type Scheduler struct {
	s   gocron.Scheduler
	log *slog.Logger
}

func NewScheduler(r *Reconciler, interval time.Duration, log *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			sum, err := r.RunOnce(ctx)
			if err != nil {
				log.Error("reconcile failed", "err", err)
				return
			}
			if sum.Checked > 0 {
				log.Info("reconcile pass", "checked", sum.Checked, "done", sum.Done, "failed", sum.Failed, "pending", sum.Pending)
			}
		}),
		gocron.WithName("reconcile-pending-operations"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("register reconcile job: %w", err)
	}
	return &Scheduler{s: s, log: log}, nil
}

func (s *Scheduler) Start() {
	s.log.Info("reconcile scheduler started")
	s.s.Start()
}

func (s *Scheduler) Stop() error {
	s.log.Info("reconcile scheduler stopping")
	return s.s.Shutdown()
}
