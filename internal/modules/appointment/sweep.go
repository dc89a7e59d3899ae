// README: Periodic sweep that audits appointments whose day has passed and reports unpaid completions.
package appointment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

type Sweeper struct {
	svc       *Service
	scheduler *gocron.Scheduler
	interval  time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		svc:       svc,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		log:       log.With("module", "sweeper"),
	}
}

// Start runs the sweep immediately and then every interval until ctx is done
// or Stop is called.
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := w.scheduler.Every(w.interval).Do(func() { w.Sweep(runCtx) }); err != nil {
		cancel()
		return err
	}
	w.cancel = cancel
	w.scheduler.StartAsync()
	w.started = true
	go func() {
		<-runCtx.Done()
		w.Stop()
	}()
	w.log.Info("sweeper started", "interval", w.interval.String())
	return nil
}

func (w *Sweeper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	w.scheduler.Stop()
	w.started = false
	w.log.Info("sweeper stopped")
}

// Sweep performs one pass.
func (w *Sweeper) Sweep(ctx context.Context) {
	recorded, err := w.svc.RecordPastDue(ctx)
	if err != nil {
		w.log.Error("record past due failed", "error", err)
		return
	}
	unpaid, err := w.svc.ListAwaitingPayment(ctx)
	if err != nil {
		w.log.Error("list awaiting payment failed", "error", err)
		return
	}
	w.log.Info("sweep complete", "past_due_recorded", recorded, "awaiting_payment", len(unpaid))
}
