package alert

import (
	"context"
	"runtime/debug"
	"time"

	"stockwatch-telegram-bot/internal/metrics"
	"stockwatch-telegram-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type WatchStore interface {
	ListAll(ctx context.Context) ([]types.Watch, error)
	DeleteByIDUnconditional(ctx context.Context, id int64) error
	Commit(ctx context.Context) error
}

type PriceSource interface {
	Fetch(ctx context.Context, symbol string) (types.PriceSample, error)
}

// Notifier delivers a message, optionally with an image, to a user.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, text string, image []byte) error
}

// Service is the background loop that evaluates every stored watch on a
// fixed interval. Fired watches are notified and then deleted.
type Service struct {
	store    WatchStore
	source   PriceSource
	notifier Notifier
	interval time.Duration
	metrics  *metrics.Metrics
}

// CycleReport summarises one pass over the watch table.
type CycleReport struct {
	Watches   int
	Evaluated int
	Triggered int
	Skipped   int
	Failed    int
}

type fetchResult struct {
	sample types.PriceSample
	err    error
}

func NewService(store WatchStore, source PriceSource, notifier Notifier, interval time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		source:   source,
		notifier: notifier,
		interval: interval,
		metrics:  m,
	}
}

// Start runs cycles until ctx is cancelled. The interval is measured from
// the end of one cycle to the start of the next.
func (s *Service) Start(ctx context.Context) {
	log.Infof("🚀 Alert service started, checking every %s", s.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Alert service stopped")
			return
		case <-timer.C:
			s.CheckAlerts(ctx)
			timer.Reset(s.interval)
		}
	}
}

// CheckAlerts runs one cycle over a snapshot of the watch table.
func (s *Service) CheckAlerts(ctx context.Context) CycleReport {
	started := time.Now()
	defer func() {
		s.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	log.Debug("🔄 Checking watches...")

	var report CycleReport
	if ctx.Err() != nil {
		log.Info("Alert cycle skipped, shutting down")
		return report
	}
	watches, err := s.store.ListAll(ctx)
	if err != nil {
		s.metrics.StoreFailures.Inc()
		log.Errorf("❌ Failed to fetch watches from the database: %v", err)
		return report
	}
	report.Watches = len(watches)
	s.metrics.ActiveWatches.Set(float64(len(watches)))

	// A symbol is fetched at most once per cycle, so a NotFound or
	// transient failure is not retried until the next cycle.
	samples := make(map[string]fetchResult)

	for _, w := range watches {
		if ctx.Err() != nil {
			log.Info("Alert cycle interrupted by shutdown")
			break
		}

		fired, err := s.processWatch(ctx, w, samples)
		switch {
		case err == nil && fired:
			report.Evaluated++
			report.Triggered++
		case err == nil:
			report.Evaluated++
		case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrTransientUnavailable):
			report.Skipped++
		default:
			report.Failed++
		}
	}

	// The checkpoint still runs when shutdown cut the cycle short.
	if err := s.store.Commit(context.WithoutCancel(ctx)); err != nil {
		s.metrics.StoreFailures.Inc()
		log.Errorf("❌ Failed to commit alert cycle: %v", err)
	}
	s.metrics.AlertCycles.Inc()

	log.Debugf("✅ Alert check completed: %+v", report)
	return report
}

// processWatch fetches, evaluates and, on a trigger, notifies then deletes a
// single watch. Any failure, including a panic, stays within this watch.
func (s *Service) processWatch(ctx context.Context, w types.Watch, samples map[string]fetchResult) (fired bool, err error) {
	logger := log.WithFields(log.Fields{
		"watch_id": w.ID,
		"owner_id": w.OwnerID,
		"symbol":   w.Symbol,
		"kind":     w.Kind,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("🔥 Panic recovered while processing watch: %v\n%s", r, debug.Stack())
			err = errors.Errorf("panic: %v", r)
		}
	}()

	res, cached := samples[w.Symbol]
	if !cached {
		sample, fetchErr := s.source.Fetch(ctx, w.Symbol)
		res = fetchResult{sample: sample, err: fetchErr}
		samples[w.Symbol] = res
		if fetchErr != nil {
			s.metrics.FetchFailures.WithLabelValues(failureReason(fetchErr)).Inc()
		}
	}
	if res.err != nil {
		if errors.Is(res.err, types.ErrNotFound) {
			logger.Warnf("⚠️ No price data for symbol: %v", res.err)
		} else {
			logger.Infof("Price unavailable this cycle: %v", res.err)
		}
		return false, res.err
	}

	s.metrics.WatchesEvaluated.Inc()
	logger.Debugf("🔍 Checking watch | Target: %v | Last: %.2f | Previous: %.2f", w.Target, res.sample.Last, res.sample.Previous)

	trigger, ok := Evaluate(w, res.sample)
	if !ok {
		return false, nil
	}
	s.metrics.AlertsTriggered.Inc()
	logger.Infof("%s Watch fired at %v", trigger.Emoji, trigger.Value)

	// Delivery failures do not keep the watch alive: a lost alert is
	// preferred over a duplicate one.
	if err := s.notifier.Notify(ctx, w.OwnerID, trigger.Text, nil); err != nil {
		s.metrics.DeliveryFailures.Inc()
		logger.Errorf("❌ Failed to send alert notification: %v", err)
	} else {
		logger.Infof("✅ Alert notification sent to owner %d", w.OwnerID)
	}

	// Shutdown must not separate the delete from the notification above.
	if err := s.store.DeleteByIDUnconditional(context.WithoutCancel(ctx), w.ID); err != nil {
		s.metrics.StoreFailures.Inc()
		logger.Errorf("❌ Failed to delete fired watch, it may fire again: %v", err)
		return true, err
	}
	return true, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrTransientUnavailable):
		return "transient"
	}
	return "other"
}
