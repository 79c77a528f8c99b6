package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultRollupBatchSize = 500

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("[Audit] cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("[Audit] cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Scheduler runs RollupStale on a cron schedule. The schedule accepts an
// optional leading seconds field.
type Scheduler struct {
	cron      *cron.Cron
	service   *Service
	batchSize int
	spec      string
}

// NewScheduler validates spec and registers the rollup job. Each run drains
// the stale queue in batches of batchSize and is bounded by timeout.
func NewScheduler(ctx context.Context, service *Service, spec string, batchSize int, timeout time.Duration) (*Scheduler, error) {
	if batchSize <= 0 {
		batchSize = defaultRollupBatchSize
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cronLogger{}), cron.Recover(cronLogger{}))),
		service:   service,
		batchSize: batchSize,
		spec:      spec,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		rctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		s.Run(rctx)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Run drains the stale audit queue once.
func (s *Scheduler) Run(ctx context.Context) int {
	total := 0
	for {
		n, err := s.service.RollupStale(ctx, s.batchSize)
		total += n
		if err != nil {
			slog.Error("[Audit] Rollup failed", "error", err, "processed", total)
			return total
		}
		if n < s.batchSize {
			return total
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("[Audit] Rollup scheduler started", "schedule", s.spec, "batch_size", s.batchSize)
}

// Stop stops scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("[Audit] Rollup scheduler stopped")
}
