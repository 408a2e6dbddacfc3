package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/metrics"
	"github.com/logsentry/logsentry/internal/parser"
)

// DefaultPollInterval is how often each tailer checks its file for growth.
const DefaultPollInterval = 2 * time.Second

// stopTimeout bounds how long Stop waits for pollers to quiesce.
const stopTimeout = 5 * time.Second

// Source binds one log file path to the parser that understands it.
type Source struct {
	Name   string
	Path   string
	Parser parser.LineParser
}

// Service runs one polling goroutine per monitored source.
type Service struct {
	tailers  []*Tailer
	interval time.Duration
	log      *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a watcher over the given sources. A non-positive
// interval falls back to DefaultPollInterval.
func NewService(sources []Source, interval time.Duration, log *logging.Logger) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	tailers := make([]*Tailer, 0, len(sources))
	for _, src := range sources {
		tailers = append(tailers, NewTailer(src.Path, src.Parser, log))
	}

	return &Service{
		tailers:  tailers,
		interval: interval,
		log:      log.With(logging.Component("watcher")),
	}
}

// ProcessExisting replays recent history from every source and positions
// each tailer at its file's current end. Call before Start so the dashboard
// has data immediately after boot.
func (s *Service) ProcessExisting(ctx context.Context) {
	for _, t := range s.tailers {
		if err := t.ProcessExisting(ctx); err != nil {
			s.log.ErrorContext(ctx, "failed to process existing log content",
				logging.Path(t.path), logging.Error(err))
		}
	}
}

// Start launches one polling goroutine per source. It returns immediately;
// use Stop to shut the pollers down.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, t := range s.tailers {
		s.wg.Add(1)
		metrics.ActivePollers.Inc()

		go func(t *Tailer) {
			defer s.wg.Done()
			defer metrics.ActivePollers.Dec()
			s.run(ctx, t)
		}(t)
	}

	s.log.InfoContext(ctx, "watcher started", logging.Lines(len(s.tailers)))
}

func (s *Service) run(ctx context.Context, t *Tailer) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			timer := prometheus.NewTimer(metrics.TickDuration)
			if err := t.Poll(ctx); err != nil {
				t.log.ErrorContext(ctx, "poll tick failed", logging.Error(err))
			}
			timer.ObserveDuration()
		}
	}
}

// Stop cancels all pollers and waits up to stopTimeout for them to exit.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.log.Warn("watcher pollers did not stop in time")
	}
}
