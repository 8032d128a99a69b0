package reclaim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
)

// Sweeper performs one reclamation pass
type Sweeper interface {
	Sweep(ctx context.Context, th session.Thresholds) service.SweepReport
}

// Config controls sweep timing
type Config struct {
	Interval    time.Duration
	VacateDelay time.Duration
	Thresholds  session.Thresholds
}

// DefaultConfig sweeps every minute with the default thresholds
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		VacateDelay: 2 * time.Second,
		Thresholds:  session.DefaultThresholds(),
	}
}

// Scheduler runs periodic sweeps plus one-shot timers. Stop cancels the
// ticker and every pending timer and waits for running callbacks to return.
type Scheduler struct {
	sweeper Sweeper
	cfg     Config
	logger  *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	started bool
	stopped bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// New creates a scheduler. Nothing runs until Start.
func New(sweeper Sweeper, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger.Named("reclaim"),
		ctx:     context.Background(),
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Start launches the periodic sweep loop
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("reclamation scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("empty_timeout", s.cfg.Thresholds.EmptyRoom),
		zap.Duration("finished_timeout", s.cfg.Thresholds.FinishedGame),
		zap.Duration("inactive_timeout", s.cfg.Thresholds.InactiveRoom))
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(s.cfg.Thresholds)
		case <-s.ctx.Done():
			return
		}
	}
}

// sweep runs one pass. A failing pass is logged and retried on the next tick.
func (s *Scheduler) sweep(th session.Thresholds) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep failed", zap.Any("panic", r))
		}
	}()

	report := s.sweeper.Sweep(s.context(), th)
	s.logger.Debug("sweep complete",
		zap.Int("removed", report.Total),
		zap.Int("remaining", report.Remaining))
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// TriggerVacateSweep schedules an extra sweep that removes empty sessions
// regardless of age, shortly after a seat was vacated
func (s *Scheduler) TriggerVacateSweep() {
	th := s.cfg.Thresholds
	th.EmptyRoom = 0
	s.After(s.cfg.VacateDelay, func() {
		s.sweep(th)
	})
}

// After runs fn once d has elapsed unless cancelled or stopped first. The
// returned cancel reports whether it prevented fn from running.
func (s *Scheduler) After(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return func() bool { return false }
	}

	var t *time.Timer
	s.wg.Add(1)
	t = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()
		if !live {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled task failed", zap.Any("panic", r))
			}
		}()
		fn()
	})
	s.timers[t] = struct{}{}

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cancelLocked(t)
	}
}

func (s *Scheduler) cancelLocked(t *time.Timer) bool {
	if _, live := s.timers[t]; !live {
		return false
	}
	delete(s.timers, t)
	if t.Stop() {
		// the callback will never run to release its slot
		s.wg.Done()
	}
	return true
}

// Pending returns the number of timers waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels the loop and all pending timers, then waits for in-flight
// callbacks. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for t := range s.timers {
		s.cancelLocked(t)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reclamation scheduler stopped")
}

var _ service.Scheduler = (*Scheduler)(nil)
