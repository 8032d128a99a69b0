package reclaim_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/reclaim"
	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []session.Thresholds
	panic bool
}

func (f *fakeSweeper) Sweep(ctx context.Context, th session.Thresholds) service.SweepReport {
	f.mu.Lock()
	f.calls = append(f.calls, th)
	shouldPanic := f.panic
	f.mu.Unlock()
	if shouldPanic {
		panic("sweep exploded")
	}
	return service.SweepReport{}
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSweeper) last() session.Thresholds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testConfig() reclaim.Config {
	return reclaim.Config{
		Interval:    10 * time.Millisecond,
		VacateDelay: 5 * time.Millisecond,
		Thresholds:  session.DefaultThresholds(),
	}
}

func TestPeriodicSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := reclaim.New(sweeper, testConfig(), zaptest.NewLogger(t))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return sweeper.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, session.DefaultThresholds(), sweeper.last())
}

func TestNothingRunsBeforeStart(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := reclaim.New(sweeper, testConfig(), zaptest.NewLogger(t))
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, sweeper.count())
}

func TestSweepPanicDoesNotStopLoop(t *testing.T) {
	sweeper := &fakeSweeper{panic: true}
	s := reclaim.New(sweeper, testConfig(), zaptest.NewLogger(t))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return sweeper.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestStopEndsLoop(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := reclaim.New(sweeper, testConfig(), zaptest.NewLogger(t))
	s.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.count() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	n := sweeper.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, sweeper.count())

	// second stop is a no-op
	s.Stop()
}

func TestCancelledContextEndsLoop(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := reclaim.New(sweeper, testConfig(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestTriggerVacateSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	cfg := testConfig()
	cfg.Interval = time.Hour
	s := reclaim.New(sweeper, cfg, zaptest.NewLogger(t))
	defer s.Stop()

	s.TriggerVacateSweep()
	require.Eventually(t, func() bool { return sweeper.count() == 1 }, time.Second, 5*time.Millisecond)

	th := sweeper.last()
	assert.Zero(t, th.EmptyRoom)
	assert.Equal(t, cfg.Thresholds.FinishedGame, th.FinishedGame)
	assert.Equal(t, cfg.Thresholds.InactiveRoom, th.InactiveRoom)
}

func TestAfter(t *testing.T) {
	s := reclaim.New(&fakeSweeper{}, testConfig(), zaptest.NewLogger(t))
	defer s.Stop()

	t.Run("fires once", func(t *testing.T) {
		var calls atomic.Int32
		cancel := s.After(time.Millisecond, func() { calls.Add(1) })

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		assert.False(t, cancel(), "cancel after firing reports false")
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancel prevents firing", func(t *testing.T) {
		var calls atomic.Int32
		cancel := s.After(20*time.Millisecond, func() { calls.Add(1) })

		assert.True(t, cancel())
		assert.False(t, cancel(), "second cancel reports false")
		time.Sleep(40 * time.Millisecond)
		assert.Zero(t, calls.Load())
	})

	t.Run("panic is contained", func(t *testing.T) {
		var calls atomic.Int32
		s.After(time.Millisecond, func() { panic("boom") })
		s.After(2*time.Millisecond, func() { calls.Add(1) })

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	})
}

func TestStopCancelsPendingTimers(t *testing.T) {
	s := reclaim.New(&fakeSweeper{}, testConfig(), zaptest.NewLogger(t))

	var calls atomic.Int32
	cancel := s.After(time.Hour, func() { calls.Add(1) })
	s.After(time.Hour, func() { calls.Add(1) })
	assert.Equal(t, 2, s.Pending())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop waited on cancelled timers")
	}

	assert.Zero(t, s.Pending())
	assert.False(t, cancel())
	assert.Zero(t, calls.Load())

	// timers requested after Stop never run
	s.After(time.Millisecond, func() { calls.Add(1) })
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestStopWaitsForRunningCallback(t *testing.T) {
	s := reclaim.New(&fakeSweeper{}, testConfig(), zaptest.NewLogger(t))

	started := make(chan struct{})
	var finished atomic.Bool
	s.After(time.Millisecond, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()
	assert.True(t, finished.Load())
}

type prefixVerifier struct{}

func (prefixVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

type discard struct{}

func (discard) Emit(protocol.Event) {}

func TestVacateSweepReclaimsAbandonedSession(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sessions := session.NewManager()
	svc := service.NewGameService(sessions, prefixVerifier{}, logger)

	cfg := testConfig()
	cfg.Interval = time.Hour
	scheduler := reclaim.New(svc, cfg, logger)
	svc.SetScheduler(scheduler)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	summary, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := svc.Connect(discard{})
	svc.Handle(conn, protocol.Authenticate{Token: "alice"})
	svc.Handle(conn, protocol.JoinSession{SessionID: summary.ID, DisplayName: "Alice"})
	require.Equal(t, 1, sessions.Count())

	svc.Disconnect(conn)

	require.Eventually(t, func() bool { return sessions.Count() == 0 }, time.Second, 5*time.Millisecond)
	_, err = svc.GetSession(context.Background(), summary.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
