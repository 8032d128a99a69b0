// Package reclaim provides background session reclamation for naval duel.
//
// The reclaim package implements:
//   - A periodic sweep over the session registry
//   - Vacate sweeps that drop empty sessions shortly after a seat is freed
//   - One-shot timers for reconnect grace periods
//
// Core Types:
//
// Scheduler satisfies service.Scheduler. It owns every goroutine it starts,
// and Stop waits for all of them.
//
// Usage:
//
//	scheduler := reclaim.New(svc, reclaim.Config{
//		Interval:    time.Minute,
//		VacateDelay: 2 * time.Second,
//		Thresholds:  session.DefaultThresholds(),
//	}, logger)
//	svc.SetScheduler(scheduler)
//	scheduler.Start(ctx)
//	defer scheduler.Stop()
package reclaim
