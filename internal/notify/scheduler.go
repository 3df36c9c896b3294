package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"mess/internal/apperr"
	"mess/internal/digest"
)

// Clock abstracts time.Now so ticks can be driven deterministically in
// tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler is the recurring digest engine. It runs on a fixed base tick,
// fires a digest when the configured frequency has elapsed, and swallows
// every error inside a tick so the loop survives until explicitly
// disabled.
type Scheduler struct {
	digest    *digest.Service
	settings  SettingsStore
	transport Transport
	clock     Clock

	baseInterval time.Duration
	maxLookback  time.Duration

	mu            sync.Mutex
	permitted     bool
	lastFire      time.Time
	lastWindowEnd time.Time
}

// NewScheduler wires a scheduler. A nil clock uses the system clock.
func NewScheduler(d *digest.Service, settings SettingsStore, transport Transport, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		digest:       d,
		settings:     settings,
		transport:    transport,
		clock:        clock,
		baseInterval: time.Minute,
		maxLookback:  6 * time.Hour,
	}
}

// Enable requests transport permission and flips the stored config on.
// Denied permission blocks entry into the running state.
func (s *Scheduler) Enable(ctx context.Context) error {
	granted, err := s.transport.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return apperr.Permissionf("notification permission denied")
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	cfg.Enabled = true
	if err := s.settings.Save(ctx, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.permitted = true
	s.mu.Unlock()
	return nil
}

// Disable turns the stored config off, cancels pending notifications at
// the transport, and drops scheduler state so a re-enable starts a fresh
// cycle with no replay of missed windows.
func (s *Scheduler) Disable(ctx context.Context) error {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	cfg.Enabled = false
	if err := s.settings.Save(ctx, cfg); err != nil {
		return err
	}
	if err := s.transport.CancelAll(ctx); err != nil {
		log.Printf("cancel pending notifications failed: %v", err)
	}
	s.mu.Lock()
	s.permitted = false
	s.lastFire = time.Time{}
	s.lastWindowEnd = time.Time{}
	s.mu.Unlock()
	return nil
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.baseInterval)
	defer ticker.Stop()
	log.Printf("notification scheduler started (base tick %s)", s.baseInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("notification scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one gate-check-aggregate-format-dispatch cycle. Every
// failure is logged, counted and swallowed; the next tick fires
// normally.
func (s *Scheduler) Tick(ctx context.Context) {
	tickTotal.Inc()
	defer func() {
		if r := recover(); r != nil {
			tickErrors.Inc()
			log.Printf("scheduler tick panic: %v", r)
		}
	}()

	now := s.clock.Now()

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		tickErrors.Inc()
		log.Printf("scheduler: settings load failed: %v", err)
		return
	}

	if !cfg.Enabled {
		s.mu.Lock()
		s.permitted = false
		s.mu.Unlock()
		skipTotal.WithLabelValues("disabled").Inc()
		return
	}

	if !s.ensurePermitted(ctx) {
		skipTotal.WithLabelValues("permission").Inc()
		return
	}

	if !cfg.ShouldSend(now.Hour()) {
		skipTotal.WithLabelValues("inactive_hours").Inc()
		return
	}

	s.mu.Lock()
	lastFire := s.lastFire
	windowStart := s.lastWindowEnd
	s.mu.Unlock()

	if !lastFire.IsZero() && now.Sub(lastFire) < cfg.Frequency() {
		return
	}
	if windowStart.IsZero() || now.Sub(windowStart) > s.maxLookback {
		windowStart = now.Add(-cfg.Frequency())
	}

	sum, err := s.digest.Aggregate(ctx, windowStart, now)
	if err != nil {
		tickErrors.Inc()
		log.Printf("scheduler: aggregate failed: %v", err)
		return
	}
	stats, err := s.digest.TodayStats(ctx)
	if err != nil {
		tickErrors.Inc()
		log.Printf("scheduler: stats failed: %v", err)
		return
	}

	// The window was examined, so advance it even when nothing is sent.
	s.mu.Lock()
	s.lastFire = now
	s.lastWindowEnd = now
	s.mu.Unlock()

	title, body := Format(sum, stats, cfg)
	if title == "" && body == "" {
		skipTotal.WithLabelValues("no_activity").Inc()
		return
	}

	id, err := s.transport.Dispatch(ctx, title, body, map[string]string{
		"window_start": windowStart.Format(time.RFC3339),
		"window_end":   now.Format(time.RFC3339),
	})
	if err != nil {
		tickErrors.Inc()
		log.Printf("scheduler: dispatch failed: %v", err)
		return
	}
	dispatchTotal.Inc()
	log.Printf("scheduler: dispatched notification %s", id)
}

// ensurePermitted lazily re-requests permission after an enable observed
// through settings alone (e.g. flipped by the api process).
func (s *Scheduler) ensurePermitted(ctx context.Context) bool {
	s.mu.Lock()
	if s.permitted {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	granted, err := s.transport.RequestPermission(ctx)
	if err != nil {
		log.Printf("scheduler: permission request failed: %v", err)
		return false
	}
	if !granted {
		return false
	}
	s.mu.Lock()
	s.permitted = true
	s.mu.Unlock()
	return true
}
