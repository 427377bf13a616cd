// Package scheduler drives the periodic attribution runs and the
// nightly rekey.  Both batches share a redis mutex so renumbering
// never overlaps with a selection-and-write sequence, even when
// several instances of the service run side by side.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/quadrille/attribution/internal/attribution"
	"github.com/quadrille/attribution/internal/rekey"
)

// Scheduler owns the background loop.  Interval controls how often
// the attribution batch runs; RekeyHour is the UTC hour at which the
// nightly rekey fires (first tick past the hour, once per day).
type Scheduler struct {
	Selector  *attribution.Selector
	Rekeyer   *rekey.Rekeyer
	Lock      *Mutex
	Interval  time.Duration
	RekeyHour int

	stop      chan struct{}
	lastRekey time.Time
}

// New constructs a Scheduler.  The same Mutex instance must be shared
// with every other trigger of attribution or rekey runs.
func New(selector *attribution.Selector, rekeyer *rekey.Rekeyer, lock *Mutex, interval time.Duration, rekeyHour int) *Scheduler {
	if selector == nil || rekeyer == nil {
		panic("nil component passed to scheduler.New")
	}
	return &Scheduler{
		Selector:  selector,
		Rekeyer:   rekeyer,
		Lock:      lock,
		Interval:  interval,
		RekeyHour: rekeyHour,
		stop:      make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine and returns.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop terminates the loop.  A batch already in flight finishes.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Printf("scheduler: attribution every %s, rekey at %02d:00 UTC", s.Interval, s.RekeyHour)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	now := time.Now().UTC()
	if s.rekeyDue(now) {
		err := s.Lock.TryRun(ctx, func() {
			if _, err := s.Rekeyer.Run(ctx); err != nil {
				log.Printf("scheduler: rekey failed, leaving for operator review: %v", err)
			}
			// Failed or not, wait for the next day rather than
			// retrying a possibly inconsistent store automatically.
			s.lastRekey = now
		})
		if errors.Is(err, ErrLockHeld) {
			log.Printf("scheduler: lock held elsewhere, skipping rekey tick")
		}
		return
	}
	err := s.Lock.TryRun(ctx, func() {
		report, err := s.Selector.Run(ctx)
		if err != nil {
			log.Printf("scheduler: attribution run failed: %v", err)
			return
		}
		if report.Examined > 0 {
			log.Printf("scheduler: attribution run: examined=%d attributed=%d no_eligible=%d conflicts=%d errors=%d",
				report.Examined, report.Attributed, report.NoEligible, report.Conflicts, report.Errors)
		}
	})
	if errors.Is(err, ErrLockHeld) {
		log.Printf("scheduler: lock held elsewhere, skipping tick")
	}
}

// rekeyDue reports whether the nightly rekey window has been reached
// and not yet served today.
func (s *Scheduler) rekeyDue(now time.Time) bool {
	if now.Hour() < s.RekeyHour {
		return false
	}
	y1, m1, d1 := s.lastRekey.Date()
	y2, m2, d2 := now.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
