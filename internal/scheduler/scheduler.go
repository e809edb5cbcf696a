// Package scheduler implements the Scheduler (C8): per-target CRON/
// English-schedule parsing, next-fire computation under a timezone, a
// single driver loop that wakes at the nearest upcoming fire time, and
// maintenance-window evaluation. The resettable-timer driver loop is the
// same shape as the teacher's internal/engine/scheduler.go Scheduler.Run,
// generalized from "one fixed poll interval" to "wake at whichever
// target's NextScheduledRun is soonest, then recompute".
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/metrics"
	"github.com/komodore/core/internal/model"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunFunc invokes the target's Run operation through the Execution
// Dispatcher as the synthetic scheduler user (spec §4.8).
type RunFunc func(ctx context.Context, target model.ResourceTarget) error

// AlertSink emits ScheduleRun/ScheduleRunFailed alerts.
type AlertSink interface {
	Open(ctx context.Context, target model.ResourceTarget, level model.AlertLevel, data model.AlertData) error
}

// SchedulerUser is the synthetic operator id attributed to scheduler-fired
// Updates (spec §4.8 "the synthetic scheduler user").
const SchedulerUser = "scheduler"

// Scheduler is the Scheduler component.
type Scheduler struct {
	mu      sync.Mutex
	entries map[model.ResourceTarget]*model.ScheduleItem

	clock     clock.Clock
	log       *logging.Logger
	run       RunFunc
	alerts    AlertSink
	defaultTZ string

	wakeCh chan struct{}
}

// New constructs a Scheduler. defaultTZ is used when a target's schedule
// omits a timezone (spec §4.8: "under the target's timezone (or core
// default/local)").
func New(run RunFunc, alerts AlertSink, c clock.Clock, log *logging.Logger, defaultTZ string) *Scheduler {
	if defaultTZ == "" {
		defaultTZ = "Local"
	}
	return &Scheduler{
		entries:   make(map[model.ResourceTarget]*model.ScheduleItem),
		clock:     c,
		log:       log.Component("scheduler"),
		run:       run,
		alerts:    alerts,
		defaultTZ: defaultTZ,
		wakeCh:    make(chan struct{}, 1),
	}
}

// resolveCron returns the raw CRON expression for a schedule item,
// translating English phrases first.
func resolveCron(format model.ScheduleFormat, schedule string) (string, error) {
	if format == model.ScheduleEnglish {
		return TranslateEnglish(schedule)
	}
	return schedule, nil
}

// UpdateSchedule is `update_schedule(target)`: parses the schedule under
// the target's timezone, computes the next future fire time (missed
// occurrences are suppressed — Next() always returns strictly after
// `now`, so a long-paused scheduler never backfills), and stores the
// result. Called on startup and after any Action/Procedure create/update/
// rename (spec §4.8).
func (s *Scheduler) UpdateSchedule(target model.ResourceTarget, format model.ScheduleFormat, schedule, timezone string, enabled, scheduleAlert, failureAlert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &model.ScheduleItem{
		Target:        target,
		Format:        format,
		Schedule:      schedule,
		Timezone:      timezone,
		Enabled:       enabled,
		ScheduleAlert: scheduleAlert,
		FailureAlert:  failureAlert,
	}

	if enabled {
		next, err := s.computeNext(format, schedule, timezone, s.clock.Now())
		if err != nil {
			item.ScheduleError = err.Error()
		} else {
			item.NextScheduledRun = next
		}
	}

	s.entries[target] = item
	s.wake()
	return nil
}

// RemoveSchedule drops a target's schedule entry (e.g. on resource
// delete).
func (s *Scheduler) RemoveSchedule(target model.ResourceTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, target)
	s.wake()
}

// Entry returns a copy of a target's current schedule state, for display.
func (s *Scheduler) Entry(target model.ResourceTarget) (model.ScheduleItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[target]
	if !ok {
		return model.ScheduleItem{}, false
	}
	return *e, true
}

func (s *Scheduler) computeNext(format model.ScheduleFormat, schedule, timezone string, after time.Time) (time.Time, error) {
	cronExpr, err := resolveCron(format, schedule)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", cronExpr, err)
	}
	tz := timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return sched.Next(after.In(loc)), nil
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run is the single driver loop: it wakes at the nearest upcoming fire
// time, re-checks all due targets, fires them, and recomputes next fire
// (spec §4.8).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait := s.nextWait()
		select {
		case <-s.clock.After(wait):
			s.fireDue(ctx)
		case <-s.wakeCh:
			// entries changed; loop around to recompute the wait duration.
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	const idleWait = time.Hour
	var soonest time.Time
	for _, e := range s.entries {
		if !e.Enabled || e.ScheduleError != "" || e.NextScheduledRun.IsZero() {
			continue
		}
		if soonest.IsZero() || e.NextScheduledRun.Before(soonest) {
			soonest = e.NextScheduledRun
		}
	}
	if soonest.IsZero() {
		return idleWait
	}
	d := soonest.Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []model.ScheduleItem
	for _, e := range s.entries {
		if e.Enabled && e.ScheduleError == "" && !e.NextScheduledRun.IsZero() && !e.NextScheduledRun.After(now) {
			due = append(due, *e)
		}
	}
	s.mu.Unlock()

	for _, item := range due {
		s.fire(ctx, item)
	}
}

func (s *Scheduler) fire(ctx context.Context, item model.ScheduleItem) {
	metrics.SchedulerFiresTotal.Inc()
	err := s.run(ctx, item.Target)

	s.mu.Lock()
	if e, ok := s.entries[item.Target]; ok {
		e.LastRunAt = s.clock.Now()
		if next, nerr := s.computeNext(e.Format, e.Schedule, e.Timezone, s.clock.Now()); nerr == nil {
			e.NextScheduledRun = next
			e.ScheduleError = ""
		} else {
			e.ScheduleError = nerr.Error()
		}
	}
	s.mu.Unlock()

	if s.alerts == nil {
		return
	}
	if item.ScheduleAlert {
		if aerr := s.alerts.Open(ctx, item.Target, model.AlertOk, model.AlertData{Kind: model.AlertScheduleRun}); aerr != nil {
			s.log.Warn("failed to emit schedule-run alert", "target", item.Target, "error", aerr)
		}
	}
	if err != nil && item.FailureAlert {
		if aerr := s.alerts.Open(ctx, item.Target, model.AlertCritical, model.AlertData{Kind: model.AlertScheduleRunFailed, Message: err.Error()}); aerr != nil {
			s.log.Warn("failed to emit schedule-run-failed alert", "target", item.Target, "error", aerr)
		}
	}
}
