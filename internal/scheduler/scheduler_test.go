package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fixedClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

func TestTranslateEnglishPhrases(t *testing.T) {
	cases := map[string]string{
		"every 5 minutes":    "0 */5 * * * *",
		"every 30 seconds":   "*/30 * * * * *",
		"every 2 hours":      "0 0 */2 * * *",
		"every hour":         "0 0 * * * *",
		"every day at 03:15": "0 15 3 * * *",
		"every monday at 09:00": "0 0 9 * * 1",
		"hourly":             "0 0 * * * *",
		"daily":              "0 0 0 * * *",
		"weekly":             "0 0 0 * * 0",
		"monthly":            "0 0 0 1 * *",
	}
	for phrase, want := range cases {
		got, err := TranslateEnglish(phrase)
		if err != nil {
			t.Fatalf("TranslateEnglish(%q): %v", phrase, err)
		}
		if got != want {
			t.Errorf("TranslateEnglish(%q) = %q, want %q", phrase, got, want)
		}
	}
}

func TestTranslateEnglishRejectsUnknownPhrase(t *testing.T) {
	if _, err := TranslateEnglish("every fortnight"); err == nil {
		t.Fatalf("expected an error for an unrecognized phrase")
	}
}

func TestUpdateScheduleComputesNextFireInFuture(t *testing.T) {
	c := &fixedClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(func(context.Context, model.ResourceTarget) error { return nil }, nil, c, logging.New(false), "UTC")

	target := model.ResourceTarget{Kind: model.KindAction, Id: "a1"}
	if err := s.UpdateSchedule(target, model.ScheduleCron, "0 0 * * * *", "UTC", true, false, false); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}

	entry, ok := s.Entry(target)
	if !ok {
		t.Fatalf("expected an entry for target")
	}
	if entry.ScheduleError != "" {
		t.Fatalf("unexpected schedule error: %s", entry.ScheduleError)
	}
	if !entry.NextScheduledRun.After(c.now) {
		t.Fatalf("expected next run strictly after now, got %v (now=%v)", entry.NextScheduledRun, c.now)
	}
}

func TestUpdateScheduleRecordsParseError(t *testing.T) {
	c := &fixedClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(func(context.Context, model.ResourceTarget) error { return nil }, nil, c, logging.New(false), "UTC")

	target := model.ResourceTarget{Kind: model.KindAction, Id: "a1"}
	if err := s.UpdateSchedule(target, model.ScheduleCron, "not a cron expression", "UTC", true, false, false); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	entry, ok := s.Entry(target)
	if !ok {
		t.Fatalf("expected an entry for target")
	}
	if entry.ScheduleError == "" {
		t.Fatalf("expected a schedule error to be recorded")
	}
}

func TestFireDueSuppressesMissedOccurrences(t *testing.T) {
	c := &fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var fired int
	s := New(func(context.Context, model.ResourceTarget) error {
		fired++
		return nil
	}, nil, c, logging.New(false), "UTC")

	target := model.ResourceTarget{Kind: model.KindAction, Id: "a1"}
	if err := s.UpdateSchedule(target, model.ScheduleCron, "0 * * * * *", "UTC", true, false, false); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}

	// Simulate the scheduler having been paused for a long time: jump the
	// clock far past several missed minute-marks, then fire.
	c.mu.Lock()
	c.now = c.now.Add(3 * time.Hour)
	c.mu.Unlock()

	s.fireDue(context.Background())
	if fired != 1 {
		t.Fatalf("expected exactly one fire for the catch-up window, got %d", fired)
	}

	entry, _ := s.Entry(target)
	if !entry.NextScheduledRun.After(c.Now()) {
		t.Fatalf("expected recomputed next run to be strictly after the jumped clock")
	}
}

func TestInWindowDailyWrapsMidnight(t *testing.T) {
	w := model.MaintenanceWindow{
		Enabled:         true,
		Timezone:        "UTC",
		ScheduleType:    model.MaintenanceDaily,
		Hour:            23,
		Minute:          0,
		DurationMinutes: 120,
	}
	// 23:30 the same day the window opens.
	if !InWindow(w, time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 23:30 to be inside the window")
	}
	// 00:30 the next day, still inside the 120-minute span started at 23:00.
	if !InWindow(w, time.Date(2026, 1, 2, 0, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 00:30 the next day to still be inside the window")
	}
	// 01:30 the next day, past the window.
	if InWindow(w, time.Date(2026, 1, 2, 1, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 01:30 the next day to be outside the window")
	}
}

func TestInWindowWeeklyMatchesDayOfWeek(t *testing.T) {
	w := model.MaintenanceWindow{
		Enabled:         true,
		Timezone:        "UTC",
		ScheduleType:    model.MaintenanceWeekly,
		DayOfWeek:       time.Sunday,
		Hour:            2,
		Minute:          0,
		DurationMinutes: 60,
	}
	// 2026-01-04 is a Sunday.
	if !InWindow(w, time.Date(2026, 1, 4, 2, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected Sunday 02:30 to be inside the weekly window")
	}
	if InWindow(w, time.Date(2026, 1, 5, 2, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected Monday 02:30 to be outside the weekly window")
	}
}

func TestInWindowOneTimeOnlyMatchesConfiguredDate(t *testing.T) {
	w := model.MaintenanceWindow{
		Enabled:         true,
		Timezone:        "UTC",
		ScheduleType:    model.MaintenanceOneTime,
		Date:            "2026-03-15",
		Hour:            10,
		Minute:          0,
		DurationMinutes: 30,
	}
	if !InWindow(w, time.Date(2026, 3, 15, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("expected the configured date/time to be inside the window")
	}
	if InWindow(w, time.Date(2026, 3, 16, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("expected a different date to be outside the window")
	}
}
