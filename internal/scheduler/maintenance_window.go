package scheduler

import (
	"time"

	"github.com/komodore/core/internal/model"
)

// InWindow reports whether now falls inside the given maintenance window
// (spec §4.8). Windows are evaluated on-demand against a point in time —
// there is no persisted "currently in window" state. Windows that cross
// midnight (e.g. 23:00 for 120 minutes) wrap correctly because the check
// is done against the window's start/end computed relative to the day(s)
// bordering `now`, not just `now`'s own calendar day.
func InWindow(w model.MaintenanceWindow, now time.Time) bool {
	if !w.Enabled {
		return false
	}
	tz := w.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	switch w.ScheduleType {
	case model.MaintenanceOneTime:
		start, ok := oneTimeStart(w, loc)
		if !ok {
			return false
		}
		return withinDuration(local, start, w.DurationMinutes)

	case model.MaintenanceWeekly:
		// Check the window anchored on each of the two days that could
		// contain `local` within its duration: today and yesterday (handles
		// a window that started yesterday and wrapped past midnight).
		// Anchoring is only valid on the configured weekday itself.
		for _, dayOffset := range []int{0, -1} {
			start := dayAt(local, dayOffset, w.Hour, w.Minute)
			if start.Weekday() != w.DayOfWeek {
				continue
			}
			if withinDuration(local, start, w.DurationMinutes) {
				return true
			}
		}
		return false

	case model.MaintenanceDaily:
		for _, dayOffset := range []int{0, -1} {
			start := dayAt(local, dayOffset, w.Hour, w.Minute)
			if withinDuration(local, start, w.DurationMinutes) {
				return true
			}
		}
		return false
	}
	return false
}

func dayAt(ref time.Time, dayOffset, hour, minute int) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d+dayOffset, hour, minute, 0, 0, ref.Location())
}

func withinDuration(now, start time.Time, durationMinutes int) bool {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return !now.Before(start) && now.Before(end)
}

func oneTimeStart(w model.MaintenanceWindow, loc *time.Location) (time.Time, bool) {
	d, err := time.ParseInLocation("2006-01-02", w.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), w.Hour, w.Minute, 0, 0, loc), true
}
