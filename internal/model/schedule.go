package model

import "time"

// ScheduleFormat names whether Schedule.Schedule is a raw CRON expression
// or an English phrase to be translated to CRON (spec §3 Schedule item).
type ScheduleFormat string

const (
	ScheduleCron    ScheduleFormat = "Cron"
	ScheduleEnglish ScheduleFormat = "English"
)

// ScheduleItem is the derived view over Action/Procedure schedule fields
// (spec §3). internal/scheduler computes and owns NextScheduledRun,
// LastRunAt and ScheduleError; internal/resources persists the
// user-editable fields (Format/Schedule/Timezone/Enabled) as part of the
// owning resource's Config.
type ScheduleItem struct {
	Target             ResourceTarget `json:"target"`
	Format             ScheduleFormat `json:"schedule_format"`
	Schedule           string         `json:"schedule"`
	Timezone           string         `json:"schedule_timezone"`
	Enabled            bool           `json:"enabled"`
	LastRunAt          time.Time      `json:"last_run_at,omitzero"`
	NextScheduledRun   time.Time      `json:"next_scheduled_run,omitzero"`
	ScheduleError      string         `json:"schedule_error,omitempty"`
	ScheduleAlert      bool           `json:"schedule_alert"`
	FailureAlert       bool           `json:"failure_alert"`
}

// MaintenanceScheduleType enumerates how a MaintenanceWindow recurs
// (spec §4.8).
type MaintenanceScheduleType string

const (
	MaintenanceDaily   MaintenanceScheduleType = "Daily"
	MaintenanceWeekly  MaintenanceScheduleType = "Weekly"
	MaintenanceOneTime MaintenanceScheduleType = "OneTime"
)

// MaintenanceWindow is a time interval during which alert dispatch may be
// suppressed (spec §4.8, GLOSSARY).
type MaintenanceWindow struct {
	Enabled          bool                    `json:"enabled"`
	Timezone         string                  `json:"timezone,omitempty"`
	ScheduleType     MaintenanceScheduleType `json:"schedule_type"`
	DayOfWeek        time.Weekday            `json:"day_of_week,omitempty"` // Weekly
	Date             string                  `json:"date,omitempty"`        // OneTime, YYYY-MM-DD
	Hour             int                     `json:"hour"`
	Minute           int                     `json:"minute"`
	DurationMinutes  int                     `json:"duration_minutes"`
}
