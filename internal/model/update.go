package model

import "time"

// UpdateStatus is the lifecycle state of an Update record (spec §3).
type UpdateStatus string

const (
	UpdateQueued     UpdateStatus = "Queued"
	UpdateInProgress UpdateStatus = "InProgress"
	UpdateComplete   UpdateStatus = "Complete"
)

// LogStage names the phase a Log entry belongs to. Stages are
// operation-specific (e.g. DeployStack uses Interpolate/Write/Pull/
// Deploy, per scenario A) so this is a plain string, not an enum.
type LogStage = string

// Log is one stage's output within an Update, per spec §3.
type Log struct {
	Stage   LogStage  `json:"stage"`
	Command string    `json:"command,omitempty"`
	Stdout  string    `json:"stdout,omitempty"`
	Stderr  string    `json:"stderr,omitempty"`
	Success bool      `json:"success"`
	Start   time.Time `json:"start_ts"`
	End     time.Time `json:"end_ts"`
}

// Update is the durable per-run record of spec §3. Once Status ==
// Complete, Logs are frozen by convention (internal/store refuses further
// AppendLog calls on a completed Update).
type Update struct {
	Id        string         `json:"id"`
	Operation string         `json:"operation"`
	Target    ResourceTarget `json:"target"`
	Operator  string         `json:"operator"` // UserId
	Logs      []Log          `json:"logs"`
	Status    UpdateStatus   `json:"status"`
	Success   bool           `json:"success"`
	Start     time.Time      `json:"start_ts"`
	End       time.Time      `json:"end_ts"`
	Version   int            `json:"version"`
}

// PushLog appends a Log record. Returns false (no-op) if the Update has
// already completed, matching the "logs are frozen" invariant.
func (u *Update) PushLog(l Log) bool {
	if u.Status == UpdateComplete {
		return false
	}
	u.Logs = append(u.Logs, l)
	return true
}

// Finalize computes Success as the conjunction of every terminal log's
// Success flag (no logs => vacuously true, a task-level error is expected
// to have pushed a failing log first) and marks the Update Complete. This
// is the single place §3's "success reflects the conjunction of all
// terminal log successes plus any task-level error" invariant is enforced.
func (u *Update) Finalize(end time.Time) {
	if u.Status == UpdateComplete {
		return
	}
	success := true
	for _, l := range u.Logs {
		if !l.Success {
			success = false
			break
		}
	}
	u.Success = success
	u.Status = UpdateComplete
	u.End = end
}
