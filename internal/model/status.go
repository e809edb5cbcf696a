package model

import "time"

// ServerState is the reachability/administrative state of a Server in the
// Status Cache (spec §3).
type ServerState string

const (
	ServerOk       ServerState = "Ok"
	ServerNotOk    ServerState = "NotOk"
	ServerDisabled ServerState = "Disabled"
)

// ComposeProject is a compose stack as observed directly on a host by
// Periphery, distinct from the Core-side Stack resource it may (or may
// not yet) correspond to.
type ComposeProject struct {
	Name     string   `json:"name"`
	Services []string `json:"services"`
	Status   string   `json:"status"`
}

// ServerStatus is the per-server Status Cache entry (spec §3). It is never
// persisted — the cache is process-local and rebuilt by the monitor loop
// (C2) on startup.
type ServerStatus struct {
	State      ServerState      `json:"state"`
	Version    string           `json:"version"`
	Projects   []ComposeProject `json:"projects"`
	LastPollAt time.Time        `json:"last_poll_at"`
	LastError  string           `json:"last_error,omitempty"`
}

// Clone returns a value safe to publish as an atomically-swapped snapshot
// (spec §3 Ownership / §4.2 concurrency: "cache is a snapshotted map
// replaced atomically per tick").
func (s ServerStatus) Clone() ServerStatus {
	out := s
	out.Projects = append([]ComposeProject(nil), s.Projects...)
	return out
}

// ContainerState mirrors the handful of Docker container states the
// Status Cache distinguishes for alerting purposes.
type ContainerState string

const (
	ContainerRunning    ContainerState = "Running"
	ContainerStopped    ContainerState = "Stopped"
	ContainerRestarting ContainerState = "Restarting"
	ContainerUnhealthy  ContainerState = "Unhealthy"
	ContainerUnknown    ContainerState = "Unknown"
)

// DeploymentCurrent is the observed-state snapshot for one Deployment.
type DeploymentCurrent struct {
	State           ContainerState `json:"state"`
	ContainerId     string         `json:"container_id,omitempty"`
	UpdateAvailable bool           `json:"update_available"`
}

// DeploymentStatus is the per-deployment Status Cache entry (spec §3).
type DeploymentStatus struct {
	Curr DeploymentCurrent `json:"curr"`
}

// StackService is one service within an observed compose Stack.
type StackService struct {
	Name  string         `json:"name"`
	State ContainerState `json:"state"`
}

// StackCurrent is the observed-state snapshot for one Stack.
type StackCurrent struct {
	State           ContainerState `json:"state"`
	Services        []StackService `json:"services"`
	UpdateAvailable bool           `json:"update_available"`
}

// StackStatus is the per-stack Status Cache entry (spec §3).
type StackStatus struct {
	Curr StackCurrent `json:"curr"`
}

// StatsRecord is a timestamped resource-usage sample the monitor loop (C2)
// writes for each server tick, consumed by the prune loop (C12) for
// retention-based eviction.
type StatsRecord struct {
	ServerId  string    `json:"server_id"`
	Ts        time.Time `json:"ts"`
	CpuPerc   float64   `json:"cpu_perc"`
	MemPerc   float64   `json:"mem_perc"`
	DiskPerc  float64   `json:"disk_perc"`
}
