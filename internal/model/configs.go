package model

// Typed per-kind Config structs. internal/resources marshals/unmarshals
// these to/from Resource.Config (a RawConfig map) at the store boundary,
// the way the teacher's internal/store/bolt.go marshals UpdateRecord to
// JSON before writing to a bbolt bucket.

// ServerConfig configures how Core reaches a Periphery agent (C1).
type ServerConfig struct {
	Address           string `json:"address"`             // e.g. http://host:8120
	Passkey           string `json:"passkey"`
	Enabled           bool   `json:"enabled"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
	IgnoreTLS         bool   `json:"ignore_tls"`          // §4.1 "TLS verification is optional-off"
	AutoPrune         bool   `json:"auto_prune"`
	CpuWarning        float64 `json:"cpu_warning"`
	CpuCritical       float64 `json:"cpu_critical"`
	MemWarning        float64 `json:"mem_warning"`
	MemCritical       float64 `json:"mem_critical"`
	DiskWarning       float64 `json:"disk_warning"`
	DiskCritical      float64 `json:"disk_critical"`
}

// BuilderConfig describes a remote or local build host referenced by a
// Build resource.
type BuilderConfig struct {
	ServerId string `json:"server_id,omitempty"` // empty = build on Core host
}

// BuildConfig describes a container image build.
type BuildConfig struct {
	BuilderId  string            `json:"builder_id"`
	RepoId     string            `json:"repo_id,omitempty"`
	Dockerfile string            `json:"dockerfile"`
	BuildArgs  map[string]string `json:"build_args,omitempty"`
	ImageName  string            `json:"image_name"`
	ImageTag   string            `json:"image_tag"`
}

// RepoConfig describes a git repo clone kept on a server for builds/syncs.
type RepoConfig struct {
	ServerId     string `json:"server_id"`
	GitProvider  string `json:"git_provider"`
	GitAccountId string `json:"git_account_id,omitempty"`
	Repo         string `json:"repo"` // owner/name
	Branch       string `json:"branch"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// DeploymentConfig describes a single-container Deployment.
type DeploymentConfig struct {
	ServerId         string            `json:"server_id"`
	Image            string            `json:"image"`
	RegistryAccountId string           `json:"registry_account_id,omitempty"`
	Environment      map[string]string `json:"environment,omitempty"`
	Volumes          []string          `json:"volumes,omitempty"`
	Ports            []string          `json:"ports,omitempty"`
	PollForUpdates   bool              `json:"poll_for_updates"`
	AutoUpdate       bool              `json:"auto_update"`
}

// StackConfig describes a docker compose Stack.
type StackConfig struct {
	ServerId       string            `json:"server_id"`
	FileContents   string            `json:"file_contents,omitempty"` // inline compose YAML
	RepoId         string            `json:"repo_id,omitempty"`       // or checked out from a repo
	Environment    map[string]string `json:"environment,omitempty"`
	PollForUpdates bool              `json:"poll_for_updates"`
	AutoUpdate     bool              `json:"auto_update"`
	WebhookSecret  string            `json:"webhook_secret,omitempty"`
	WebhookBranch  string            `json:"webhook_branch,omitempty"`
}

// ProcedureStage is one step of a Procedure: an operation against another
// resource, executed in sequence.
type ProcedureStage struct {
	Operation string         `json:"operation"`
	Target    ResourceTarget `json:"target"`
}

// ProcedureConfig describes an ordered sequence of operations plus an
// optional CRON/English schedule (spec §4.8 Scheduler consumes this).
type ProcedureConfig struct {
	Stages           []ProcedureStage `json:"stages"`
	ScheduleFormat   ScheduleFormat   `json:"schedule_format,omitempty"`
	Schedule         string           `json:"schedule,omitempty"`
	ScheduleTimezone string           `json:"schedule_timezone,omitempty"`
	ScheduleEnabled  bool             `json:"schedule_enabled"`
	ScheduleAlert    bool             `json:"schedule_alert"`
	FailureAlert     bool             `json:"failure_alert"`
	WebhookSecret    string           `json:"webhook_secret,omitempty"`
	WebhookBranch    string           `json:"webhook_branch,omitempty"` // "__ANY__" matches any branch
}

// ActionConfig describes a single scripted action plus an optional
// CRON/English schedule.
type ActionConfig struct {
	Script           string           `json:"script"`
	ScheduleFormat   ScheduleFormat   `json:"schedule_format,omitempty"`
	Schedule         string           `json:"schedule,omitempty"`
	ScheduleTimezone string           `json:"schedule_timezone,omitempty"`
	ScheduleEnabled  bool             `json:"schedule_enabled"`
	ScheduleAlert    bool             `json:"schedule_alert"`
	FailureAlert     bool             `json:"failure_alert"`
	WebhookSecret    string           `json:"webhook_secret,omitempty"`
	WebhookBranch    string           `json:"webhook_branch,omitempty"` // "__ANY__" matches any branch
}

// AlerterEndpointKind names which concrete alerter backend an Alerter
// resource drives (C10).
type AlerterEndpointKind string

const (
	AlerterSlack    AlerterEndpointKind = "Slack"
	AlerterDiscord  AlerterEndpointKind = "Discord"
	AlerterNtfy     AlerterEndpointKind = "Ntfy"
	AlerterPushover AlerterEndpointKind = "Pushover"
	AlerterMqtt     AlerterEndpointKind = "Mqtt"
	AlerterWebhook  AlerterEndpointKind = "Webhook"
	AlerterCustomEp AlerterEndpointKind = "Custom"
)

// AlerterConfig describes one fan-out destination (C10).
type AlerterConfig struct {
	Enabled          bool                `json:"enabled"`
	Endpoint         AlerterEndpointKind `json:"endpoint"`
	Url              string              `json:"url,omitempty"`
	Token            string              `json:"token,omitempty"`
	TypeWhitelist    []AlertKind         `json:"type_whitelist,omitempty"`
	TypeBlacklist    []AlertKind         `json:"type_blacklist,omitempty"`
	TargetWhitelist  []ResourceTarget    `json:"target_whitelist,omitempty"`
	TargetBlacklist  []ResourceTarget    `json:"target_blacklist,omitempty"`
	RespectMaintenance bool              `json:"respect_maintenance_window"`
}

// MatchTagsMode selects All/Any semantics for tag filtering (GLOSSARY
// "Match tags").
type MatchTagsMode string

const (
	MatchTagsAll MatchTagsMode = "All"
	MatchTagsAny MatchTagsMode = "Any"
)

// SyncConfig describes a declared-state source and apply options (C9).
type SyncConfig struct {
	FileContents  string        `json:"file_contents,omitempty"`
	RepoId        string        `json:"repo_id,omitempty"`
	ResourcePath  string        `json:"resource_path,omitempty"` // on-host files
	MatchTags     []string      `json:"match_tags,omitempty"`
	MatchTagsMode MatchTagsMode `json:"match_tags_mode,omitempty"`
	Delete        bool          `json:"delete"`
	WebhookSecret string        `json:"webhook_secret,omitempty"`
}
