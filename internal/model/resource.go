package model

import "time"

// Resource is the generic envelope every Resource[K] in spec §3 carries.
// K-specific Config/Info are stored as opaque JSON (json.RawMessage) at
// this layer; internal/resources unmarshals them into the typed
// per-kind config/info structs before handing them to callers. This
// mirrors the teacher's bbolt-stores-JSON-blobs convention
// (internal/store/bolt.go's UpdateRecord) generalized to ten kinds
// instead of one.
type Resource struct {
	Id             string                     `json:"id"`
	Kind           ResourceKind               `json:"kind"`
	Name           string                     `json:"name"`
	Description    string                     `json:"description"`
	Template       bool                       `json:"template"`
	Tags           []string                   `json:"tags"` // ordered TagIds
	Config         RawConfig                  `json:"config"`
	Info           RawConfig                  `json:"info"`
	BasePermission PermissionLevelAndSpecific `json:"base_permission"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// RawConfig is an opaque, kind-specific JSON document. Never nil: the
// empty value is `{}`, matching the invariant "absence is represented by
// kind-specific empty values, never null" (spec §3).
type RawConfig map[string]any

// Clone returns a deep-enough copy for safe mutation by callers — the
// status cache hands out clones of cached resources, never the stored
// pointer (spec §3 "Ownership").
func (r RawConfig) Clone() RawConfig {
	out := make(RawConfig, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Tag is a user-defined label resources can be tagged with. Uniqueness of
// Name is enforced by internal/store with ErrConflict on duplicates.
type Tag struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Variable backs internal/interpolate. Secrets and plain variables share
// this shape; IsSecret controls whether the value is ever echoed back in
// a read response (it is always available for interpolation).
type Variable struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	IsSecret bool   `json:"is_secret"`
}

// GitAccount is a named git credential referenced by Repo/Build configs
// and consumed by internal/sync when checking out a declared-state repo.
type GitAccount struct {
	Id       string `json:"id"`
	Domain   string `json:"domain"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// RegistryAccount is a named container-registry credential referenced by
// Build/Deployment/Stack configs for authenticated pulls/pushes.
type RegistryAccount struct {
	Id       string `json:"id"`
	Domain   string `json:"domain"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
