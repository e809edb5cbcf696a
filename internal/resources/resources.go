// Package resources implements the Resource Store Facade (C5): the
// uniform create/update/rename/delete/update_meta/update_tags lifecycle
// spec §4.5 defines over the ten resource kinds, plus the User/UserGroup/
// ApiKey/Tag/Variable/GitAccount/RegistryAccount collections spec §3
// names alongside them. The generic CRUD-over-JSON-blob shape is carried
// from the teacher's internal/store usage pattern; this package is the
// business-logic layer sitting on top of internal/store's raw
// get/put/list primitives, the way the teacher's internal/engine sits on
// top of its internal/store.
package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/depsgraph"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

// Hooks lets owning packages (statuscache, sync, scheduler) react to
// lifecycle events without internal/resources importing them directly —
// the same inversion the teacher uses for its engine/notify coupling.
type Hooks struct {
	// RefreshStackCache is called after a Stack create/update (spec §4.5).
	RefreshStackCache func(stackId string)
	// RefreshServerStatus is called after a Server/Stack/Deployment update.
	RefreshServerStatus func(serverId string)
	// RefreshResourceSyncPending is called after a Sync create/update.
	RefreshResourceSyncPending func(syncId string)
	// DestroyStack is called before a Stack delete to issue compose down.
	DestroyStack func(stackId string) error
	// RemoveContainer is called before a Deployment delete.
	RemoveContainer func(deploymentId string) error
}

// Facade is the Resource Store Facade.
type Facade struct {
	store *store.Store
	clock clock.Clock
	log   *logging.Logger
	hooks Hooks
}

// New constructs a Facade.
func New(s *store.Store, c clock.Clock, log *logging.Logger, hooks Hooks) *Facade {
	return &Facade{store: s, clock: c, log: log.Component("resources"), hooks: hooks}
}

// Get fetches a Resource by kind and id.
func (f *Facade) Get(kind model.ResourceKind, id string) (*model.Resource, error) {
	return f.store.GetResource(kind, id)
}

// List returns every Resource of kind, optionally restricted to idFilter
// (nil = unrestricted) — the concrete query internal/permissions'
// PermittedIds feeds into for scoped listing (spec §4.4).
func (f *Facade) List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error) {
	return f.store.ListResources(kind, idFilter)
}

// ListEnabledServers satisfies internal/statuscache.ServerSource: every
// Server resource whose config.enabled is true.
func (f *Facade) ListEnabledServers(ctx context.Context) ([]*model.Resource, error) {
	all, err := f.store.ListResources(model.KindServer, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Resource, 0, len(all))
	for _, r := range all {
		cfg, err := DecodeConfig[model.ServerConfig](r.Config)
		if err != nil {
			f.log.Warn("skipping server with undecodable config", "id", r.Id, "error", err)
			continue
		}
		if cfg.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateParams bundles a create() call's inputs.
type CreateParams struct {
	Kind           model.ResourceKind
	Name           string
	Description    string
	Config         model.RawConfig
	Tags           []string
	BasePermission model.PermissionLevelAndSpecific
	Operator       string // UserId
}

// Create enforces unique name, runs validate_create_config, inserts,
// grants the creator Write plus the kind's creator-specific set, runs the
// kind's post_create hook, and appends a Create Update (spec §4.5).
func (f *Facade) Create(p CreateParams) (*model.Resource, error) {
	if p.Name == "" {
		return nil, badRequest(fmt.Errorf("name is required"))
	}
	exists, err := f.store.NameExists(p.Kind, p.Name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: a %s named %q already exists", model.ErrConflict, p.Kind, p.Name)
	}

	cfg := p.Config
	if cfg == nil {
		cfg = model.RawConfig{}
	}
	if err := validateConfig(p.Kind, cfg); err != nil {
		return nil, err
	}

	now := f.clock.Now()
	r := &model.Resource{
		Id:             uuid.NewString(),
		Kind:           p.Kind,
		Name:           p.Name,
		Description:    p.Description,
		Tags:           p.Tags,
		Config:         cfg,
		Info:           model.RawConfig{},
		BasePermission: p.BasePermission,
		UpdatedAt:      now,
	}
	if r.BasePermission.Specific == nil {
		r.BasePermission.Specific = model.NewSpecificSet()
	}

	if err := f.store.PutResource(r); err != nil {
		return nil, err
	}

	if p.Operator != "" {
		grant := model.PermissionLevelAndSpecific{Level: model.PermissionWrite, Specific: creatorSpecificSet(p.Kind)}
		row := &model.PermissionRow{
			UserTargetKind:     model.UserTargetUser,
			UserTargetId:       p.Operator,
			ResourceTargetKind: model.ResourceTargetSpecific,
			ResourceKind:       p.Kind,
			ResourceId:         r.Id,
			Grant:              grant,
		}
		if err := f.store.UpsertPermission(row); err != nil {
			f.log.Warn("failed to grant creator permission", "resource", r.Id, "error", err)
		}
	}

	f.runPostCreate(r)
	f.appendLifecycleUpdate("Create", r, p.Operator, now, fmt.Sprintf("created %s %q", r.Kind, r.Name))

	return r, nil
}

// UpdateParams bundles an update() call's inputs. Only non-nil fields are
// applied ("merge partial onto current", spec §4.5).
type UpdateParams struct {
	Kind     model.ResourceKind
	Id       string
	Partial  model.RawConfig
	Operator string
}

// Update fetches, merges the partial config onto the current one, runs
// validate_update_config, diffs against the original, and — if the diff
// is non-empty — writes and runs post_update plus an Update-kind Update
// record carrying the diff in its log (spec §4.5).
func (f *Facade) Update(p UpdateParams) (*model.Resource, error) {
	r, err := f.store.GetResource(p.Kind, p.Id)
	if err != nil {
		return nil, err
	}

	merged := mergeRawConfig(r.Config, p.Partial)
	if err := validateConfig(p.Kind, merged); err != nil {
		return nil, err
	}

	diff := diffRawConfig(r.Config, merged)
	if len(diff) == 0 {
		return r, nil
	}

	r.Config = merged
	r.UpdatedAt = f.clock.Now()
	if err := f.store.PutResource(r); err != nil {
		return nil, err
	}

	f.runPostUpdate(r)
	f.appendLifecycleUpdate("Update", r, p.Operator, r.UpdatedAt, formatDiff(diff))

	return r, nil
}

// Rename renames a Resource, enforcing unique-name-per-kind.
func (f *Facade) Rename(kind model.ResourceKind, id, newName string) (*model.Resource, error) {
	if newName == "" {
		return nil, badRequest(fmt.Errorf("name is required"))
	}
	exists, err := f.store.NameExists(kind, newName, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: a %s named %q already exists", model.ErrConflict, kind, newName)
	}
	r, err := f.store.GetResource(kind, id)
	if err != nil {
		return nil, err
	}
	r.Name = newName
	r.UpdatedAt = f.clock.Now()
	if err := f.store.PutResource(r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateMeta updates description/template flag/base_permission without
// touching Config (spec §4.5 "update_meta: similar gated path").
func (f *Facade) UpdateMeta(kind model.ResourceKind, id, description string, template bool, basePermission model.PermissionLevelAndSpecific) (*model.Resource, error) {
	r, err := f.store.GetResource(kind, id)
	if err != nil {
		return nil, err
	}
	r.Description = description
	r.Template = template
	r.BasePermission = basePermission
	r.UpdatedAt = f.clock.Now()
	if err := f.store.PutResource(r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateTags replaces a Resource's tag set.
func (f *Facade) UpdateTags(kind model.ResourceKind, id string, tagIds []string) (*model.Resource, error) {
	r, err := f.store.GetResource(kind, id)
	if err != nil {
		return nil, err
	}
	r.Tags = tagIds
	r.UpdatedAt = f.clock.Now()
	if err := f.store.PutResource(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a Resource, running kind-specific teardown hooks first
// (Deployment: remove container if present; Stack: compose down
// --remove-orphans) and then cascading permission rows (spec §4.5). A
// Server, Builder, or Repo still referenced by another resource's
// server_id/builder_id/repo_id is refused with ErrConflict rather than
// deleted out from under its dependents; dependents are not detached. A
// Server has no teardown hook, so its open alerts are not closed.
func (f *Facade) Delete(kind model.ResourceKind, id string) error {
	dependents, err := f.blockingDependents(kind, id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		return fmt.Errorf("%w: %d resource(s) still reference %s %s: %v", model.ErrConflict, len(dependents), kind, id, dependents)
	}

	switch kind {
	case model.KindDeployment:
		if f.hooks.RemoveContainer != nil {
			if err := f.hooks.RemoveContainer(id); err != nil {
				f.log.Warn("failed to remove container before delete", "deployment", id, "error", err)
			}
		}
	case model.KindStack:
		if f.hooks.DestroyStack != nil {
			if err := f.hooks.DestroyStack(id); err != nil {
				f.log.Warn("failed to destroy stack before delete", "stack", id, "error", err)
			}
		}
	}

	if err := f.store.DeleteResource(kind, id); err != nil {
		return err
	}
	if err := f.store.DeletePermissionsForResource(kind, id); err != nil {
		f.log.Warn("failed to cascade-delete permissions", "kind", kind, "id", id, "error", err)
	}
	return nil
}

// blockingDependents returns the ids of other resources that still
// reference id via server_id/builder_id/repo_id, for the kinds other
// resources can hang off of. It builds the whole-store dependency graph
// and asks it who depends on id rather than re-deriving that walk ad hoc.
func (f *Facade) blockingDependents(kind model.ResourceKind, id string) ([]string, error) {
	if kind != model.KindServer && kind != model.KindBuilder && kind != model.KindRepo {
		return nil, nil
	}
	g, err := f.buildDependencyGraph()
	if err != nil {
		return nil, err
	}
	return g.Dependents(id), nil
}

// buildDependencyGraph walks every resource kind building a
// depsgraph.Graph the same way the Sync Reconciler builds one for
// Procedure-stage cycle detection, keyed on the server_id/builder_id/
// repo_id edges every resource's raw config may carry.
func (f *Facade) buildDependencyGraph() (*depsgraph.Graph, error) {
	var nodes []depsgraph.Node
	for _, k := range model.AllKinds() {
		rs, err := f.store.ListResources(k, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			nodes = append(nodes, depsgraph.Node{Id: r.Id, DependsOn: referenceIds(r.Config)})
		}
	}
	return depsgraph.Build(nodes), nil
}

// ResourceDependencies reports what a resource depends on and what
// depends on it, the read-side counterpart to the check Delete enforces
// before it will remove a Server, Builder, or Repo.
type ResourceDependencies struct {
	DependsOn  []string `json:"depends_on"`
	Dependents []string `json:"dependents"`
}

// Dependencies reports id's dependency edges in both directions.
func (f *Facade) Dependencies(kind model.ResourceKind, id string) (ResourceDependencies, error) {
	g, err := f.buildDependencyGraph()
	if err != nil {
		return ResourceDependencies{}, err
	}
	return ResourceDependencies{DependsOn: g.Dependencies(id), Dependents: g.Dependents(id)}, nil
}

// referenceIds extracts the ids a resource's raw config points at other
// resources by, the same server_id/builder_id/repo_id fields
// internal/permissions.parentServerId and validateConfig read individually.
func referenceIds(cfg model.RawConfig) []string {
	var out []string
	for _, key := range []string{"server_id", "builder_id", "repo_id"} {
		if v, ok := cfg[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (f *Facade) runPostCreate(r *model.Resource) {
	switch r.Kind {
	case model.KindStack:
		if f.hooks.RefreshStackCache != nil {
			f.hooks.RefreshStackCache(r.Id)
		}
	case model.KindSync:
		if f.hooks.RefreshResourceSyncPending != nil {
			f.hooks.RefreshResourceSyncPending(r.Id)
		}
	case model.KindServer:
		if f.hooks.RefreshServerStatus != nil {
			f.hooks.RefreshServerStatus(r.Id)
		}
	}
}

func (f *Facade) runPostUpdate(r *model.Resource) {
	switch r.Kind {
	case model.KindStack:
		if f.hooks.RefreshStackCache != nil {
			f.hooks.RefreshStackCache(r.Id)
		}
		if serverId, ok := r.Config["server_id"].(string); ok && f.hooks.RefreshServerStatus != nil {
			f.hooks.RefreshServerStatus(serverId)
		}
	case model.KindDeployment:
		if serverId, ok := r.Config["server_id"].(string); ok && f.hooks.RefreshServerStatus != nil {
			f.hooks.RefreshServerStatus(serverId)
		}
	case model.KindServer:
		if f.hooks.RefreshServerStatus != nil {
			f.hooks.RefreshServerStatus(r.Id)
		}
	case model.KindSync:
		if f.hooks.RefreshResourceSyncPending != nil {
			f.hooks.RefreshResourceSyncPending(r.Id)
		}
	}
}

// appendLifecycleUpdate records the Create/Update Update entry spec §4.5
// names ("append a Create Update" / "append an Update Update with the
// diff rendered in logs"). Failure to persist is warn-logged, matching
// the Update Log's own "best-effort" persistence rule (spec §4.7).
func (f *Facade) appendLifecycleUpdate(operation string, r *model.Resource, operator string, ts time.Time, message string) {
	u := &model.Update{
		Id:        uuid.NewString(),
		Operation: operation,
		Target:    model.ResourceTarget{Kind: r.Kind, Id: r.Id},
		Operator:  operator,
		Status:    model.UpdateInProgress,
		Start:     ts,
	}
	u.PushLog(model.Log{Stage: operation, Stdout: message, Success: true, Start: ts, End: ts})
	u.Finalize(ts)
	if err := f.store.PutUpdate(u); err != nil {
		f.log.Warn("failed to persist lifecycle update", "operation", operation, "target", u.Target, "error", err)
	}
}

// mergeRawConfig applies partial onto current, key by key — unset keys in
// partial leave current's value untouched ("merge partial onto current
// (None fields preserved)", spec §4.5).
func mergeRawConfig(current, partial model.RawConfig) model.RawConfig {
	out := current.Clone()
	if out == nil {
		out = model.RawConfig{}
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// diffRawConfig returns the set of keys whose value changed between
// before and after, each mapped to a [before, after] pair for log
// rendering.
func diffRawConfig(before, after model.RawConfig) map[string][2]any {
	diff := make(map[string][2]any)
	seen := make(map[string]struct{})
	for k, av := range after {
		seen[k] = struct{}{}
		bv, ok := before[k]
		if !ok || !equalJSON(bv, av) {
			diff[k] = [2]any{bv, av}
		}
	}
	for k, bv := range before {
		if _, ok := seen[k]; ok {
			continue
		}
		diff[k] = [2]any{bv, nil}
	}
	return diff
}

func equalJSON(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func formatDiff(diff map[string][2]any) string {
	out := ""
	for k, pair := range diff {
		out += fmt.Sprintf("%s: %v -> %v\n", k, pair[0], pair[1])
	}
	return out
}
