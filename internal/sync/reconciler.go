package sync

import (
	"context"
	"fmt"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/depsgraph"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/metrics"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/resources"
)

// ResourceFacade is the slice of internal/resources.Facade the
// Reconciler needs — kept as an interface so tests can substitute a
// fake, the way internal/statuscache depends on ServerSource rather than
// the concrete Facade.
type ResourceFacade interface {
	Get(kind model.ResourceKind, id string) (*model.Resource, error)
	List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error)
	Create(p resources.CreateParams) (*model.Resource, error)
	Update(p resources.UpdateParams) (*model.Resource, error)
	UpdateMeta(kind model.ResourceKind, id, description string, template bool, basePermission model.PermissionLevelAndSpecific) (*model.Resource, error)
	UpdateTags(kind model.ResourceKind, id string, tagIds []string) (*model.Resource, error)
	Delete(kind model.ResourceKind, id string) error
	TagStore
}

// ContentSource loads the raw ResourcesToml bytes a Sync resource
// declares, from whichever backing the config names (spec §4.9 "Input:
// ... parsed from either inline file_contents, a git-repo checkout, or
// on-host files"). Repo/path loading is injected so this package never
// imports the git-clone or filesystem-walking machinery directly.
type ContentSource interface {
	LoadFromRepo(ctx context.Context, repoId string) ([]byte, error)
	LoadFromPath(ctx context.Context, path string) ([]byte, error)
}

// Reconciler is the Sync Reconciler (C9).
type Reconciler struct {
	facade ResourceFacade
	source ContentSource
	clock  clock.Clock
	log    *logging.Logger
}

// New constructs a Reconciler.
func New(facade ResourceFacade, source ContentSource, c clock.Clock, log *logging.Logger) *Reconciler {
	return &Reconciler{facade: facade, source: source, clock: c, log: log.Component("sync")}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Created       int
	Updated       int
	Deleted       int
	PendingDeploy int
	Errors        []string
}

// Run loads a Sync resource's declared state, diffs it against stored
// resources kind by kind in dependency order, and applies the plan
// (spec §4.9). Per-entry errors are collected rather than aborting the
// run ("the overall sync completes best-effort").
func (r *Reconciler) Run(ctx context.Context, syncId string) (*Result, error) {
	start := r.clock.Now()
	defer func() { metrics.SyncApplyDuration.Observe(r.clock.Now().Sub(start).Seconds()) }()

	syncRes, err := r.facade.Get(model.KindSync, syncId)
	if err != nil {
		return nil, err
	}
	cfg, err := resources.DecodeConfig[model.SyncConfig](syncRes.Config)
	if err != nil {
		return nil, fmt.Errorf("decode sync config: %w", err)
	}

	content, err := r.load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	declared, err := ParseResourcesToml(content)
	if err != nil {
		return nil, err
	}

	idx, err := newTagIndex(r.facade)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, kind := range model.AllKinds() {
		existing, err := r.facade.List(kind, nil)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: list existing: %v", kind, err))
			continue
		}

		declaredForKind := declared.ForKind(kind)
		if kind == model.KindProcedure {
			if cycleErrs := procedureDependencyCycles(declaredForKind); len(cycleErrs) > 0 {
				for _, e := range cycleErrs {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", kind, e))
				}
				continue
			}
		}

		plan, planErrs := planKind(kind, declaredForKind, existing, cfg.Delete, cfg.MatchTags, cfg.MatchTagsMode, idx)
		for _, e := range planErrs {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", kind, e))
		}
		if kind == model.KindSync {
			// The running sync never deletes its own resource.
			kept := plan.ToDelete[:0]
			for _, d := range plan.ToDelete {
				if d.Id != syncId {
					kept = append(kept, d)
				}
			}
			plan.ToDelete = kept
		}
		r.apply(plan, result)
	}

	r.log.Info("sync reconciled", "sync", syncId,
		"created", result.Created, "updated", result.Updated, "deleted", result.Deleted,
		"pending_deploy", result.PendingDeploy, "errors", len(result.Errors))
	return result, nil
}

func (r *Reconciler) apply(plan Plan, result *Result) {
	for _, c := range plan.ToCreate {
		_, err := r.facade.Create(resources.CreateParams{
			Kind: c.Kind, Name: c.Name, Description: c.Description,
			Config: c.Config, Tags: c.Tags, Operator: "sync",
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %q: create: %v", c.Kind, c.Name, err))
			continue
		}
		result.Created++
		if isDeployable(c.Kind) {
			result.PendingDeploy++
		}
	}

	for _, u := range plan.ToUpdate {
		failed := false
		if u.ConfigChanged {
			if _, err := r.facade.Update(resources.UpdateParams{Kind: u.Kind, Id: u.Id, Partial: u.Config, Operator: "sync"}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %q: update: %v", u.Kind, u.Name, err))
				failed = true
			}
		}
		if u.MetaChanged && !failed {
			cur, err := r.facade.Get(u.Kind, u.Id)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %q: reload before meta update: %v", u.Kind, u.Name, err))
				continue
			}
			if _, err := r.facade.UpdateMeta(u.Kind, u.Id, u.Description, u.Template, cur.BasePermission); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %q: update meta: %v", u.Kind, u.Name, err))
				failed = true
			}
			if _, err := r.facade.UpdateTags(u.Kind, u.Id, u.Tags); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s %q: update tags: %v", u.Kind, u.Name, err))
				failed = true
			}
		}
		if failed {
			continue
		}
		result.Updated++
		if u.ConfigChanged && isDeployable(u.Kind) {
			result.PendingDeploy++
		}
	}

	for _, d := range plan.ToDelete {
		if err := r.facade.Delete(d.Kind, d.Id); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %q: delete: %v", d.Kind, d.Name, err))
			continue
		}
		result.Deleted++
	}
}

func isDeployable(kind model.ResourceKind) bool {
	return kind == model.KindStack || kind == model.KindDeployment
}

func (r *Reconciler) load(ctx context.Context, cfg model.SyncConfig) ([]byte, error) {
	switch {
	case cfg.FileContents != "":
		return []byte(cfg.FileContents), nil
	case cfg.RepoId != "":
		return r.source.LoadFromRepo(ctx, cfg.RepoId)
	case cfg.ResourcePath != "":
		return r.source.LoadFromPath(ctx, cfg.ResourcePath)
	default:
		return nil, fmt.Errorf("sync has no declared-state source (file_contents, repo_id, and resource_path all empty)")
	}
}

// procedureDependencyCycles detects Procedure-stage-to-Procedure
// reference cycles within one sync batch before anything is applied.
// AllKinds' fixed ordering already linearizes every other cross-kind
// reference (Server before Deployment, Builder before Build, ...), but
// Procedure stages can target other Procedures, which is the one
// in-kind edge that can cycle — depsgraph.DetectCycles is reused here
// exactly as the Sync-id-level ordering would otherwise need it.
func procedureDependencyCycles(declared []DeclaredResource) []error {
	nodes := make([]depsgraph.Node, 0, len(declared))
	for _, d := range declared {
		nodes = append(nodes, depsgraph.Node{Id: d.Name, DependsOn: procedureStageTargets(d.Config)})
	}
	cycles := depsgraph.Build(nodes).DetectCycles()
	errs := make([]error, 0, len(cycles))
	for _, c := range cycles {
		errs = append(errs, fmt.Errorf("dependency cycle among procedures: %v", c))
	}
	return errs
}

// procedureStageTargets extracts the names of other Procedures a
// declared Procedure's stages target, from the generic config blob.
func procedureStageTargets(cfg map[string]any) []string {
	stagesRaw, ok := cfg["stages"].([]any)
	if !ok {
		if s, ok := cfg["stages"].([]map[string]any); ok {
			var deps []string
			for _, stage := range s {
				if name, ok := procedureStageTargetName(stage); ok {
					deps = append(deps, name)
				}
			}
			return deps
		}
		return nil
	}
	var deps []string
	for _, raw := range stagesRaw {
		stage, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := procedureStageTargetName(stage); ok {
			deps = append(deps, name)
		}
	}
	return deps
}

func procedureStageTargetName(stage map[string]any) (string, bool) {
	target, ok := stage["target"].(map[string]any)
	if !ok {
		return "", false
	}
	if kind, _ := target["kind"].(string); kind != string(model.KindProcedure) {
		return "", false
	}
	if name, ok := target["id"].(string); ok {
		return name, true
	}
	return "", false
}
