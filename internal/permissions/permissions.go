// Package permissions implements the Permission Evaluator (C4): the
// resource-scoped capability model every execution path in internal/
// dispatch and internal/resources consults before acting. It generalizes
// the teacher's role-based internal/auth/permissions.go (three fixed
// roles intersected with an optional token scope) into the richer
// per-resource union-merge model spec §4.4 requires.
package permissions

import (
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

// Mode controls the "transparent-mode" starting grant of §4.4 step 2.
type Mode int

const (
	// ModeRestrictive starts every (user, resource) pair at (None, ∅).
	ModeRestrictive Mode = iota
	// ModeTransparent starts every (user, resource) pair at (Read, ∅) —
	// i.e. every authenticated user can read every resource by default.
	ModeTransparent
)

// Evaluator computes effective(user, resource) per spec §4.4.
type Evaluator struct {
	store *store.Store
	mode  Mode
}

// New creates an Evaluator reading permission state from s.
func New(s *store.Store, mode Mode) *Evaluator {
	return &Evaluator{store: s, mode: mode}
}

// parentKind returns the kind a Stack/Deployment's specific-permission set
// inherits from (spec §4.4 step 3: "Stack/Deployment inherit from their
// Server"), and false if kind has no parent.
func parentKind(kind model.ResourceKind) (model.ResourceKind, bool) {
	switch kind {
	case model.KindStack, model.KindDeployment:
		return model.KindServer, true
	default:
		return "", false
	}
}

// parentServerId extracts the server_id a Stack/Deployment config points
// at, used to fetch the parent resource for specific-set inheritance.
func parentServerId(r *model.Resource) string {
	if v, ok := r.Config["server_id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Effective computes (Level, {SpecificPermission}) for (user, resource)
// by composing the six sources named in spec §4.4, in order.
func (e *Evaluator) Effective(user *model.User, resource *model.Resource) (model.PermissionLevelAndSpecific, error) {
	// Step 1: admin dominance.
	if user.Admin {
		return model.PermissionLevelAndSpecific{Level: model.PermissionWrite, Specific: model.AllSpecificPermissions()}, nil
	}

	// Step 2: starting grant.
	eff := model.PermissionLevelAndSpecific{Specific: model.NewSpecificSet()}
	if e.mode == ModeTransparent {
		eff.Level = model.PermissionRead
	}

	// Step 3: parent specific-set inheritance.
	if pk, ok := parentKind(resource.Kind); ok {
		if serverId := parentServerId(resource); serverId != "" {
			if parent, err := e.store.GetResource(pk, serverId); err == nil {
				parentEff, err := e.Effective(user, parent)
				if err != nil {
					return eff, err
				}
				eff.Specific = eff.Specific.Union(parentEff.Specific)
			}
		}
	}

	// Step 4: resource.base_permission.
	eff = eff.Merge(resource.BasePermission)

	// Step 5: user.all[K].
	if grant, ok := user.All[resource.Kind]; ok {
		eff = eff.Merge(grant)
	}

	// Step 6: each group's all[K].
	groups, err := e.store.GroupsForUser(user.Id)
	if err != nil {
		return eff, err
	}
	for _, g := range groups {
		if grant, ok := g.All[resource.Kind]; ok {
			eff = eff.Merge(grant)
		}
	}

	// Step 7: explicit Permission rows keyed to (user or group) x resource,
	// both kind-wide and resource-specific.
	rows, err := e.explicitRows(user, groups, resource)
	if err != nil {
		return eff, err
	}
	for _, row := range rows {
		eff = eff.Merge(row.Grant)
	}

	return eff, nil
}

func (e *Evaluator) explicitRows(user *model.User, groups []*model.UserGroup, resource *model.Resource) ([]*model.PermissionRow, error) {
	var out []*model.PermissionRow

	collect := func(targetKind model.UserTargetKind, targetId string) error {
		rows, err := e.store.PermissionsForUserTarget(targetKind, targetId)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.ResourceTargetKind == model.ResourceTargetKindWide && r.ResourceKind == resource.Kind {
				out = append(out, r)
			} else if r.ResourceTargetKind == model.ResourceTargetSpecific && r.ResourceKind == resource.Kind && r.ResourceId == resource.Id {
				out = append(out, r)
			}
		}
		return nil
	}

	if err := collect(model.UserTargetUser, user.Id); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := collect(model.UserTargetGroup, g.Id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Required builds the (level, specific) shape an operation demands, e.g.
// Required(model.PermissionWrite, model.SpecificTerminal) for
// "Write.terminal()" in spec §4.4.
func Required(level model.PermissionLevel, specific ...model.SpecificPermission) model.PermissionLevelAndSpecific {
	return model.PermissionLevelAndSpecific{Level: level, Specific: model.NewSpecificSet(specific...)}
}

// Fulfills reports whether effective satisfies required (spec §4.4
// fulfills()).
func Fulfills(effective, required model.PermissionLevelAndSpecific) bool {
	return effective.Fulfills(required)
}

// unrestricted reports whether effective grants unscoped visibility of a
// kind — admin, transparent-mode floor, or a non-None user.all[K] — per
// §4.4's listing rule: "if effective is unrestricted ... the query is
// unfiltered".
func (e *Evaluator) unrestricted(user *model.User, kind model.ResourceKind) bool {
	if user.Admin {
		return true
	}
	if e.mode == ModeTransparent {
		return true
	}
	if grant, ok := user.All[kind]; ok && grant.Level > model.PermissionNone {
		return true
	}
	return false
}

// PermittedIds computes the scoped id set for a listing query when
// effective is not unrestricted: the union of (ids with non-None
// base_permission) ∪ (ids with a matching Permission row), per §4.4's
// listing rule. A nil set with unrestricted=true means "do not filter".
func (e *Evaluator) PermittedIds(user *model.User, kind model.ResourceKind) (ids map[string]struct{}, unrestricted bool, err error) {
	if e.unrestricted(user, kind) {
		return nil, true, nil
	}

	ids = make(map[string]struct{})

	all, err := e.store.ListResources(kind, nil)
	if err != nil {
		return nil, false, err
	}
	for _, r := range all {
		if r.BasePermission.Level > model.PermissionNone {
			ids[r.Id] = struct{}{}
		}
	}

	groups, err := e.store.GroupsForUser(user.Id)
	if err != nil {
		return nil, false, err
	}
	addFromRows := func(targetKind model.UserTargetKind, targetId string) error {
		rows, err := e.store.PermissionsForUserTarget(targetKind, targetId)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.ResourceTargetKind == model.ResourceTargetKindWide && r.ResourceKind == kind {
				// A kind-wide explicit row makes every resource of that
				// kind visible; fold it into ids by adding them all.
				for _, res := range all {
					ids[res.Id] = struct{}{}
				}
			} else if r.ResourceTargetKind == model.ResourceTargetSpecific && r.ResourceKind == kind {
				ids[r.ResourceId] = struct{}{}
			}
		}
		return nil
	}
	if err := addFromRows(model.UserTargetUser, user.Id); err != nil {
		return nil, false, err
	}
	for _, g := range groups {
		if err := addFromRows(model.UserTargetGroup, g.Id); err != nil {
			return nil, false, err
		}
	}

	return ids, false, nil
}
