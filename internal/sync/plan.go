package sync

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/komodore/core/internal/model"
)

// PlannedCreate is one to_create plan entry.
type PlannedCreate struct {
	Kind        model.ResourceKind
	Name        string
	Description string
	Template    bool
	Config      model.RawConfig
	Tags        []string // resolved tag ids
}

// PlannedUpdate is one to_update plan entry. ConfigChanged/MetaChanged
// are split out so Apply only issues the calls a given update actually
// needs (spec §4.9 step 3: "minimize the stored/declared distance").
type PlannedUpdate struct {
	Kind          model.ResourceKind
	Id            string
	Name          string
	Config        model.RawConfig
	ConfigChanged bool
	Description   string
	Template      bool
	Tags          []string
	MetaChanged   bool
}

// PlannedDelete is one to_delete plan entry (only populated when the
// owning Sync's delete flag is set).
type PlannedDelete struct {
	Kind model.ResourceKind
	Id   string
	Name string
}

// Plan is the three-way diff's output: what the Sync Reconciler would do
// to bring stored state in line with declared state (spec §4.9 step 2).
type Plan struct {
	ToCreate []PlannedCreate
	ToUpdate []PlannedUpdate
	ToDelete []PlannedDelete
}

// Empty reports Testable Property 6, sync idempotence: a second pass over
// identical declared state plans nothing.
func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// planKind computes the to_create/to_update/to_delete partition for one
// resource kind (spec §4.9 steps 1-3), against the subset of existing
// resources that pass the Sync's match_tags filter.
func planKind(kind model.ResourceKind, declared []DeclaredResource, existing []*model.Resource, deleteEnabled bool, matchTags []string, matchMode model.MatchTagsMode, idx *tagIndex) (Plan, []error) {
	var plan Plan
	var errs []error

	existingByName := make(map[string]*model.Resource, len(existing))
	for _, r := range existing {
		if !idx.matches(r.Tags, matchTags, matchMode) {
			continue
		}
		existingByName[r.Name] = r
	}

	declaredByName := make(map[string]DeclaredResource, len(declared))
	for _, d := range declared {
		declaredByName[d.Name] = d
	}

	defaults := zeroConfigMap(kind)

	for name, d := range declaredByName {
		tagIds, err := idx.ensure(d.Tags)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		desired := overlay(defaults, d.Config)

		existingR, ok := existingByName[name]
		if !ok {
			plan.ToCreate = append(plan.ToCreate, PlannedCreate{
				Kind: kind, Name: name, Description: d.Description, Template: d.Template,
				Config: desired, Tags: tagIds,
			})
			continue
		}

		configChanged := !equalRawConfig(existingR.Config, desired)
		metaChanged := existingR.Description != d.Description ||
			existingR.Template != d.Template ||
			!sameTagSet(existingR.Tags, tagIds)
		if !configChanged && !metaChanged {
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, PlannedUpdate{
			Kind: kind, Id: existingR.Id, Name: name,
			Config: desired, ConfigChanged: configChanged,
			Description: d.Description, Template: d.Template, Tags: tagIds, MetaChanged: metaChanged,
		})
	}

	if deleteEnabled {
		for name, r := range existingByName {
			if _, ok := declaredByName[name]; !ok {
				plan.ToDelete = append(plan.ToDelete, PlannedDelete{Kind: kind, Id: r.Id, Name: name})
			}
		}
	}

	return plan, errs
}

// overlay layers declared config keys onto a kind's zero-value defaults,
// so any field the declared entry omits resets to its default rather
// than inheriting whatever is currently stored (spec §4.9 step 3: "merge
// the declared partial onto the stored default (so unset fields reset)").
func overlay(defaults model.RawConfig, declared map[string]any) model.RawConfig {
	out := make(model.RawConfig, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range declared {
		out[k] = v
	}
	return out
}

// zeroConfigMap builds a kind's config defaults keyed by json tag,
// including fields whose zero value would normally be omitted by
// `omitempty` — reflection is used instead of encoding/json so that
// every field is present, which overlay's reset-to-default behavior
// depends on.
func zeroConfigMap(kind model.ResourceKind) model.RawConfig {
	var zero any
	switch kind {
	case model.KindServer:
		zero = model.ServerConfig{}
	case model.KindBuilder:
		zero = model.BuilderConfig{}
	case model.KindBuild:
		zero = model.BuildConfig{}
	case model.KindRepo:
		zero = model.RepoConfig{}
	case model.KindDeployment:
		zero = model.DeploymentConfig{}
	case model.KindStack:
		zero = model.StackConfig{}
	case model.KindProcedure:
		zero = model.ProcedureConfig{}
	case model.KindAction:
		zero = model.ActionConfig{}
	case model.KindAlerter:
		zero = model.AlerterConfig{}
	case model.KindSync:
		zero = model.SyncConfig{}
	default:
		return model.RawConfig{}
	}
	return structFieldsToRawConfig(zero)
}

func structFieldsToRawConfig(v any) model.RawConfig {
	out := model.RawConfig{}
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			continue
		}
		out[name] = rv.Field(i).Interface()
	}
	return out
}

func equalRawConfig(a, b model.RawConfig) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
