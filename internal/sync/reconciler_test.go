package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/resources"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(time.Duration) <-chan time.Time   { ch := make(chan time.Time); return ch }
func (c fixedClock) Since(t time.Time) time.Duration        { return c.now.Sub(t) }

var _ clock.Clock = fixedClock{}

// fakeFacade is an in-memory ResourceFacade double, keyed by kind+name.
type fakeFacade struct {
	byId   map[string]*model.Resource
	tags   map[string]*model.Tag
	nextId int
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{byId: map[string]*model.Resource{}, tags: map[string]*model.Tag{}}
}

func (f *fakeFacade) id() string {
	f.nextId++
	return uuid.NewString()
}

func (f *fakeFacade) seed(r *model.Resource) { f.byId[string(r.Kind)+"|"+r.Id] = r }

func (f *fakeFacade) Get(kind model.ResourceKind, id string) (*model.Resource, error) {
	r, ok := f.byId[string(kind)+"|"+id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r, nil
}

func (f *fakeFacade) List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, r := range f.byId {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFacade) Create(p resources.CreateParams) (*model.Resource, error) {
	r := &model.Resource{
		Id: f.id(), Kind: p.Kind, Name: p.Name, Description: p.Description,
		Tags: p.Tags, Config: p.Config, Info: model.RawConfig{},
	}
	f.byId[string(r.Kind)+"|"+r.Id] = r
	return r, nil
}

func (f *fakeFacade) Update(p resources.UpdateParams) (*model.Resource, error) {
	r, err := f.Get(p.Kind, p.Id)
	if err != nil {
		return nil, err
	}
	merged := r.Config.Clone()
	for k, v := range p.Partial {
		merged[k] = v
	}
	r.Config = merged
	return r, nil
}

func (f *fakeFacade) UpdateMeta(kind model.ResourceKind, id, description string, template bool, bp model.PermissionLevelAndSpecific) (*model.Resource, error) {
	r, err := f.Get(kind, id)
	if err != nil {
		return nil, err
	}
	r.Description = description
	r.Template = template
	return r, nil
}

func (f *fakeFacade) UpdateTags(kind model.ResourceKind, id string, tagIds []string) (*model.Resource, error) {
	r, err := f.Get(kind, id)
	if err != nil {
		return nil, err
	}
	r.Tags = tagIds
	return r, nil
}

func (f *fakeFacade) Delete(kind model.ResourceKind, id string) error {
	delete(f.byId, string(kind)+"|"+id)
	return nil
}

func (f *fakeFacade) ListTags() ([]*model.Tag, error) {
	var out []*model.Tag
	for _, t := range f.tags {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeFacade) CreateTag(name, color string) (*model.Tag, error) {
	t := &model.Tag{Id: f.id(), Name: name, Color: color}
	f.tags[t.Id] = t
	return t, nil
}

type fakeSource struct{ content []byte }

func (s fakeSource) LoadFromRepo(ctx context.Context, repoId string) ([]byte, error) { return s.content, nil }
func (s fakeSource) LoadFromPath(ctx context.Context, path string) ([]byte, error)   { return s.content, nil }

const sampleToml = `
[[server]]
name = "prod-1"
description = "primary"
tags = ["prod"]

[server.config]
address = "http://prod-1:8120"
enabled = true
`

func newTestReconciler(t *testing.T, facade *fakeFacade, syncCfg model.SyncConfig) *Reconciler {
	t.Helper()
	syncRes := &model.Resource{Id: "sync-1", Kind: model.KindSync, Name: "main-sync"}
	cfg, err := resources.EncodeConfig(syncCfg)
	if err != nil {
		t.Fatalf("encode sync config: %v", err)
	}
	syncRes.Config = cfg
	facade.seed(syncRes)
	return New(facade, fakeSource{content: []byte(sampleToml)}, fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, logging.New(false))
}

func TestRunCreatesDeclaredResource(t *testing.T) {
	facade := newFakeFacade()
	r := newTestReconciler(t, facade, model.SyncConfig{FileContents: sampleToml})

	result, err := r.Run(context.Background(), "sync-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 created, got %d (errors: %v)", result.Created, result.Errors)
	}

	servers, _ := facade.List(model.KindServer, nil)
	if len(servers) != 1 || servers[0].Name != "prod-1" {
		t.Fatalf("expected prod-1 to be created, got %+v", servers)
	}
}

func TestRunIsIdempotentOnSecondPass(t *testing.T) {
	facade := newFakeFacade()
	r := newTestReconciler(t, facade, model.SyncConfig{FileContents: sampleToml})

	if _, err := r.Run(context.Background(), "sync-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := r.Run(context.Background(), "sync-1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Created != 0 || result.Updated != 0 || result.Deleted != 0 {
		t.Fatalf("expected a no-op second pass, got %+v", result)
	}
}

func TestRunDeletesWhenDeleteEnabled(t *testing.T) {
	facade := newFakeFacade()
	facade.seed(&model.Resource{Id: "stale-1", Kind: model.KindServer, Name: "stale", Config: model.RawConfig{}})
	r := newTestReconciler(t, facade, model.SyncConfig{FileContents: sampleToml, Delete: true})

	result, err := r.Run(context.Background(), "sync-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected the undeclared server to be deleted, got %+v", result)
	}
}

func TestRunRespectsMatchTagsFilter(t *testing.T) {
	facade := newFakeFacade()
	// An existing, untagged server should survive delete=true when
	// match_tags scopes the sync to "prod" only.
	facade.seed(&model.Resource{Id: "other-1", Kind: model.KindServer, Name: "other", Config: model.RawConfig{}})
	r := newTestReconciler(t, facade, model.SyncConfig{
		FileContents: sampleToml, Delete: true,
		MatchTags: []string{"prod"}, MatchTagsMode: model.MatchTagsAny,
	})

	result, err := r.Run(context.Background(), "sync-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Deleted != 0 {
		t.Fatalf("expected the out-of-scope server to survive, got %+v", result)
	}
	servers, _ := facade.List(model.KindServer, nil)
	if len(servers) != 2 {
		t.Fatalf("expected both servers to remain, got %d", len(servers))
	}
}

func TestZeroConfigMapResetsOmittedFields(t *testing.T) {
	defaults := zeroConfigMap(model.KindServer)
	if _, ok := defaults["address"]; !ok {
		t.Fatalf("expected address key present in defaults")
	}
	desired := overlay(defaults, map[string]any{"address": "http://x:8120"})
	if desired["enabled"] != false {
		t.Fatalf("expected enabled to reset to its zero default, got %v", desired["enabled"])
	}
}

func TestProcedureDependencyCyclesDetected(t *testing.T) {
	declared := []DeclaredResource{
		{Name: "a", Config: map[string]any{
			"stages": []any{map[string]any{"operation": "Run", "target": map[string]any{"kind": "Procedure", "id": "b"}}},
		}},
		{Name: "b", Config: map[string]any{
			"stages": []any{map[string]any{"operation": "Run", "target": map[string]any{"kind": "Procedure", "id": "a"}}},
		}},
	}
	errs := procedureDependencyCycles(declared)
	if len(errs) == 0 {
		t.Fatalf("expected a cycle error")
	}
}
