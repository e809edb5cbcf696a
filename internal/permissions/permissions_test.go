package permissions

import (
	"path/filepath"
	"testing"

	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdminDominance(t *testing.T) {
	s := newTestStore(t)
	ev := New(s, ModeRestrictive)

	admin := &model.User{Id: "u1", Admin: true}
	resource := &model.Resource{Id: "r1", Kind: model.KindStack}

	eff, err := ev.Effective(admin, resource)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	required := Required(model.PermissionWrite, model.SpecificTerminal, model.SpecificAttach)
	if !Fulfills(eff, required) {
		t.Errorf("admin should fulfill every required shape, got %+v", eff)
	}
}

func TestPermissionMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ev := New(s, ModeRestrictive)

	user := &model.User{Id: "u1", All: map[model.ResourceKind]model.PermissionLevelAndSpecific{}}
	resource := &model.Resource{Id: "r1", Kind: model.KindStack, Name: "web"}
	if err := s.PutResource(resource); err != nil {
		t.Fatalf("put resource: %v", err)
	}

	before, err := ev.Effective(user, resource)
	if err != nil {
		t.Fatalf("effective before: %v", err)
	}
	if before.Level != model.PermissionNone {
		t.Fatalf("expected None before any grant, got %v", before.Level)
	}

	// Add a base_permission grant; effective must not decrease.
	resource.BasePermission = model.PermissionLevelAndSpecific{Level: model.PermissionRead}
	if err := s.PutResource(resource); err != nil {
		t.Fatalf("put resource: %v", err)
	}
	afterBase, err := ev.Effective(user, resource)
	if err != nil {
		t.Fatalf("effective after base: %v", err)
	}
	if afterBase.Level < before.Level {
		t.Fatalf("effective decreased after adding base_permission: %v -> %v", before.Level, afterBase.Level)
	}

	// Add an explicit Write permission row; effective must not decrease.
	row := &model.PermissionRow{
		UserTargetKind:     model.UserTargetUser,
		UserTargetId:       user.Id,
		ResourceTargetKind: model.ResourceTargetSpecific,
		ResourceKind:       model.KindStack,
		ResourceId:         resource.Id,
		Grant:              model.PermissionLevelAndSpecific{Level: model.PermissionWrite, Specific: model.NewSpecificSet(model.SpecificTerminal)},
	}
	if err := s.UpsertPermission(row); err != nil {
		t.Fatalf("upsert permission: %v", err)
	}
	afterExplicit, err := ev.Effective(user, resource)
	if err != nil {
		t.Fatalf("effective after explicit: %v", err)
	}
	if afterExplicit.Level < afterBase.Level {
		t.Fatalf("effective decreased after adding explicit permission: %v -> %v", afterBase.Level, afterExplicit.Level)
	}
	if !afterExplicit.Specific.Has(model.SpecificTerminal) {
		t.Errorf("expected Specific to include Terminal after union-merge")
	}
}

func TestTransparentModeDefaultsToRead(t *testing.T) {
	s := newTestStore(t)
	ev := New(s, ModeTransparent)

	user := &model.User{Id: "u1"}
	resource := &model.Resource{Id: "r1", Kind: model.KindStack}

	eff, err := ev.Effective(user, resource)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if eff.Level != model.PermissionRead {
		t.Errorf("expected Read floor under transparent mode, got %v", eff.Level)
	}
}

func TestStackInheritsServerSpecificSet(t *testing.T) {
	s := newTestStore(t)
	ev := New(s, ModeRestrictive)

	server := &model.Resource{Id: "srv-1", Kind: model.KindServer, Name: "edge-1",
		BasePermission: model.PermissionLevelAndSpecific{Level: model.PermissionRead, Specific: model.NewSpecificSet(model.SpecificTerminal)},
	}
	if err := s.PutResource(server); err != nil {
		t.Fatalf("put server: %v", err)
	}
	stack := &model.Resource{Id: "stack-1", Kind: model.KindStack, Name: "web",
		Config: model.RawConfig{"server_id": "srv-1"},
	}
	if err := s.PutResource(stack); err != nil {
		t.Fatalf("put stack: %v", err)
	}

	user := &model.User{Id: "u1"}
	eff, err := ev.Effective(user, stack)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if !eff.Specific.Has(model.SpecificTerminal) {
		t.Errorf("expected Stack to inherit Terminal specific-permission from its Server")
	}
}
