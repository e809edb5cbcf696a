package resources

import (
	"testing"
	"time"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c fixedClock) Since(t time.Time) time.Duration        { return c.t.Sub(t) }

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, fixedClock{t: time.Unix(0, 0)}, logging.New(false), Hooks{})
}

func TestCreateEnforcesUniqueName(t *testing.T) {
	f := newTestFacade(t)
	params := CreateParams{
		Kind:   model.KindServer,
		Name:   "prod-1",
		Config: model.RawConfig{"address": "http://host:8120"},
	}
	if _, err := f.Create(params); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.Create(params); err == nil {
		t.Fatalf("expected ErrConflict on duplicate name")
	}
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Create(CreateParams{Kind: model.KindServer, Name: "bad", Config: model.RawConfig{}})
	if err == nil {
		t.Fatalf("expected validation error for missing address")
	}
}

func TestCreateGrantsCreatorWritePermission(t *testing.T) {
	f := newTestFacade(t)
	r, err := f.Create(CreateParams{
		Kind:     model.KindServer,
		Name:     "prod-1",
		Config:   model.RawConfig{"address": "http://host:8120"},
		Operator: "user-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rows, err := f.store.PermissionsForResource(model.KindServer, r.Id)
	if err != nil {
		t.Fatalf("permissions for resource: %v", err)
	}
	if len(rows) != 1 || rows[0].Grant.Level != model.PermissionWrite {
		t.Fatalf("expected one Write grant for the creator, got %+v", rows)
	}
	if !rows[0].Grant.Specific.Has(model.SpecificTerminal) {
		t.Fatalf("expected creator specific set to include Terminal for a Server")
	}
}

func TestUpdateMergesPartialAndPreservesUnsetFields(t *testing.T) {
	f := newTestFacade(t)
	r, err := f.Create(CreateParams{
		Kind: model.KindServer,
		Name: "prod-1",
		Config: model.RawConfig{
			"address":    "http://host:8120",
			"ignore_tls": true,
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.Update(UpdateParams{
		Kind:    model.KindServer,
		Id:      r.Id,
		Partial: model.RawConfig{"address": "http://host:9999"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Config["address"] != "http://host:9999" {
		t.Fatalf("expected address to be updated, got %v", updated.Config["address"])
	}
	if updated.Config["ignore_tls"] != true {
		t.Fatalf("expected ignore_tls to be preserved, got %v", updated.Config["ignore_tls"])
	}
}

func TestUpdateNoOpWhenDiffEmpty(t *testing.T) {
	f := newTestFacade(t)
	r, err := f.Create(CreateParams{
		Kind:   model.KindServer,
		Name:   "prod-1",
		Config: model.RawConfig{"address": "http://host:8120"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := r.UpdatedAt

	same, err := f.Update(UpdateParams{
		Kind:    model.KindServer,
		Id:      r.Id,
		Partial: model.RawConfig{"address": "http://host:8120"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !same.UpdatedAt.Equal(before) {
		t.Fatalf("expected UpdatedAt to be untouched on a no-op update")
	}
}

func TestDeleteCascadesPermissions(t *testing.T) {
	f := newTestFacade(t)
	r, err := f.Create(CreateParams{
		Kind:     model.KindServer,
		Name:     "prod-1",
		Config:   model.RawConfig{"address": "http://host:8120"},
		Operator: "user-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Delete(model.KindServer, r.Id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err := f.store.PermissionsForResource(model.KindServer, r.Id)
	if err != nil {
		t.Fatalf("permissions for resource: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected permissions to be cascade-deleted, got %+v", rows)
	}
}

func TestListEnabledServersFiltersDisabled(t *testing.T) {
	f := newTestFacade(t)
	if _, err := f.Create(CreateParams{Kind: model.KindServer, Name: "on", Config: model.RawConfig{"address": "http://a", "enabled": true}}); err != nil {
		t.Fatalf("create enabled: %v", err)
	}
	if _, err := f.Create(CreateParams{Kind: model.KindServer, Name: "off", Config: model.RawConfig{"address": "http://b", "enabled": false}}); err != nil {
		t.Fatalf("create disabled: %v", err)
	}
	out, err := f.ListEnabledServers(nil)
	if err != nil {
		t.Fatalf("list enabled servers: %v", err)
	}
	if len(out) != 1 || out[0].Name != "on" {
		t.Fatalf("expected exactly the enabled server, got %+v", out)
	}
}

func TestCreateLocalUserHashesPassword(t *testing.T) {
	f := newTestFacade(t)
	u, err := f.CreateLocalUser("alice", "correct horse battery staple", false)
	if err != nil {
		t.Fatalf("create local user: %v", err)
	}
	if u.Config.PasswordHash == "correct horse battery staple" {
		t.Fatalf("expected password to be hashed, not stored plaintext")
	}
	if err := f.VerifyPassword(u, "correct horse battery staple"); err != nil {
		t.Fatalf("expected correct password to verify, got %v", err)
	}
	if err := f.VerifyPassword(u, "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail verification")
	}
}
