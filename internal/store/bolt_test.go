package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/komodore/core/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResourceCRUD(t *testing.T) {
	s := openTestStore(t)

	r := &model.Resource{Id: "srv-1", Kind: model.KindServer, Name: "edge-1", Config: model.RawConfig{"address": "http://host:8120"}}
	if err := s.PutResource(r); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetResource(model.KindServer, "srv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "edge-1" {
		t.Errorf("name = %q, want edge-1", got.Name)
	}

	byName, err := s.FindResourceByName(model.KindServer, "edge-1")
	if err != nil || byName.Id != "srv-1" {
		t.Errorf("find by name failed: %v %v", byName, err)
	}

	exists, err := s.NameExists(model.KindServer, "edge-1", "other-id")
	if err != nil || !exists {
		t.Errorf("expected name conflict, got exists=%v err=%v", exists, err)
	}

	if err := s.DeleteResource(model.KindServer, "srv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetResource(model.KindServer, "srv-1"); err != model.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPermissionUniqueness(t *testing.T) {
	s := openTestStore(t)

	row := &model.PermissionRow{
		UserTargetKind:     model.UserTargetUser,
		UserTargetId:       "user-1",
		ResourceTargetKind: model.ResourceTargetSpecific,
		ResourceKind:       model.KindStack,
		ResourceId:         "stack-1",
		Grant:              model.PermissionLevelAndSpecific{Level: model.PermissionRead},
	}
	if err := s.UpsertPermission(row); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	row.Grant.Level = model.PermissionWrite
	if err := s.UpsertPermission(row); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	rows, err := s.PermissionsForResource(model.KindStack, "stack-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one permission row, got %d", len(rows))
	}
	if rows[0].Grant.Level != model.PermissionWrite {
		t.Errorf("grant not overwritten: %v", rows[0].Grant.Level)
	}
}

func TestUpdateFinalizeFreezesLogs(t *testing.T) {
	s := openTestStore(t)

	u := &model.Update{Id: "upd-1", Status: model.UpdateInProgress, Start: time.Now()}
	u.PushLog(model.Log{Stage: "Deploy", Success: true})
	u.Finalize(time.Now())
	if !u.Success {
		t.Errorf("expected success=true")
	}
	if ok := u.PushLog(model.Log{Stage: "late", Success: false}); ok {
		t.Errorf("expected PushLog to reject appends after finalize")
	}
	if err := s.PutUpdate(u); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetUpdate("upd-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Logs) != 1 {
		t.Errorf("expected 1 frozen log, got %d", len(got.Logs))
	}
}

func TestOpenAlertUniqueness(t *testing.T) {
	s := openTestStore(t)
	target := model.ResourceTarget{Kind: model.KindServer, Id: "srv-1"}

	a := &model.Alert{Id: "a1", Target: target, Data: model.AlertData{Kind: model.AlertServerUnreachable}, Ts: time.Now()}
	if err := s.PutAlert(a); err != nil {
		t.Fatalf("put: %v", err)
	}

	open, err := s.GetOpenAlert(target, model.AlertServerUnreachable)
	if err != nil || open.Id != "a1" {
		t.Fatalf("expected open alert a1, got %v err=%v", open, err)
	}

	a.Resolved = true
	a.ResolvedTs = time.Now()
	if err := s.PutAlert(a); err != nil {
		t.Fatalf("put resolved: %v", err)
	}
	if _, err := s.GetOpenAlert(target, model.AlertServerUnreachable); err != model.ErrNotFound {
		t.Errorf("expected no open alert after resolve, got %v", err)
	}
}
