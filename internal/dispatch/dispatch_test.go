package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/komodore/core/internal/actionstate"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c fixedClock) Since(t time.Time) time.Duration        { return c.t.Sub(t) }

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, actionstate.New(), fixedClock{t: time.Unix(0, 0)}, logging.New(false))
}

func TestExecuteSuccessFinalizesComplete(t *testing.T) {
	d := newTestDispatcher(t)
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}

	update, err := d.Execute(context.Background(), Request{Operation: "DeployStack", Target: target}, func(ctx context.Context, u *model.Update) error {
		u.PushLog(model.Log{Stage: "Deploy", Success: true})
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if update.Status != model.UpdateComplete || !update.Success {
		t.Fatalf("expected complete+success update, got %+v", update)
	}
}

func TestExecuteHandlerErrorFinalizesFailure(t *testing.T) {
	d := newTestDispatcher(t)
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}

	update, err := d.Execute(context.Background(), Request{Operation: "DeployStack", Target: target}, func(ctx context.Context, u *model.Update) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if update.Status != model.UpdateComplete || update.Success {
		t.Fatalf("expected complete+failed update, got %+v", update)
	}
}

func TestExecutePanicRecoveredAndFinalized(t *testing.T) {
	d := newTestDispatcher(t)
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}

	update, err := d.Execute(context.Background(), Request{Operation: "DeployStack", Target: target}, func(ctx context.Context, u *model.Update) error {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if update.Status != model.UpdateComplete || update.Success {
		t.Fatalf("expected a panic to finalize as a failed, complete update, got %+v", update)
	}
}

func TestExecuteRejectsConcurrentSameTarget(t *testing.T) {
	d := newTestDispatcher(t)
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = d.Execute(context.Background(), Request{Operation: "DeployStack", Target: target}, func(ctx context.Context, u *model.Update) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	_, err := d.Execute(context.Background(), Request{Operation: "DeployStack", Target: target}, func(ctx context.Context, u *model.Update) error {
		return nil
	})
	if err != model.ErrBusy {
		t.Fatalf("expected ErrBusy for a concurrent deploy on the same target, got %v", err)
	}
	close(release)
}

func TestResolvePatternMatchesExactGlobAndList(t *testing.T) {
	candidates := []BatchTarget{
		{Id: "1", Name: "web-prod"},
		{Id: "2", Name: "web-staging"},
		{Id: "3", Name: "db-prod"},
	}

	exact := ResolvePattern("web-prod", candidates)
	if len(exact) != 1 || exact[0].Id != "1" {
		t.Fatalf("expected exact match on web-prod, got %+v", exact)
	}

	glob := ResolvePattern("web-*", candidates)
	if len(glob) != 2 {
		t.Fatalf("expected glob to match both web- targets, got %+v", glob)
	}

	list := ResolvePattern("web-prod,db-prod", candidates)
	if len(list) != 2 {
		t.Fatalf("expected comma list to match two targets, got %+v", list)
	}
}

func TestCancelPreValidateRejectsUnknownAndAlreadyCancelled(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.CancelPreValidate("missing"); err == nil {
		t.Fatalf("expected error for unregistered cancellable id")
	}

	_, release := d.RegisterCancellable("build-1")
	defer release()

	if err := d.CancelPreValidate("build-1"); err != nil {
		t.Fatalf("expected pre-validate to pass before cancellation: %v", err)
	}
	if err := d.Cancel("build-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := d.CancelPreValidate("build-1"); err == nil {
		t.Fatalf("expected pre-validate to reject a second cancel of the same id")
	}
}
