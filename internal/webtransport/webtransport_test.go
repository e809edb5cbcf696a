package webtransport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/komodore/core/internal/actionstate"
	"github.com/komodore/core/internal/config"
	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/periphclient"
	"github.com/komodore/core/internal/permissions"
	"github.com/komodore/core/internal/resources"
	"github.com/komodore/core/internal/store"
	"github.com/komodore/core/internal/webhook"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c fixedClock) Since(t time.Time) time.Duration        { return c.t.Sub(t) }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	log := logging.New(false)
	clk := fixedClock{t: time.Unix(1700000000, 0)}
	facade := resources.New(s, clk, log, resources.Hooks{})
	eval := permissions.New(s, permissions.ModeRestrictive)
	disp := dispatch.New(s, actionstate.New(), clk, log)
	hook := webhook.New(facade, func(ctx context.Context, target model.ResourceTarget, action string) (*model.Update, error) {
		return nil, errors.New("not exercised in this test")
	}, "secret", log)

	cfg := config.Default()
	cfg.JwtSecret = "test-signing-secret"

	deps := Dependencies{
		Store:       s,
		Facade:      facade,
		Dispatcher:  disp,
		Permissions: eval,
		Webhook:     hook,
		Clients: func(serverId string) (*periphclient.Client, error) {
			return periphclient.New(model.ServerConfig{Address: "http://127.0.0.1:0"}), nil
		},
		Updates: NewUpdateBus(),
		Config:  cfg,
		Clock:   clk,
		Log:     log,
	}
	return NewServer(deps), s
}

func mustUser(t *testing.T, s *store.Store, admin bool) *model.User {
	t.Helper()
	u := &model.User{
		Id:       "user-1",
		Username: "alice",
		Enabled:  true,
		Admin:    admin,
		All:      map[model.ResourceKind]model.PermissionLevelAndSpecific{},
	}
	if err := s.PutUser(u); err != nil {
		t.Fatalf("put user: %v", err)
	}
	return u
}
