package alerter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/resources"
)

type fakeAlertStore struct {
	byKey map[model.OpenAlertKey]*model.Alert
	put   []*model.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{byKey: map[model.OpenAlertKey]*model.Alert{}}
}

func (s *fakeAlertStore) PutAlert(a *model.Alert) error {
	s.put = append(s.put, a)
	if !a.Resolved {
		s.byKey[model.OpenAlertKey{Target: a.Target, Kind: a.Data.Kind}] = a
	} else {
		delete(s.byKey, model.OpenAlertKey{Target: a.Target, Kind: a.Data.Kind})
	}
	return nil
}

func (s *fakeAlertStore) GetOpenAlert(target model.ResourceTarget, kind model.AlertKind) (*model.Alert, error) {
	a, ok := s.byKey[model.OpenAlertKey{Target: target, Kind: kind}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return a, nil
}

type fakeAlerterSource struct{ resources []*model.Resource }

func (s fakeAlerterSource) List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, r := range s.resources {
		if r.Kind != kind {
			continue
		}
		if idFilter != nil {
			if _, ok := idFilter[r.Id]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func alerterResource(t *testing.T, id string, cfg model.AlerterConfig) *model.Resource {
	t.Helper()
	raw, err := resources.EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("encode alerter config: %v", err)
	}
	return &model.Resource{Id: id, Kind: model.KindAlerter, Name: id, Config: raw}
}

func TestOpenIsNoOpWhenAlreadyOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("webhook should not be hit on a duplicate Open")
	}))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	store.byKey[model.OpenAlertKey{Target: target, Kind: model.AlertServerCpu}] = &model.Alert{
		Id: "existing", Target: target, Data: model.AlertData{Kind: model.AlertServerCpu},
	}

	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{Enabled: true, Endpoint: model.AlerterWebhook, Url: srv.URL}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Open(context.Background(), target, model.AlertWarning, model.AlertData{Kind: model.AlertServerCpu}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(store.put) != 0 {
		t.Fatalf("expected no new alert to be stored, got %d", len(store.put))
	}
}

func TestOpenDispatchesToEnabledWebhook(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{Enabled: true, Endpoint: model.AlerterWebhook, Url: srv.URL}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Open(context.Background(), target, model.AlertCritical, model.AlertData{Kind: model.AlertServerUnreachable}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !hit {
		t.Fatalf("expected webhook to be dispatched")
	}
	if len(store.put) != 1 || store.put[0].Resolved {
		t.Fatalf("expected one open alert stored, got %+v", store.put)
	}
}

func TestDisabledAlerterIsSkipped(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{Enabled: false, Endpoint: model.AlerterWebhook, Url: srv.URL}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Open(context.Background(), target, model.AlertWarning, model.AlertData{Kind: model.AlertServerCpu}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if hit {
		t.Fatalf("expected disabled alerter to never be dispatched to")
	}
}

func TestTypeWhitelistExcludesOtherKinds(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{
			Enabled: true, Endpoint: model.AlerterWebhook, Url: srv.URL,
			TypeWhitelist: []model.AlertKind{model.AlertServerUnreachable},
		}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Open(context.Background(), target, model.AlertWarning, model.AlertData{Kind: model.AlertServerCpu}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if hit {
		t.Fatalf("expected type whitelist to exclude ServerCpu")
	}
}

func TestTargetBlacklistExcludesTarget(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{
			Enabled: true, Endpoint: model.AlerterWebhook, Url: srv.URL,
			TargetBlacklist: []model.ResourceTarget{target},
		}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Open(context.Background(), target, model.AlertWarning, model.AlertData{Kind: model.AlertServerCpu}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if hit {
		t.Fatalf("expected target blacklist to exclude this target")
	}
}

func TestResolveMarksAlertAndFansOut(t *testing.T) {
	var gotResolved bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotResolved = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeAlertStore()
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	store.byKey[model.OpenAlertKey{Target: target, Kind: model.AlertServerCpu}] = &model.Alert{
		Id: "a1", Target: target, Data: model.AlertData{Kind: model.AlertServerCpu},
	}
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{Enabled: true, Endpoint: model.AlerterWebhook, Url: srv.URL}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))

	if err := d.Resolve(context.Background(), target, model.AlertServerCpu); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !gotResolved {
		t.Fatalf("expected resolution to fan out")
	}
	if _, ok := store.byKey[model.OpenAlertKey{Target: target, Kind: model.AlertServerCpu}]; ok {
		t.Fatalf("expected the alert to no longer be open")
	}
}

func TestResolveWithNoOpenAlertIsNoOp(t *testing.T) {
	store := newFakeAlertStore()
	d := New(store, fakeAlerterSource{}, nil, time.Now, logging.New(false))
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}
	if err := d.Resolve(context.Background(), target, model.AlertServerCpu); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestSendAlertOnlyDispatchesToNamedAlerters(t *testing.T) {
	var hitA, hitB bool
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hitA = true }))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hitB = true }))
	defer srvB.Close()

	store := newFakeAlertStore()
	alerters := fakeAlerterSource{resources: []*model.Resource{
		alerterResource(t, "a1", model.AlerterConfig{Enabled: true, Endpoint: model.AlerterWebhook, Url: srvA.URL}),
		alerterResource(t, "a2", model.AlerterConfig{Enabled: true, Endpoint: model.AlerterWebhook, Url: srvB.URL}),
	}}
	d := New(store, alerters, nil, time.Now, logging.New(false))
	target := model.ResourceTarget{Kind: model.KindServer, Id: "s1"}

	if err := d.SendAlert(context.Background(), target, "hello", []string{"a1"}); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}
	if !hitA || hitB {
		t.Fatalf("expected only a1 to be dispatched to, got hitA=%v hitB=%v", hitA, hitB)
	}
}
