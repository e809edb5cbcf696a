package statuscache

import (
	"context"
	"testing"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
)

type fakeServerSource struct {
	servers []*model.Resource
}

func (f *fakeServerSource) ListEnabledServers(ctx context.Context) ([]*model.Resource, error) {
	return f.servers, nil
}

type fakeAlerts struct {
	opened   []model.AlertKind
	resolved []model.AlertKind
}

func (f *fakeAlerts) Open(ctx context.Context, target model.ResourceTarget, level model.AlertLevel, data model.AlertData) error {
	f.opened = append(f.opened, data.Kind)
	return nil
}

func (f *fakeAlerts) Resolve(ctx context.Context, target model.ResourceTarget, kind model.AlertKind) error {
	f.resolved = append(f.resolved, kind)
	return nil
}

type fakeStats struct {
	records []model.StatsRecord
}

func (f *fakeStats) PutStats(rec model.StatsRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func TestServerConfigOfReadsResourceConfig(t *testing.T) {
	r := &model.Resource{Config: model.RawConfig{
		"address":         "http://host:8120",
		"passkey":         "secret",
		"ignore_tls":      true,
		"timeout_seconds": float64(5),
	}}
	cfg := serverConfigOf(r)
	if cfg.Address != "http://host:8120" || cfg.Passkey != "secret" || !cfg.IgnoreTLS || cfg.TimeoutSeconds != 5 {
		t.Fatalf("unexpected config extracted: %+v", cfg)
	}
}

func TestCacheReplaceIsAtomic(t *testing.T) {
	c := newCache()
	c.replace(
		map[string]model.ServerStatus{"a": {State: model.ServerOk}},
		map[string]model.DeploymentStatus{},
		map[string]model.StackStatus{},
	)
	got, ok := c.Server("a")
	if !ok || got.State != model.ServerOk {
		t.Fatalf("expected server a to be Ok, got %+v ok=%v", got, ok)
	}
	if _, ok := c.Server("missing"); ok {
		t.Fatalf("expected missing server to report not-found")
	}
}

func TestThresholdHysteresisOpensAndResolves(t *testing.T) {
	alerts := &fakeAlerts{}
	log := logging.New(false)
	m := &Monitor{alerts: alerts, log: log.Component("test")}
	target := model.ResourceTarget{Kind: model.KindServer, Id: "srv-1"}

	m.checkOneThreshold(context.Background(), target, model.AlertServerCpu, 92, 80, 95)
	if len(alerts.opened) != 1 || alerts.opened[0] != model.AlertServerCpu {
		t.Fatalf("expected a warning-level open alert, got %+v", alerts.opened)
	}

	m.checkOneThreshold(context.Background(), target, model.AlertServerCpu, 97, 80, 95)
	if len(alerts.opened) != 2 {
		t.Fatalf("expected a second (critical) open alert, got %+v", alerts.opened)
	}

	m.checkOneThreshold(context.Background(), target, model.AlertServerCpu, 50, 80, 95)
	if len(alerts.resolved) != 1 || alerts.resolved[0] != model.AlertServerCpu {
		t.Fatalf("expected the alert to resolve once metric drops below warning, got %+v", alerts.resolved)
	}
}

func TestThresholdDisabledWhenWarningZero(t *testing.T) {
	alerts := &fakeAlerts{}
	log := logging.New(false)
	m := &Monitor{alerts: alerts, log: log.Component("test")}
	target := model.ResourceTarget{Kind: model.KindServer, Id: "srv-1"}

	m.checkOneThreshold(context.Background(), target, model.AlertServerMem, 99, 0, 0)
	if len(alerts.opened) != 0 {
		t.Fatalf("expected no alert when warning threshold is disabled (0), got %+v", alerts.opened)
	}
}
