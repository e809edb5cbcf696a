package alerter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/metrics"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/resources"
	"github.com/komodore/core/internal/scheduler"
)

// AlertStore is the slice of internal/store the Dispatcher needs to
// enforce the "at most one unresolved alert per (target, kind)"
// invariant (spec §3, Testable Property 5).
type AlertStore interface {
	PutAlert(a *model.Alert) error
	GetOpenAlert(target model.ResourceTarget, kind model.AlertKind) (*model.Alert, error)
}

// AlerterSource lists the enabled Alerter resources to fan out to.
type AlerterSource interface {
	List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error)
}

// MaintenanceSource resolves the maintenance windows configured for a
// target, consulted only when an Alerter sets RespectMaintenance. No
// resource kind in this schema stores windows directly yet, so the
// default wiring (NoWindows) always reports none configured; a future
// per-server/per-deployment window store can satisfy this interface
// without the Dispatcher changing.
type MaintenanceSource interface {
	Windows(target model.ResourceTarget) []model.MaintenanceWindow
}

// NoWindows is a MaintenanceSource with no configured windows.
type NoWindows struct{}

func (NoWindows) Windows(model.ResourceTarget) []model.MaintenanceWindow { return nil }

// Dispatcher is the Alerter Fan-out (C10). It owns the Alert-store
// uniqueness invariant and fans every open/resolve/custom event out to
// every enabled, filter-admitting Alerter, isolating per-backend
// failures exactly as the teacher's notify.Multi.Notify never lets one
// backend's error stop the rest.
type Dispatcher struct {
	store       AlertStore
	alerters    AlerterSource
	maintenance MaintenanceSource
	now         func() time.Time
	log         *logging.Logger
}

func New(store AlertStore, alerters AlerterSource, maintenance MaintenanceSource, now func() time.Time, log *logging.Logger) *Dispatcher {
	if maintenance == nil {
		maintenance = NoWindows{}
	}
	return &Dispatcher{store: store, alerters: alerters, maintenance: maintenance, now: now, log: log.Component("alerter")}
}

// Open raises a new alert for (target, kind) unless one is already open,
// then fans it out. Implements internal/statuscache.AlertSink and
// internal/scheduler.AlertSink.
func (d *Dispatcher) Open(ctx context.Context, target model.ResourceTarget, level model.AlertLevel, data model.AlertData) error {
	_, err := d.store.GetOpenAlert(target, data.Kind)
	if err == nil {
		return nil // already open; the uniqueness invariant makes this a no-op.
	}
	if err != model.ErrNotFound {
		return err
	}

	alert := &model.Alert{
		Id: newAlertId(), Ts: d.now(), Level: level, Target: target, Data: data,
	}
	if err := d.store.PutAlert(alert); err != nil {
		return err
	}
	metrics.AlertsTotal.WithLabelValues(string(data.Kind), "opened").Inc()
	d.fanOut(ctx, *alert)
	return nil
}

// Resolve marks the open (target, kind) alert resolved and fans out a
// resolution notification. Implements internal/statuscache.AlertSink.
func (d *Dispatcher) Resolve(ctx context.Context, target model.ResourceTarget, kind model.AlertKind) error {
	alert, err := d.store.GetOpenAlert(target, kind)
	if err == model.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	alert.Resolved = true
	alert.ResolvedTs = d.now()
	if err := d.store.PutAlert(alert); err != nil {
		return err
	}
	metrics.AlertsTotal.WithLabelValues(string(kind), "resolved").Inc()
	d.fanOut(ctx, *alert)
	return nil
}

// SendAlert raises a one-off Custom alert and fans it out only to the
// named Alerters (spec §4.10 "custom alerts pick Alerters by name").
func (d *Dispatcher) SendAlert(ctx context.Context, target model.ResourceTarget, message string, alerterIds []string) error {
	alert := model.Alert{
		Id: newAlertId(), Ts: d.now(), Level: model.AlertWarning, Target: target,
		Data: model.AlertData{Kind: model.AlertCustom, Message: message},
	}
	if err := d.store.PutAlert(&alert); err != nil {
		return err
	}

	want := make(map[string]struct{}, len(alerterIds))
	for _, id := range alerterIds {
		want[id] = struct{}{}
	}
	chosen, err := d.alerters.List(model.KindAlerter, want)
	if err != nil {
		return err
	}
	d.dispatchTo(ctx, chosen, alert)
	return nil
}

// fanOut loads every enabled Alerter and dispatches to those whose
// filters admit the event (spec §4.10 steps 2-3).
func (d *Dispatcher) fanOut(ctx context.Context, alert model.Alert) {
	all, err := d.alerters.List(model.KindAlerter, nil)
	if err != nil {
		d.log.Error("list alerters", "error", err)
		return
	}
	d.dispatchTo(ctx, all, alert)
}

func (d *Dispatcher) dispatchTo(ctx context.Context, alerters []*model.Resource, alert model.Alert) {
	for _, res := range alerters {
		cfg, err := resources.DecodeConfig[model.AlerterConfig](res.Config)
		if err != nil {
			d.log.Error("decode alerter config", "alerter", res.Id, "error", err)
			continue
		}
		if !cfg.Enabled {
			continue
		}
		if !admits(cfg, alert.Target, alert.Data.Kind) {
			continue
		}
		if cfg.RespectMaintenance && d.inMaintenance(alert.Target) {
			continue
		}

		sender, err := BuildSender(cfg)
		if err != nil {
			d.log.Error("build alerter backend", "alerter", res.Id, "error", err)
			continue
		}
		if err := sender.Send(ctx, alert); err != nil {
			d.log.Error("send alert", "alerter", res.Id, "backend", sender.Name(), "error", err)
			metrics.AlerterSendErrors.WithLabelValues(sender.Name()).Inc()
		}
	}
}

func (d *Dispatcher) inMaintenance(target model.ResourceTarget) bool {
	now := d.now()
	for _, w := range d.maintenance.Windows(target) {
		if scheduler.InWindow(w, now) {
			return true
		}
	}
	return false
}

func newAlertId() string {
	return uuid.NewString()
}
