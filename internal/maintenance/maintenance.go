// Package maintenance implements the Prune/Maintenance loops (C12): a
// daily driver that evicts aged stats and alerts, prunes Docker images on
// every auto-prune Server, and runs the GlobalAutoUpdate pass — all
// sequential, to avoid the load spikes spec §4.12 warns against. The
// resettable-timer driver loop is the fourth reuse of the shape the
// teacher's internal/engine/scheduler.go Scheduler.Run established (after
// internal/statuscache, internal/scheduler, and — inside Run itself —
// nothing further, since a daily cadence needs no recompute-next-fire
// logic beyond "wait 24h").
package maintenance

import (
	"context"
	"time"

	"github.com/komodore/core/internal/actionstate"
	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
)

// StatsStore is the stats-retention slice of internal/store.
type StatsStore interface {
	ListStatsOlderThan(cutoff func(model.StatsRecord) bool) ([]string, error)
	DeleteStats(keys []string) error
}

// AlertStore is the alert-retention slice of internal/store.
type AlertStore interface {
	ListAlerts() ([]*model.Alert, error)
	DeleteAlert(id string) error
}

// ServerPruner prunes dangling images on one Server via Periphery.
type ServerPruner interface {
	PruneImages(ctx context.Context, serverId string) error
}

// StatusSource answers "is this Server/Deployment/Stack currently Ok and
// running", the precondition GlobalAutoUpdate checks before calling pull
// (spec §4.12 "currently running and whose Server is Ok").
type StatusSource interface {
	ServerOk(serverId string) bool
	DeploymentRunning(id string) bool
	StackRunning(id string) bool
}

// ResourceSource lists the enabled Server/Deployment/Stack resources the
// prune pass walks.
type ResourceSource interface {
	List(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error)
}

// Puller pulls the latest image(s) for a target, reporting whether a
// newer image was found, and Redeployer triggers a redeploy — both
// funnel through the Execution Dispatcher the same way
// internal/scheduler.RunFunc does, so GlobalAutoUpdate's two-step
// "pull, then chain a redeploy if available and AutoUpdate" (spec §4.12)
// reuses the existing busy-flag/Update-record machinery rather than
// calling Periphery directly.
type Puller func(ctx context.Context, target model.ResourceTarget) (updateAvailable bool, err error)
type Redeployer func(ctx context.Context, target model.ResourceTarget) error

// Config holds the Maintenance loop's tunables.
type Config struct {
	StatsRetention  time.Duration
	AlertRetention  time.Duration
	Interval        time.Duration // defaults to 24h
}

// Loop is the Prune/Maintenance driver (C12).
type Loop struct {
	stats     StatsStore
	alerts    AlertStore
	pruner    ServerPruner
	status    StatusSource
	resources ResourceSource
	pull      Puller
	redeploy  Redeployer
	batch     *actionstate.Registry
	clock     clock.Clock
	log       *logging.Logger
	cfg       Config
}

// New constructs a Loop.
func New(stats StatsStore, alerts AlertStore, pruner ServerPruner, status StatusSource, resources ResourceSource,
	pull Puller, redeploy Redeployer, batch *actionstate.Registry, c clock.Clock, log *logging.Logger, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Loop{
		stats: stats, alerts: alerts, pruner: pruner, status: status, resources: resources,
		pull: pull, redeploy: redeploy, batch: batch, clock: c, log: log.Component("maintenance"), cfg: cfg,
	}
}

// Run drives the daily tick until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-l.clock.After(l.cfg.Interval):
			l.tick(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// tick runs one full maintenance pass, holding the global batch lock for
// its duration (spec §5 "at-most-one-in-flight globally for ClearRepoCache
// / BackupCoreDatabase / GlobalAutoUpdate").
func (l *Loop) tick(ctx context.Context) {
	guard, err := l.batch.AcquireBatch()
	if err != nil {
		l.log.Warn("maintenance tick skipped, batch lock held", "error", err)
		return
	}
	defer guard.Release()

	l.pruneStats()
	l.pruneAlerts()
	l.pruneServerImages(ctx)
	l.globalAutoUpdate(ctx)
}

func (l *Loop) pruneStats() {
	if l.cfg.StatsRetention <= 0 {
		return
	}
	cutoff := l.clock.Now().Add(-l.cfg.StatsRetention)
	keys, err := l.stats.ListStatsOlderThan(func(r model.StatsRecord) bool { return r.Ts.Before(cutoff) })
	if err != nil {
		l.log.Error("list old stats", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := l.stats.DeleteStats(keys); err != nil {
		l.log.Error("delete old stats", "error", err)
		return
	}
	l.log.Info("pruned stats", "count", len(keys))
}

func (l *Loop) pruneAlerts() {
	if l.cfg.AlertRetention <= 0 {
		return
	}
	cutoff := l.clock.Now().Add(-l.cfg.AlertRetention)
	all, err := l.alerts.ListAlerts()
	if err != nil {
		l.log.Error("list alerts", "error", err)
		return
	}
	deleted := 0
	for _, a := range all {
		if !a.Resolved || a.ResolvedTs.After(cutoff) {
			continue
		}
		if err := l.alerts.DeleteAlert(a.Id); err != nil {
			l.log.Error("delete old alert", "id", a.Id, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		l.log.Info("pruned alerts", "count", deleted)
	}
}

func (l *Loop) pruneServerImages(ctx context.Context) {
	servers, err := l.resources.List(model.KindServer, nil)
	if err != nil {
		l.log.Error("list servers", "error", err)
		return
	}
	for _, s := range servers {
		autoPrune, _ := s.Config["auto_prune"].(bool)
		if !autoPrune || !l.status.ServerOk(s.Id) {
			continue
		}
		if err := l.pruner.PruneImages(ctx, s.Id); err != nil {
			l.log.Error("prune images", "server", s.Id, "error", err)
		}
	}
}

// globalAutoUpdate implements spec §4.12's GlobalAutoUpdate pass,
// sequentially over every eligible Deployment then Stack.
func (l *Loop) globalAutoUpdate(ctx context.Context) {
	l.autoUpdateKind(ctx, model.KindDeployment, l.status.DeploymentRunning)
	l.autoUpdateKind(ctx, model.KindStack, l.status.StackRunning)
}

func (l *Loop) autoUpdateKind(ctx context.Context, kind model.ResourceKind, running func(string) bool) {
	resources, err := l.resources.List(kind, nil)
	if err != nil {
		l.log.Error("list resources", "kind", kind, "error", err)
		return
	}
	for _, r := range resources {
		poll, _ := r.Config["poll_for_updates"].(bool)
		autoUpdate, _ := r.Config["auto_update"].(bool)
		if !poll && !autoUpdate {
			continue
		}
		serverId, _ := r.Config["server_id"].(string)
		if !l.status.ServerOk(serverId) || !running(r.Id) {
			continue
		}

		target := model.ResourceTarget{Kind: kind, Id: r.Id}
		available, err := l.pull(ctx, target)
		if err != nil {
			l.log.Error("auto-update pull", "target", target, "error", err)
			continue
		}
		if available && autoUpdate {
			if err := l.redeploy(ctx, target); err != nil {
				l.log.Error("auto-update redeploy", "target", target, "error", err)
			}
		}
	}
}
