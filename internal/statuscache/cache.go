// Package statuscache implements the Status Cache and Monitor Loop (C2):
// a process-local, atomically-swapped map of per-server observed state,
// refreshed on a timer by fetching system info and compose project status
// from each enabled Server's Periphery agent; container lists are not
// fetched. The
// timer-driven scan loop with a resettable interval is lifted from the
// teacher's internal/engine/scheduler.go Scheduler.Run; per-server
// parallel fan-out uses golang.org/x/sync/errgroup the way no single
// teacher file does but which is idiomatic for this shape (bounded
// fan-out of independent network calls).
package statuscache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/metrics"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/periphclient"
)

// ServerSource provides the set of enabled Servers to poll, and is
// implemented by internal/resources.
type ServerSource interface {
	ListEnabledServers(ctx context.Context) ([]*model.Resource, error)
}

// AlertSink receives open/resolve events the monitor loop detects. It is
// implemented by internal/alerter's Dispatcher.
type AlertSink interface {
	Open(ctx context.Context, target model.ResourceTarget, level model.AlertLevel, data model.AlertData) error
	Resolve(ctx context.Context, target model.ResourceTarget, kind model.AlertKind) error
}

// StatsSink persists per-tick usage samples for the prune loop (C12).
type StatsSink interface {
	PutStats(rec model.StatsRecord) error
}

// Cache is the atomically-swapped snapshot of every server's observed
// state (spec §3 Status cache entries, §4.2 "the cache is a snapshotted
// map replaced atomically per tick"). The monitor loop fills only the
// servers map; it never adds deployment or stack entries, so Deployment
// and Stack report no entry.
type Cache struct {
	mu          sync.RWMutex
	servers     map[string]model.ServerStatus
	deployments map[string]model.DeploymentStatus
	stacks      map[string]model.StackStatus
}

func newCache() *Cache {
	return &Cache{
		servers:     make(map[string]model.ServerStatus),
		deployments: make(map[string]model.DeploymentStatus),
		stacks:      make(map[string]model.StackStatus),
	}
}

// Server returns a cloned snapshot for a server id.
func (c *Cache) Server(id string) (model.ServerStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.servers[id]
	if !ok {
		return model.ServerStatus{}, false
	}
	return s.Clone(), true
}

// Deployment returns a cloned snapshot for a deployment id.
func (c *Cache) Deployment(id string) (model.DeploymentStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.deployments[id]
	return d, ok
}

// Stack returns a cloned snapshot for a stack id.
func (c *Cache) Stack(id string) (model.StackStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stacks[id]
	return s, ok
}

// replace atomically swaps in a freshly-built snapshot. Readers never
// observe a torn view because the whole set of maps changes under one
// write-lock acquisition (spec §5 "Status-cache snapshots are replaced
// atomically per tick").
func (c *Cache) replace(servers map[string]model.ServerStatus, deployments map[string]model.DeploymentStatus, stacks map[string]model.StackStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = servers
	c.deployments = deployments
	c.stacks = stacks
}

// ClientFactory builds a Periphery client for a Server resource.
type ClientFactory func(cfg model.ServerConfig) *periphclient.Client

// Monitor drives the periodic refresh described in spec §4.2.
type Monitor struct {
	cache      *Cache
	servers    ServerSource
	newClient  ClientFactory
	alerts     AlertSink
	stats      StatsSink
	log        *logging.Logger
	pollEvery  time.Duration

	resetCh chan struct{}
}

// NewMonitor constructs a Monitor. pollEvery is read fresh from cfg each
// tick by the caller via SetPollInterval, mirroring the teacher's
// Scheduler.SetPollInterval reset-channel pattern.
func NewMonitor(servers ServerSource, newClient ClientFactory, alerts AlertSink, stats StatsSink, log *logging.Logger, pollEvery time.Duration) *Monitor {
	return &Monitor{
		cache:     newCache(),
		servers:   servers,
		newClient: newClient,
		alerts:    alerts,
		stats:     stats,
		log:       log.Component("statuscache"),
		pollEvery: pollEvery,
		resetCh:   make(chan struct{}, 1),
	}
}

// Cache exposes the read-only snapshot store.
func (m *Monitor) Cache() *Cache { return m.cache }

// SetPollInterval updates the poll interval at runtime and wakes the loop
// to apply it immediately.
func (m *Monitor) SetPollInterval(d time.Duration) {
	m.pollEvery = d
	select {
	case m.resetCh <- struct{}{}:
	default:
	}
}

// Run performs an immediate tick, then ticks at pollEvery until ctx is
// cancelled, the same "scan now, then on a timer" shape as the teacher's
// Scheduler.Run.
func (m *Monitor) Run(ctx context.Context) error {
	m.tick(ctx)
	for {
		select {
		case <-time.After(m.pollEvery):
			m.tick(ctx)
		case <-m.resetCh:
			m.log.Info("poll interval changed, resetting timer", "interval", m.pollEvery)
		case <-ctx.Done():
			m.log.Info("monitor loop stopped")
			return nil
		}
	}
}

// tick refreshes every enabled server's state in parallel (spec §4.2
// "per-server refreshes run in parallel") and atomically publishes the
// new snapshot.
func (m *Monitor) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.MonitorTickDuration.Observe(time.Since(start).Seconds())
		metrics.MonitorTicksTotal.Inc()
	}()

	servers, err := m.servers.ListEnabledServers(ctx)
	if err != nil {
		m.log.Warn("failed to list enabled servers", "error", err)
		return
	}
	metrics.ServersMonitored.Set(float64(len(servers)))

	var mu sync.Mutex
	newServers := make(map[string]model.ServerStatus, len(servers))
	newDeployments := make(map[string]model.DeploymentStatus)
	newStacks := make(map[string]model.StackStatus)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			status := m.refreshServer(gctx, srv)
			mu.Lock()
			newServers[srv.Id] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-server errors are handled inside refreshServer, never propagated

	m.cache.mu.RLock()
	for k, v := range m.cache.deployments {
		newDeployments[k] = v
	}
	for k, v := range m.cache.stacks {
		newStacks[k] = v
	}
	m.cache.mu.RUnlock()

	m.cache.replace(newServers, newDeployments, newStacks)
	m.log.Info("monitor tick complete", "servers", len(servers))
}

func serverConfigOf(r *model.Resource) model.ServerConfig {
	cfg := model.ServerConfig{}
	if v, ok := r.Config["address"].(string); ok {
		cfg.Address = v
	}
	if v, ok := r.Config["passkey"].(string); ok {
		cfg.Passkey = v
	}
	if v, ok := r.Config["ignore_tls"].(bool); ok {
		cfg.IgnoreTLS = v
	}
	if v, ok := r.Config["timeout_seconds"].(float64); ok {
		cfg.TimeoutSeconds = int(v)
	}
	return cfg
}

// refreshServer fetches one server's state, diffs it against the
// previous cached value for alert transitions (§4.2), and returns the
// fresh ServerStatus. Errors never propagate past this function — an
// unreachable agent becomes a ServerUnreachable alert and a NotOk status,
// matching §7's "background tasks never propagate; they log ... and
// continue".
func (m *Monitor) refreshServer(ctx context.Context, r *model.Resource) model.ServerStatus {
	target := model.ResourceTarget{Kind: model.KindServer, Id: r.Id}
	cfg := serverConfigOf(r)
	client := m.newClient(cfg)

	prev, hadPrev := m.cache.Server(r.Id)

	info, err := client.GetSystemInfo(ctx)
	if err != nil {
		m.openOrKeep(ctx, target, model.AlertServerUnreachable, err.Error())
		return model.ServerStatus{State: model.ServerNotOk, LastPollAt: time.Now(), LastError: err.Error()}
	}
	m.resolveIfOpen(ctx, target, model.AlertServerUnreachable)
	if hadPrev && prev.State == model.ServerNotOk {
		m.log.Info("server recovered", "server", r.Name)
	}

	projects, err := client.ListComposeProjects(ctx)
	if err != nil {
		m.log.Warn("failed to list compose projects", "server", r.Name, "error", err)
	}

	status := model.ServerStatus{
		State:      model.ServerOk,
		Version:    info.Version,
		Projects:   projects,
		LastPollAt: time.Now(),
	}

	m.checkThresholds(ctx, target, cfg, info)

	if m.stats != nil {
		_ = m.stats.PutStats(model.StatsRecord{ServerId: r.Id, Ts: time.Now(), CpuPerc: info.CpuPerc, MemPerc: info.MemPerc, DiskPerc: info.DiskPerc})
	}

	return status
}

// checkThresholds implements the hysteresis rule of spec §4.2: "an open
// alert of a given level is resolved only when the metric falls strictly
// below the lower bound" (the warning threshold, regardless of whether
// the open alert is at Warning or Critical level).
func (m *Monitor) checkThresholds(ctx context.Context, target model.ResourceTarget, cfg model.ServerConfig, info periphclient.SystemInfo) {
	m.checkOneThreshold(ctx, target, model.AlertServerCpu, info.CpuPerc, cfg.CpuWarning, cfg.CpuCritical)
	m.checkOneThreshold(ctx, target, model.AlertServerMem, info.MemPerc, cfg.MemWarning, cfg.MemCritical)
	m.checkOneThreshold(ctx, target, model.AlertServerDisk, info.DiskPerc, cfg.DiskWarning, cfg.DiskCritical)
}

func (m *Monitor) checkOneThreshold(ctx context.Context, target model.ResourceTarget, kind model.AlertKind, metric, warn, crit float64) {
	if warn <= 0 {
		return // thresholds disabled
	}
	switch {
	case crit > 0 && metric >= crit:
		m.openOrKeepLevel(ctx, target, kind, model.AlertCritical, metric)
	case metric >= warn:
		m.openOrKeepLevel(ctx, target, kind, model.AlertWarning, metric)
	case metric < warn:
		m.resolveIfOpen(ctx, target, kind)
	}
}

func (m *Monitor) openOrKeep(ctx context.Context, target model.ResourceTarget, kind model.AlertKind, message string) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Open(ctx, target, model.AlertCritical, model.AlertData{Kind: kind, Message: message}); err != nil {
		m.log.Warn("failed to open alert", "kind", kind, "error", err)
	}
}

func (m *Monitor) openOrKeepLevel(ctx context.Context, target model.ResourceTarget, kind model.AlertKind, level model.AlertLevel, metric float64) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Open(ctx, target, level, model.AlertData{Kind: kind, Metric: metric}); err != nil {
		m.log.Warn("failed to open alert", "kind", kind, "error", err)
	}
}

func (m *Monitor) resolveIfOpen(ctx context.Context, target model.ResourceTarget, kind model.AlertKind) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Resolve(ctx, target, kind); err != nil {
		m.log.Warn("failed to resolve alert", "kind", kind, "error", err)
	}
}
