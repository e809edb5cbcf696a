// Command core runs Komodore's Core controller: the HTTP/WS transport,
// the status-cache monitor loop, the scheduler, the sync reconciler, the
// alerter fan-out, and the prune/maintenance loop, all sharing one bbolt
// store. Flag parsing, graceful shutdown via signal.NotifyContext, and
// the overall startup sequence are carried from the teacher's
// cmd/sentinel/main.go shape, generalized from its single-process
// server/agent mode switch to Core's fixed component set (Periphery is
// its own binary here, cmd/periphery, rather than a mode flag).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/komodore/core/internal/actionstate"
	"github.com/komodore/core/internal/alerter"
	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/config"
	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/maintenance"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/permissions"
	"github.com/komodore/core/internal/resources"
	"github.com/komodore/core/internal/scheduler"
	"github.com/komodore/core/internal/statuscache"
	"github.com/komodore/core/internal/store"
	"github.com/komodore/core/internal/sync"
	"github.com/komodore/core/internal/webhook"
	"github.com/komodore/core/internal/webtransport"
)

func main() {
	configPath := flag.String("config", os.Getenv("KOMODORE_CONFIG"), "path to config file (toml/yaml/json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)
	log.Info("starting komodore core", "title", cfg.Title, "port", cfg.Port)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	resetInFlightUpdates(st, log)

	clk := clock.Real{}
	actions := actionstate.New()
	clients := newClientCache()

	var monitor *statuscache.Monitor
	facade := resources.New(st, clk, log, resources.Hooks{
		RefreshServerStatus: func(serverId string) {
			if monitor != nil {
				monitor.SetPollInterval(cfg.MonitorPollInterval())
			}
		},
		RefreshStackCache: func(stackId string) {
			if monitor != nil {
				monitor.SetPollInterval(cfg.MonitorPollInterval())
			}
		},
		RefreshResourceSyncPending: func(syncId string) {
			log.Debug("sync pending flag refreshed", "sync", syncId)
		},
		DestroyStack: func(stackId string) error {
			return destroyStack(st, clients, stackId)
		},
		RemoveContainer: func(deploymentId string) error {
			return removeContainer(st, clients, deploymentId)
		},
	})

	disp := dispatch.New(st, actions, clk, log)
	evaluator := permissions.New(st, permissions.ModeRestrictive)

	alertDispatcher := alerter.New(st, facade, alerter.NoWindows{}, time.Now, log)

	monitor = statuscache.NewMonitor(facade, clients.statusFactory, alertDispatcher, st, log, cfg.MonitorPollInterval())

	transportClients := clients.transportFactory(st)
	executor := webtransport.NewExecutor(st, transportClients, disp, clk)

	sched := scheduler.New(func(ctx context.Context, target model.ResourceTarget) error {
		operation := "RunAction"
		if target.Kind == model.KindProcedure {
			operation = "RunProcedure"
		}
		_, err := executor.RunOperation(ctx, target, operation, scheduler.SchedulerUser)
		return err
	}, alertDispatcher, clk, log, cfg.DefaultTimezone)

	syncReconciler := sync.New(facade, noopContentSource{}, clk, log)
	_ = syncReconciler // constructed only: no handler or background loop calls its Run

	maintLoop := maintenance.New(
		st, st, clients.prunerFor(st), statusAdapter{cache: func() *statuscache.Cache { return monitor.Cache() }}, facade,
		pullerFor(disp, clients), redeployerFor(disp),
		actions, clk, log,
		maintenance.Config{
			StatsRetention: time.Duration(cfg.StatsRetentionDays) * 24 * time.Hour,
			AlertRetention: time.Duration(cfg.AlertRetentionDays) * 24 * time.Hour,
		},
	)

	webhookHandler := webhook.New(facade, func(ctx context.Context, target model.ResourceTarget, action string) (*model.Update, error) {
		return executor.RunOperation(ctx, target, action, "webhook")
	}, cfg.WebhookDefaultSecret, log)

	server := webtransport.NewServer(webtransport.Dependencies{
		Store:       st,
		Facade:      facade,
		Dispatcher:  disp,
		Permissions: evaluator,
		Scheduler:   sched,
		Webhook:     webhookHandler,
		Clients:     transportClients,
		Updates:     webtransport.NewUpdateBus(),
		Config:      cfg,
		Clock:       clk,
		Log:         log,
	})

	runBackground(ctx, log, "monitor", monitor.Run)
	runBackground(ctx, log, "scheduler", sched.Run)
	runBackground(ctx, log, "maintenance", maintLoop.Run)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		if err := server.ListenAndServe(addr); err != nil {
			log.Error("webtransport server exited", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("webtransport shutdown", "error", err)
	}
}

// resetInFlightUpdates implements spec §3's startup invariant: any
// Update still InProgress when Core last exited did not actually
// survive the restart, so it is marked Complete/success=false rather
// than left dangling forever.
func resetInFlightUpdates(st *store.Store, log *logging.Logger) {
	updates, err := st.ListInProgressUpdates()
	if err != nil {
		log.Warn("list in-progress updates at startup", "error", err)
		return
	}
	for _, u := range updates {
		now := time.Now()
		u.PushLog(model.Log{Stage: "startup", Stderr: "core restarted while this update was in progress", Success: false, Start: now, End: now})
		u.Finalize(now)
		if err := st.PutUpdate(u); err != nil {
			log.Warn("reset in-progress update", "update", u.Id, "error", err)
		}
	}
	if len(updates) > 0 {
		log.Info("reset stale in-progress updates", "count", len(updates))
	}
}

func runBackground(ctx context.Context, log *logging.Logger, name string, run func(context.Context) error) {
	go func() {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("background loop exited", "loop", name, "error", err)
		}
	}()
}

// noopContentSource satisfies sync.ContentSource for Sync resources
// whose declared state arrives as inline file_contents only — repo/path
// loading wires into a git-clone/filesystem layer cmd/core does not yet
// own a concrete implementation of.
type noopContentSource struct{}

func (noopContentSource) LoadFromRepo(ctx context.Context, repoId string) ([]byte, error) {
	return nil, fmt.Errorf("%w: repo-backed sync content requires a configured Repo loader", model.ErrBadRequest)
}

func (noopContentSource) LoadFromPath(ctx context.Context, path string) ([]byte, error) {
	return nil, fmt.Errorf("%w: path-backed sync content requires a configured filesystem root", model.ErrBadRequest)
}

// statusAdapter satisfies maintenance.StatusSource over a
// *statuscache.Cache obtained lazily, since the Cache isn't constructed
// until after the Monitor it lives inside is.
type statusAdapter struct {
	cache func() *statuscache.Cache
}

func (a statusAdapter) ServerOk(serverId string) bool {
	st, ok := a.cache().Server(serverId)
	return ok && st.State == model.ServerOk
}

func (a statusAdapter) DeploymentRunning(id string) bool {
	st, ok := a.cache().Deployment(id)
	return ok && st.Curr.State == model.ContainerRunning
}

func (a statusAdapter) StackRunning(id string) bool {
	st, ok := a.cache().Stack(id)
	return ok && st.Curr.State == model.ContainerRunning
}
