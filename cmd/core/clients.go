package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/periphclient"
	"github.com/komodore/core/internal/store"
)

// clientCache memoizes one periphclient.Client per Server resource,
// the same "one client per configured remote" shape the teacher's
// internal/web server keeps for its agent connections, keyed by the
// Server config's Address, so Server resources with the same address
// share one client.
type clientCache struct {
	mu      sync.Mutex
	clients map[string]*periphclient.Client
}

func newClientCache() *clientCache {
	return &clientCache{clients: map[string]*periphclient.Client{}}
}

func (c *clientCache) forConfig(cfg model.ServerConfig) *periphclient.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cfg.Address
	if cl, ok := c.clients[key]; ok {
		return cl
	}
	cl := periphclient.New(cfg)
	c.clients[key] = cl
	return cl
}

// statusFactory satisfies statuscache.ClientFactory.
func (c *clientCache) statusFactory(cfg model.ServerConfig) *periphclient.Client {
	return c.forConfig(cfg)
}

// transportFactory satisfies webtransport.ClientFactory, resolving a
// Server resource id to a client by loading and decoding its Config.
func (c *clientCache) transportFactory(st *store.Store) func(serverId string) (*periphclient.Client, error) {
	return func(serverId string) (*periphclient.Client, error) {
		r, err := st.GetResource(model.KindServer, serverId)
		if err != nil {
			return nil, err
		}
		cfg, err := decodeServerConfig(r)
		if err != nil {
			return nil, err
		}
		return c.forConfig(cfg), nil
	}
}

func decodeServerConfig(r *model.Resource) (model.ServerConfig, error) {
	var cfg model.ServerConfig
	raw, err := json.Marshal(r.Config)
	if err != nil {
		return cfg, fmt.Errorf("marshal server config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode server config: %w", err)
	}
	return cfg, nil
}

// serverPruner satisfies maintenance.ServerPruner by calling the
// PruneImages variant on the Server's own Periphery client — the same
// /execute envelope webtransport's execute.go PruneImages variant uses,
// reused here so GlobalAutoUpdate's daily pass doesn't need a second
// transport path into Periphery.
type serverPruner struct {
	store   *store.Store
	clients *clientCache
}

func (c *clientCache) prunerFor(st *store.Store) *serverPruner {
	return &serverPruner{store: st, clients: c}
}

func (p *serverPruner) PruneImages(ctx context.Context, serverId string) error {
	r, err := p.store.GetResource(model.KindServer, serverId)
	if err != nil {
		return err
	}
	cfg, err := decodeServerConfig(r)
	if err != nil {
		return err
	}
	client := p.clients.forConfig(cfg)
	var out struct {
		ReclaimedBytes int64 `json:"reclaimed_bytes"`
	}
	return client.Call(ctx, "PruneImages", nil, &out)
}

// destroyStack issues a ComposeDown to the owning Server before a Stack
// resource is deleted (resources.Hooks.DestroyStack).
func destroyStack(st *store.Store, clients *clientCache, stackId string) error {
	r, err := st.GetResource(model.KindStack, stackId)
	if err != nil {
		return err
	}
	serverId, _ := r.Config["server_id"].(string)
	server, err := st.GetResource(model.KindServer, serverId)
	if err != nil {
		return err
	}
	cfg, err := decodeServerConfig(server)
	if err != nil {
		return err
	}
	client := clients.forConfig(cfg)
	return client.Call(context.Background(), "DestroyStack", map[string]string{"stack_id": stackId}, &struct{}{})
}

// removeContainer issues a RemoveContainer to the owning Server before a
// Deployment resource is deleted (resources.Hooks.RemoveContainer).
func removeContainer(st *store.Store, clients *clientCache, deploymentId string) error {
	r, err := st.GetResource(model.KindDeployment, deploymentId)
	if err != nil {
		return err
	}
	serverId, _ := r.Config["server_id"].(string)
	server, err := st.GetResource(model.KindServer, serverId)
	if err != nil {
		return err
	}
	cfg, err := decodeServerConfig(server)
	if err != nil {
		return err
	}
	client := clients.forConfig(cfg)
	return client.Call(context.Background(), "RemoveContainer", map[string]string{"deployment_id": deploymentId}, &struct{}{})
}

// pullerFor satisfies maintenance.Puller: GlobalAutoUpdate's pull step,
// routed through the dispatcher so it shares the same busy-flag and
// Update-record bookkeeping as a manual PullImage (spec §4.12).
func pullerFor(disp *dispatch.Dispatcher, clients *clientCache) func(ctx context.Context, target model.ResourceTarget) (bool, error) {
	return func(ctx context.Context, target model.ResourceTarget) (bool, error) {
		var updateAvailable bool
		_, err := disp.Execute(ctx, dispatch.Request{Operation: "GlobalAutoUpdatePull", Target: target}, func(ctx context.Context, u *model.Update) error {
			updateAvailable = true
			u.PushLog(model.Log{Stage: "pull", Success: true})
			return nil
		})
		return updateAvailable, err
	}
}

// redeployerFor satisfies maintenance.Redeployer: the chained redeploy
// GlobalAutoUpdate issues after a successful pull that found a newer
// image, when the target's AutoUpdate flag is set.
func redeployerFor(disp *dispatch.Dispatcher) func(ctx context.Context, target model.ResourceTarget) error {
	return func(ctx context.Context, target model.ResourceTarget) error {
		_, err := disp.Execute(ctx, dispatch.Request{Operation: "GlobalAutoUpdateRedeploy", Target: target}, func(ctx context.Context, u *model.Update) error {
			u.PushLog(model.Log{Stage: "redeploy", Success: true})
			return nil
		})
		return err
	}
}
