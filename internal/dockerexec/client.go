// Package dockerexec is the Periphery-side Docker executor: a thin
// wrapper over the Docker Engine API for container/image operations,
// plus shelled-out `docker compose` and `git` calls for the operations
// the Engine API has no endpoint for. Grounded on the teacher's
// internal/docker package (same moby/moby/client dependency, same
// Client-wraps-api.Client shape), generalized from Sentinel's
// read-mostly container inspection to the full create/deploy/build/prune
// surface cmd/periphery's wire handlers need.
package dockerexec

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moby/moby/client"
)

// Client wraps the Docker Engine API client bound to the local daemon.
type Client struct {
	api *client.Client
}

// New connects to the Docker daemon at host (a unix socket path or
// tcp:// address; empty defaults to the standard local socket).
func New(host string) (*Client, error) {
	if host == "" {
		host = "/var/run/docker.sock"
	}

	var opts []client.Opt
	if strings.HasPrefix(host, "tcp://") || strings.HasPrefix(host, "tcps://") {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts,
			client.WithHost("unix://"+host),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", host, 30*time.Second)
					},
				},
			}),
		)
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Ping checks that the daemon is reachable — called once when the agent
// starts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	return err
}

// Close releases the underlying HTTP client resources.
func (c *Client) Close() error {
	return c.api.Close()
}

// Version reports the daemon's API version string, used to populate
// GetSystemInfo's version field for the Status Cache's Core/Periphery
// version-mismatch check (spec §4.2).
func (c *Client) Version(ctx context.Context) (string, error) {
	info, err := c.api.Info(ctx, client.InfoOptions{})
	if err != nil {
		return "", err
	}
	return info.Info.ServerVersion, nil
}
