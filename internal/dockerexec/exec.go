package dockerexec

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// ExecSession is a live attach to a command running inside a container,
// the Docker-side half of a connect_container_exec stream (spec §4.1).
type ExecSession struct {
	attach client.HijackedResponse
}

// StartExec execs shell inside a running container and attaches to its
// combined stdin/stdout stream, interactive and tty-allocated so the
// remote shell behaves like a terminal rather than a one-shot command.
func (c *Client) StartExec(ctx context.Context, containerId, shell string) (*ExecSession, error) {
	created, err := c.api.ContainerExecCreate(ctx, containerId, client.ContainerExecCreateOptions{
		ExecOptions: container.ExecOptions{
			Cmd:          []string{shell},
			AttachStdin:  true,
			AttachStdout: true,
			AttachStderr: true,
			Tty:          true,
		},
	})
	if err != nil {
		return nil, err
	}

	attach, err := c.api.ContainerExecAttach(ctx, created.ID, client.ContainerExecAttachOptions{
		ExecStartOptions: container.ExecStartOptions{Tty: true},
	})
	if err != nil {
		return nil, err
	}
	return &ExecSession{attach: attach}, nil
}

// Read satisfies io.Reader over the attached stream's combined output.
func (s *ExecSession) Read(p []byte) (int, error) {
	return s.attach.Reader.Read(p)
}

// Write satisfies io.Writer, forwarding keystrokes to the container's
// tty.
func (s *ExecSession) Write(p []byte) (int, error) {
	return s.attach.Conn.Write(p)
}

// Close releases the hijacked connection.
func (s *ExecSession) Close() error {
	s.attach.Close()
	return nil
}
