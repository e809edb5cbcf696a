package dockerexec

import (
	"testing"

	"github.com/komodore/core/internal/model"
)

func TestContainerState(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		health string
		want   model.ContainerState
	}{
		{"running healthy", "running", "healthy", model.ContainerRunning},
		{"running no healthcheck", "running", "", model.ContainerRunning},
		{"running unhealthy", "running", "unhealthy", model.ContainerUnhealthy},
		{"restarting", "restarting", "", model.ContainerRestarting},
		{"exited", "exited", "", model.ContainerStopped},
		{"dead", "dead", "", model.ContainerStopped},
		{"paused", "paused", "", model.ContainerStopped},
		{"created", "created", "", model.ContainerStopped},
		{"case insensitive", "RUNNING", "", model.ContainerRunning},
		{"unrecognized", "removing", "", model.ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainerState(tt.raw, tt.health); got != tt.want {
				t.Errorf("ContainerState(%q, %q) = %q, want %q", tt.raw, tt.health, got, tt.want)
			}
		})
	}
}
