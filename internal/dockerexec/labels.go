package dockerexec

import (
	"strings"

	"github.com/komodore/core/internal/model"
)

// ContainerState maps a raw Docker state string (as reported by
// ContainerList/ContainerInspect — "running", "restarting", "exited",
// "paused", "dead", ...) to the handful of states the Status Cache
// distinguishes for alerting.
func ContainerState(raw string, health string) model.ContainerState {
	switch strings.ToLower(raw) {
	case "running":
		if strings.EqualFold(health, "unhealthy") {
			return model.ContainerUnhealthy
		}
		return model.ContainerRunning
	case "restarting":
		return model.ContainerRestarting
	case "exited", "dead", "paused", "created":
		return model.ContainerStopped
	default:
		return model.ContainerUnknown
	}
}

// composeProjectLabel and composeServiceLabel name the
// com.docker.compose.* labels Docker attaches to every container started
// by `docker compose`; composeProjectLabel is used to group the flat
// container list back into projects for ListComposeProjects.
const (
	composeProjectLabel = "com.docker.compose.project"
	composeServiceLabel = "com.docker.compose.service"
)
