package dockerexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/komodore/core/internal/interpolate"
	"github.com/komodore/core/internal/model"
	"github.com/moby/moby/client"
)

// ComposeWorkDir is the base directory Periphery writes compose files
// and env files to before invoking the CLI, one subdirectory per stack
// name.
const ComposeWorkDir = "/var/lib/komodore-periphery/stacks"

// ComposeUp writes fileContents and environment to disk under
// stackName's work directory and runs `docker compose up -d`. There is
// no Engine API endpoint for compose itself — Docker does not expose
// compose as a daemon primitive — so this shells out to the CLI exactly
// as the original implementation's compose/mod.rs does.
func ComposeUp(ctx context.Context, stackName, fileContents string, environment map[string]string, replacers []interpolate.Replacer) (CommandResult, error) {
	dir := filepath.Join(ComposeWorkDir, stackName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CommandResult{}, fmt.Errorf("create stack dir: %w", err)
	}
	composePath := filepath.Join(dir, "compose.yaml")
	if err := os.WriteFile(composePath, []byte(fileContents), 0o644); err != nil {
		return CommandResult{}, fmt.Errorf("write compose file: %w", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte(renderEnvFile(environment)), 0o600); err != nil {
		return CommandResult{}, fmt.Errorf("write env file: %w", err)
	}

	res := runCommand(ctx, dir, "docker", []string{"compose", "-p", stackName, "-f", composePath, "--env-file", envPath, "up", "-d", "--remove-orphans"}, replacers)
	return res, wrapExitErr("compose up", res)
}

// ComposeDown runs `docker compose down` for stackName (spec §4.5
// "Stack delete issues compose down --remove-orphans").
func ComposeDown(ctx context.Context, stackName string, removeOrphans bool, replacers []interpolate.Replacer) error {
	dir := filepath.Join(ComposeWorkDir, stackName)
	args := []string{"compose", "-p", stackName, "down"}
	if removeOrphans {
		args = append(args, "--remove-orphans")
	}
	res := runCommand(ctx, dir, "docker", args, replacers)
	return wrapExitErr("compose down", res)
}

func renderEnvFile(environment map[string]string) string {
	out := ""
	for k, v := range environment {
		out += k + "=" + v + "\n"
	}
	return out
}

// ListComposeProjects groups the host's containers by their
// com.docker.compose.project label into the ComposeProject shape the
// Status Cache's monitor loop diffs per tick (spec §4.2).
func (c *Client) ListComposeProjects(ctx context.Context) ([]model.ComposeProject, error) {
	result, err := c.api.ContainerList(ctx, client.ContainerListOptions{All: true})
	if err != nil {
		return nil, err
	}
	items := make([]composeLabeledContainer, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, composeLabeledContainer{labels: item.Labels, state: item.State})
	}
	return groupComposeProjects(items), nil
}

// composeLabeledContainer is the subset of a container.Summary
// groupComposeProjects needs, pulled out so the grouping logic can be
// unit-tested without a Docker daemon.
type composeLabeledContainer struct {
	labels map[string]string
	state  string
}

func groupComposeProjects(containers []composeLabeledContainer) []model.ComposeProject {
	byProject := make(map[string]*model.ComposeProject)
	order := make([]string, 0)
	for _, item := range containers {
		project, ok := item.labels[composeProjectLabel]
		if !ok {
			continue
		}
		service := item.labels[composeServiceLabel]
		p, ok := byProject[project]
		if !ok {
			p = &model.ComposeProject{Name: project}
			byProject[project] = p
			order = append(order, project)
		}
		if service != "" {
			p.Services = append(p.Services, service)
		}
		if p.Status == "" || item.state == "running" {
			p.Status = item.state
		}
	}

	out := make([]model.ComposeProject, 0, len(order))
	for _, name := range order {
		out = append(out, *byProject[name])
	}
	return out
}
