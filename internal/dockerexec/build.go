package dockerexec

import (
	"fmt"
	"os"
	"path/filepath"

	"context"

	"github.com/komodore/core/internal/interpolate"
)

// BuildWorkDir is the base directory Periphery writes Dockerfiles and
// build contexts to before invoking the CLI.
const BuildWorkDir = "/var/lib/komodore-periphery/builds"

// RunBuild writes dockerfile under a per-build work directory and runs
// `docker build`, tagging the result imageName:imageTag. Shelled out via
// the CLI rather than the Engine API's ImageBuild endpoint — grounded on
// the same docker-CLI-shell-out pattern the preview-container example in
// the corpus uses for ad hoc image builds, since the Engine API's build
// endpoint needs a tar-streamed context this codebase has no other use
// for building.
func RunBuild(ctx context.Context, dockerfile, imageName, imageTag string, buildArgs map[string]string, replacers []interpolate.Replacer) (CommandResult, error) {
	dir := filepath.Join(BuildWorkDir, imageName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CommandResult{}, fmt.Errorf("create build dir: %w", err)
	}
	dockerfilePath := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return CommandResult{}, fmt.Errorf("write Dockerfile: %w", err)
	}

	tag := imageName + ":" + imageTag
	args := []string{"build", "-f", dockerfilePath, "-t", tag}
	for k, v := range buildArgs {
		args = append(args, "--build-arg", k+"="+v)
	}
	args = append(args, dir)

	res := runCommand(ctx, dir, "docker", args, replacers)
	return res, wrapExitErr("docker build", res)
}
