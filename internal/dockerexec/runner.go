package dockerexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/komodore/core/internal/interpolate"
)

// CommandResult is the captured output of a shelled-out command, logs
// already sanitized against any secret replacers supplied by the caller
// (spec §4.11: "any command the core sends to Periphery that embeds
// secrets must either pre-interpolate and sanitize logs, or defer
// interpolation by passing the replacer list").
type CommandResult struct {
	Stdout  string
	Stderr  string
	Success bool
}

// runCommand executes name with args in dir, capturing stdout/stderr
// separately and sanitizing both against replacers before they are ever
// assigned to a Result the caller might log. Grounded on the original
// implementation's run_komodo_command_with_sanitization: sanitize at the
// point of capture, never store or log a raw secret value.
func runCommand(ctx context.Context, dir, name string, args []string, replacers []interpolate.Replacer) CommandResult {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return CommandResult{
		Stdout:  interpolate.Sanitize(stdout.String(), replacers),
		Stderr:  interpolate.Sanitize(stderr.String(), replacers),
		Success: err == nil,
	}
}

// RunScript executes an Action's script via the host shell, the same
// shell-out-and-sanitize shape RunBuild and the compose/git functions use
// for every other command this package runs on Core's or Periphery's
// behalf.
func RunScript(ctx context.Context, script string, replacers []interpolate.Replacer) (CommandResult, error) {
	res := runCommand(ctx, "", "sh", []string{"-c", script}, replacers)
	return res, wrapExitErr("run action", res)
}

func wrapExitErr(name string, res CommandResult) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s failed: %s", name, res.Stderr)
}
