package dockerexec

import (
	"context"
	"os"
	"strings"

	"github.com/komodore/core/internal/interpolate"
)

// RepoResult reports the commit landed on after a clone or pull.
type RepoResult struct {
	CommitHash    string
	CommitMessage string
	Logs          CommandResult
}

// CloneOrPullRepo clones repoUrl at branch into path if it doesn't
// already contain a checkout, or pulls the latest commit on branch if it
// does — mirroring the original implementation's git.rs, which shells
// out to the system git binary rather than linking a Go git library (no
// git library appears anywhere in the reference corpus, so a CLI
// shell-out stays consistent with both the original and this codebase's
// "shell out to docker/git CLIs, wrap the Engine API for the rest"
// split).
func CloneOrPullRepo(ctx context.Context, repoUrl, branch, path string, replacers []interpolate.Replacer) (RepoResult, error) {
	if _, err := os.Stat(path + "/.git"); err != nil {
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return RepoResult{}, mkErr
		}
		res := runCommand(ctx, "", "git", []string{"clone", "--branch", branch, "--single-branch", repoUrl, path}, replacers)
		if !res.Success {
			return RepoResult{Logs: res}, wrapExitErr("git clone", res)
		}
	} else {
		fetch := runCommand(ctx, path, "git", []string{"fetch", "origin", branch}, replacers)
		if !fetch.Success {
			return RepoResult{Logs: fetch}, wrapExitErr("git fetch", fetch)
		}
		reset := runCommand(ctx, path, "git", []string{"reset", "--hard", "origin/" + branch}, replacers)
		if !reset.Success {
			return RepoResult{Logs: reset}, wrapExitErr("git reset", reset)
		}
	}

	hash := runCommand(ctx, path, "git", []string{"rev-parse", "HEAD"}, replacers)
	msg := runCommand(ctx, path, "git", []string{"log", "-1", "--pretty=%B"}, replacers)

	return RepoResult{
		CommitHash:    strings.TrimSpace(hash.Stdout),
		CommitMessage: strings.TrimSpace(msg.Stdout),
		Logs:          msg,
	}, nil
}
