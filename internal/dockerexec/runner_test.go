package dockerexec

import (
	"context"
	"runtime"
	"testing"

	"github.com/komodore/core/internal/interpolate"
)

func TestRunCommandSanitizesSecretsFromOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("echo test assumes a POSIX shell")
	}
	replacers := []interpolate.Replacer{{Value: "hunter2", Name: "DB_PASSWORD"}}

	res := runCommand(context.Background(), "", "echo", []string{"password=hunter2"}, replacers)

	if !res.Success {
		t.Fatalf("expected command to succeed, stderr=%q", res.Stderr)
	}
	want := "password=${{DB_PASSWORD}}\n"
	if res.Stdout != want {
		t.Errorf("Stdout = %q, want %q", res.Stdout, want)
	}
}

func TestRunCommandReportsFailure(t *testing.T) {
	res := runCommand(context.Background(), "", "false", nil, nil)
	if res.Success {
		t.Error("expected `false` to report failure")
	}
}

func TestWrapExitErr(t *testing.T) {
	if err := wrapExitErr("thing", CommandResult{Success: true}); err != nil {
		t.Errorf("expected nil error on success, got %v", err)
	}
	if err := wrapExitErr("thing", CommandResult{Success: false, Stderr: "boom"}); err == nil {
		t.Error("expected non-nil error on failure")
	}
}
