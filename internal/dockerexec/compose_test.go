package dockerexec

import (
	"reflect"
	"testing"
)

func TestGroupComposeProjects(t *testing.T) {
	containers := []composeLabeledContainer{
		{labels: map[string]string{composeProjectLabel: "blog", composeServiceLabel: "web"}, state: "running"},
		{labels: map[string]string{composeProjectLabel: "blog", composeServiceLabel: "db"}, state: "exited"},
		{labels: map[string]string{composeProjectLabel: "docs"}, state: "running"},
		{labels: map[string]string{"some.other.label": "x"}, state: "running"}, // not a compose container
	}

	got := groupComposeProjects(containers)

	want := map[string][]string{
		"blog": {"web", "db"},
		"docs": nil,
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 projects, got %d: %+v", len(got), got)
	}
	for _, p := range got {
		if !reflect.DeepEqual(p.Services, want[p.Name]) {
			t.Errorf("project %q services = %v, want %v", p.Name, p.Services, want[p.Name])
		}
	}

	for _, p := range got {
		if p.Name == "blog" && p.Status != "running" {
			t.Errorf("blog status = %q, want running (one container running should win)", p.Status)
		}
	}
}

func TestRenderEnvFile(t *testing.T) {
	got := renderEnvFile(map[string]string{"FOO": "bar"})
	if got != "FOO=bar\n" {
		t.Errorf("renderEnvFile = %q, want %q", got, "FOO=bar\n")
	}
}
