package depsgraph

import "testing"

func TestSortOrdersDependenciesFirst(t *testing.T) {
	g := Build([]Node{
		{Id: "stack-1", DependsOn: []string{"server-1", "repo-1"}},
		{Id: "repo-1", DependsOn: []string{"server-1"}},
		{Id: "server-1"},
	})
	order, err := g.Sort()
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["server-1"] > pos["repo-1"] || pos["repo-1"] > pos["stack-1"] {
		t.Fatalf("expected server-1 < repo-1 < stack-1, got order %v", order)
	}
}

func TestSortDetectsCycle(t *testing.T) {
	g := Build([]Node{
		{Id: "a", DependsOn: []string{"b"}},
		{Id: "b", DependsOn: []string{"a"}},
	})
	_, err := g.Sort()
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		t.Fatalf("expected DetectCycles to report the a<->b cycle")
	}
}

func TestDanglingReferenceIgnored(t *testing.T) {
	g := Build([]Node{
		{Id: "stack-1", DependsOn: []string{"missing-server"}},
	})
	order, err := g.Sort()
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if len(order) != 1 || order[0] != "stack-1" {
		t.Fatalf("expected dangling dep to be dropped, not block sort, got %v", order)
	}
}
