// Package sync implements the Sync Reconciler (C9): parsing a declared
// TOML resource set, three-way diffing it against stored resources, and
// applying the result in dependency order. The parsed-document shape
// (one TOML array-of-tables per resource kind, each table a name plus an
// opaque config blob) mirrors the teacher's own layered-config TOML
// files in internal/config, generalized from "one fixed settings struct"
// to "N arbitrary kinds, each array-of-tables decoded into a generic
// map[string]any config blob".
package sync

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/komodore/core/internal/model"
)

// DeclaredResource is one [[kind]] entry of a ResourcesToml document.
type DeclaredResource struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Template    bool           `toml:"template"`
	Tags        []string       `toml:"tags"`
	Config      map[string]any `toml:"config"`
}

// ResourcesToml is the declared-state document the Sync Reconciler
// applies (spec §4.9 "Input: ResourcesToml").
type ResourcesToml struct {
	Server     []DeclaredResource `toml:"server"`
	Builder    []DeclaredResource `toml:"builder"`
	Build      []DeclaredResource `toml:"build"`
	Repo       []DeclaredResource `toml:"repo"`
	Deployment []DeclaredResource `toml:"deployment"`
	Stack      []DeclaredResource `toml:"stack"`
	Procedure  []DeclaredResource `toml:"procedure"`
	Action     []DeclaredResource `toml:"action"`
	Alerter    []DeclaredResource `toml:"alerter"`
	Sync       []DeclaredResource `toml:"sync"`
}

// ParseResourcesToml decodes a ResourcesToml document.
func ParseResourcesToml(content []byte) (*ResourcesToml, error) {
	var rt ResourcesToml
	if _, err := toml.Decode(string(content), &rt); err != nil {
		return nil, fmt.Errorf("parse resources toml: %w", err)
	}
	return &rt, nil
}

// ForKind returns the declared entries for one resource kind.
func (rt *ResourcesToml) ForKind(kind model.ResourceKind) []DeclaredResource {
	switch kind {
	case model.KindServer:
		return rt.Server
	case model.KindBuilder:
		return rt.Builder
	case model.KindBuild:
		return rt.Build
	case model.KindRepo:
		return rt.Repo
	case model.KindDeployment:
		return rt.Deployment
	case model.KindStack:
		return rt.Stack
	case model.KindProcedure:
		return rt.Procedure
	case model.KindAction:
		return rt.Action
	case model.KindAlerter:
		return rt.Alerter
	case model.KindSync:
		return rt.Sync
	default:
		return nil
	}
}
