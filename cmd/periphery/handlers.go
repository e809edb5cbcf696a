package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moby/moby/api/types/container"

	"github.com/komodore/core/internal/dockerexec"
	"github.com/komodore/core/internal/interpolate"
	"github.com/komodore/core/internal/model"
)

// execResult mirrors internal/webtransport.execResult on the wire —
// the response shape every execute variant below encodes.
type execResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

func fromCommand(r dockerexec.CommandResult) execResult {
	return execResult{Stdout: r.Stdout, Stderr: r.Stderr, Success: r.Success}
}

// wireTarget is the {id, name, config} shape internal/webtransport's
// remoteHandler sends for every resource-scoped execute variant (see
// execute.go's buildParams) — config carries the resource's raw
// Resource.Config blob, decoded per-variant into the concrete typed
// config dockerexec's functions expect.
type wireTarget struct {
	Id     string          `json:"id"`
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

func decodeConfig[T any](t wireTarget) (T, error) {
	var cfg T
	if len(t.Config) == 0 {
		return cfg, nil
	}
	err := json.Unmarshal(t.Config, &cfg)
	return cfg, err
}

var executeVariants = variantTable{
	"StartContainer": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		return execResult{Success: true}, a.docker.StartContainer(context.Background(), t.Id)
	},
	"StopContainer": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		return execResult{Success: true}, a.docker.StopContainer(context.Background(), t.Id, 10)
	},
	"RestartContainer": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		return execResult{Success: true}, a.docker.RestartContainer(context.Background(), t.Id)
	},
	"RemoveContainer": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		return execResult{Success: true}, a.docker.RemoveContainer(context.Background(), t.Id)
	},
	"Deploy": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		cfg, err := decodeConfig[model.DeploymentConfig](t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		ctx := context.Background()
		if err := a.docker.PullImage(ctx, cfg.Image); err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		_ = a.docker.RemoveContainer(ctx, t.Name) // best-effort: replace any prior container of this name

		env := make([]string, 0, len(cfg.Environment))
		for k, v := range cfg.Environment {
			env = append(env, k+"="+v)
		}
		containerCfg := &container.Config{Image: cfg.Image, Env: env}
		hostCfg := &container.HostConfig{Binds: cfg.Volumes}

		id, err := a.docker.CreateContainer(ctx, t.Name, containerCfg, hostCfg, nil)
		if err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		if err := a.docker.StartContainer(ctx, id); err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		return execResult{Success: true, Stdout: id}, nil
	},
	"ComposeUp": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		cfg, err := decodeConfig[model.StackConfig](t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		result, err := dockerexec.ComposeUp(context.Background(), t.Name, cfg.FileContents, cfg.Environment, []interpolate.Replacer{})
		if err != nil {
			return fromCommand(result), nil
		}
		return fromCommand(result), nil
	},
	"ComposeDown": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		err := dockerexec.ComposeDown(context.Background(), t.Name, true, []interpolate.Replacer{})
		if err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		return execResult{Success: true}, nil
	},
	"PullImage": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		cfg, err := decodeConfig[model.DeploymentConfig](t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		image := cfg.Image
		if image == "" {
			image = t.Name
		}
		if err := a.docker.PullImage(context.Background(), image); err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		return execResult{Success: true}, nil
	},
	"PruneImages": func(a *agent, raw json.RawMessage) (any, error) {
		result, err := a.docker.PruneImages(context.Background())
		if err != nil {
			return execResult{Success: false, Stderr: err.Error()}, nil
		}
		return map[string]any{
			"success":         true,
			"images_deleted":  result.ImagesDeleted,
			"reclaimed_bytes": result.SpaceReclaimed,
		}, nil
	},
	"RunBuild": func(a *agent, raw json.RawMessage) (any, error) {
		var t wireTarget
		if err := decodeParams(raw, &t); err != nil {
			return nil, err
		}
		cfg, err := decodeConfig[model.BuildConfig](t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		result, err := dockerexec.RunBuild(context.Background(), cfg.Dockerfile, cfg.ImageName, cfg.ImageTag, cfg.BuildArgs, []interpolate.Replacer{})
		if err != nil {
			return fromCommand(result), nil
		}
		return fromCommand(result), nil
	},
	"CreateTerminalAuthToken": func(a *agent, raw json.RawMessage) (any, error) {
		return map[string]string{"token": a.tokens.issue()}, nil
	},
	"GetSystemInfo": func(a *agent, raw json.RawMessage) (any, error) {
		version, err := a.docker.Version(context.Background())
		if err != nil {
			return nil, err
		}
		containers, err := a.docker.ListContainers(context.Background())
		if err != nil {
			return nil, err
		}
		projects, err := a.docker.ListComposeProjects(context.Background())
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"version":    version,
			"containers": containers,
			"projects":   projects,
		}, nil
	},
}
