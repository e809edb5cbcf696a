package webtransport

import (
	"fmt"

	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/permissions"
	"github.com/komodore/core/internal/resources"
)

// execResult is the wire shape every Periphery execute-variant call in
// this file decodes into — stdout/stderr/success, mirroring
// internal/dockerexec.CommandResult's fields across the wire boundary.
type execResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

// requireExecute checks the caller has Write plus the named specific
// permission on target — spec §4.4's "Execute.<verb>()" shape, e.g.
// Required(Write, SpecificTerminal) for a terminal session.
func (s *Server) requireExecute(w *webReq, target model.ResourceTarget, specific ...model.SpecificPermission) (*model.Resource, error) {
	res, err := s.deps.Store.GetResource(target.Kind, target.Id)
	if err != nil {
		return nil, err
	}
	eff, err := s.deps.Permissions.Effective(w.user, res)
	if err != nil {
		return nil, err
	}
	if !permissions.Fulfills(eff, permissions.Required(model.PermissionWrite, specific...)) {
		return nil, fmt.Errorf("%w: no execute access to %s %s", model.ErrForbidden, target.Kind, target.Id)
	}
	return res, nil
}

type executeParams struct {
	Target model.ResourceTarget `json:"target"`
}

type runProcedureParams struct {
	Target model.ResourceTarget `json:"target"`
}

type batchExecuteParams struct {
	Kind      model.ResourceKind `json:"kind"`
	Pattern   string             `json:"pattern"`
	Operation string             `json:"operation"`
}

type cancelParams struct {
	Id string `json:"id"`
}

func simpleExecute(operation, stage, variant string, specific ...model.SpecificPermission) variantFunc {
	return func(s *Server, w *webReq) (any, error) {
		var p executeParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireExecute(w, p.Target, specific...); err != nil {
			return nil, err
		}
		handler := s.remoteHandler(stage, variant, func(res *model.Resource) (any, error) {
			return map[string]any{"id": res.Id, "name": res.Name, "config": res.Config}, nil
		})
		return s.deps.Dispatcher.Execute(w.r.Context(), dispatch.Request{
			Operation: operation,
			Target:    p.Target,
			Operator:  w.user.Id,
		}, handler)
	}
}

var executeVariants = variantTable{
	"Deploy":        simpleExecute("Deploy", "deploy", "Deploy"),
	"StartServer":   simpleExecute("StartContainer", "start", "StartContainer"),
	"StopServer":    simpleExecute("StopContainer", "stop", "StopContainer"),
	"RestartServer": simpleExecute("RestartContainer", "restart", "RestartContainer"),
	"Destroy":       simpleExecute("Destroy", "destroy", "RemoveContainer"),
	"DeployStack":   simpleExecute("DeployStack", "deploy", "ComposeUp"),
	"DestroyStack":  simpleExecute("DestroyStack", "destroy", "ComposeDown"),
	"PullImage":     simpleExecute("PullImage", "pull", "PullImage"),
	"PruneImages":   simpleExecute("PruneImages", "prune", "PruneImages", model.SpecificTerminal),
	"RunBuild":      simpleExecute("RunBuild", "build", "RunBuild"),
	"RunAction": func(s *Server, w *webReq) (any, error) {
		var p executeParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireExecute(w, p.Target); err != nil {
			return nil, err
		}
		return s.deps.Dispatcher.Execute(w.r.Context(), dispatch.Request{
			Operation: "RunAction",
			Target:    p.Target,
			Operator:  w.user.Id,
		}, s.actionHandler(p.Target))
	},
	"RunProcedure": func(s *Server, w *webReq) (any, error) {
		var p runProcedureParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		res, err := s.requireExecute(w, p.Target)
		if err != nil {
			return nil, err
		}
		cfg, err := resources.DecodeConfig[model.ProcedureConfig](res.Config)
		if err != nil {
			return nil, err
		}
		return s.deps.Dispatcher.Execute(w.r.Context(), dispatch.Request{
			Operation: "RunProcedure",
			Target:    p.Target,
			Operator:  w.user.Id,
		}, s.procedureHandler(cfg))
	},
	"BatchExecute": func(s *Server, w *webReq) (any, error) {
		var p batchExecuteParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		all, err := s.deps.Facade.List(p.Kind, nil)
		if err != nil {
			return nil, err
		}
		candidates := make([]dispatch.BatchTarget, 0, len(all))
		for _, r := range all {
			eff, err := s.deps.Permissions.Effective(w.user, r)
			if err != nil || !permissions.Fulfills(eff, permissions.Required(model.PermissionWrite)) {
				continue
			}
			candidates = append(candidates, dispatch.BatchTarget{Id: r.Id, Name: r.Name})
		}
		return s.deps.Dispatcher.ExecuteBatch(w.r.Context(), p.Pattern, p.Kind, p.Operation, w.user.Id, candidates, func(t dispatch.BatchTarget) dispatch.Handler {
			return s.remoteHandler(p.Operation, p.Operation, func(res *model.Resource) (any, error) {
				return map[string]any{"id": res.Id, "name": res.Name, "config": res.Config}, nil
			})
		}), nil
	},
	"CancelExecution": func(s *Server, w *webReq) (any, error) {
		var p cancelParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if err := s.deps.Dispatcher.CancelPreValidate(p.Id); err != nil {
			return nil, err
		}
		if err := s.deps.Dispatcher.Cancel(p.Id); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	},
}
