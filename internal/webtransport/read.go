package webtransport

import (
	"fmt"

	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/permissions"
)

// requireRead loads resource and checks the caller has at least Read
// on it, the gate every per-resource /read variant applies before
// returning anything (spec §4.4).
func (s *Server) requireRead(w *webReq, kind model.ResourceKind, id string) (*model.Resource, error) {
	res, err := s.deps.Store.GetResource(kind, id)
	if err != nil {
		return nil, err
	}
	eff, err := s.deps.Permissions.Effective(w.user, res)
	if err != nil {
		return nil, err
	}
	if !permissions.Fulfills(eff, permissions.Required(model.PermissionRead)) {
		return nil, fmt.Errorf("%w: no read access to %s %s", model.ErrForbidden, kind, id)
	}
	return res, nil
}

// filterReadable drops every resource the caller cannot read, applying
// internal/permissions.Evaluator.PermittedIds's unrestricted short
// circuit first so an admin or transparent-mode caller pays no per-row
// cost.
func (s *Server) filterReadable(user *model.User, kind model.ResourceKind, all []*model.Resource) ([]*model.Resource, error) {
	ids, unrestricted, err := s.deps.Permissions.PermittedIds(user, kind)
	if err != nil {
		return nil, err
	}
	if unrestricted {
		return all, nil
	}
	out := make([]*model.Resource, 0, len(all))
	for _, r := range all {
		if _, ok := ids[r.Id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type getResourceParams struct {
	Kind model.ResourceKind `json:"kind"`
	Id   string             `json:"id"`
}

type listResourcesParams struct {
	Kind model.ResourceKind `json:"kind"`
}

type getUpdateParams struct {
	Id string `json:"id"`
}

type listUpdatesForTargetsParams struct {
	Targets []model.ResourceTarget `json:"targets"`
	Page    int                    `json:"page"`
}

type listOpenAlertsForTargetParams struct {
	Target model.ResourceTarget `json:"target"`
}

type getVariableParams struct {
	Name string `json:"name"`
}

var readVariants = variantTable{
	"GetResource": func(s *Server, w *webReq) (any, error) {
		var p getResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.requireRead(w, p.Kind, p.Id)
	},
	"GetResourceDependencies": func(s *Server, w *webReq) (any, error) {
		var p getResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireRead(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		return s.deps.Facade.Dependencies(p.Kind, p.Id)
	},
	"ListResources": func(s *Server, w *webReq) (any, error) {
		var p listResourcesParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		all, err := s.deps.Facade.List(p.Kind, nil)
		if err != nil {
			return nil, err
		}
		return s.filterReadable(w.user, p.Kind, all)
	},
	"GetUpdate": func(s *Server, w *webReq) (any, error) {
		var p getUpdateParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		u, err := s.deps.Store.GetUpdate(p.Id)
		if err != nil {
			return nil, err
		}
		if _, err := s.requireRead(w, u.Target.Kind, u.Target.Id); err != nil {
			return nil, err
		}
		return u, nil
	},
	"ListUpdatesForTargets": func(s *Server, w *webReq) (any, error) {
		var p listUpdatesForTargetsParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		targets := make(map[model.ResourceTarget]struct{}, len(p.Targets))
		for _, t := range p.Targets {
			if _, err := s.requireRead(w, t.Kind, t.Id); err != nil {
				continue
			}
			targets[t] = struct{}{}
		}
		return s.deps.Store.ListUpdatesForTargets(targets, p.Page)
	},
	"ListInProgressUpdates": func(s *Server, w *webReq) (any, error) {
		all, err := s.deps.Store.ListInProgressUpdates()
		if err != nil {
			return nil, err
		}
		out := make([]*model.Update, 0, len(all))
		for _, u := range all {
			if _, err := s.requireRead(w, u.Target.Kind, u.Target.Id); err == nil {
				out = append(out, u)
			}
		}
		return out, nil
	},
	"ListAlerts": func(s *Server, w *webReq) (any, error) {
		all, err := s.deps.Store.ListAlerts()
		if err != nil {
			return nil, err
		}
		out := make([]*model.Alert, 0, len(all))
		for _, a := range all {
			if _, err := s.requireRead(w, a.Target.Kind, a.Target.Id); err == nil {
				out = append(out, a)
			}
		}
		return out, nil
	},
	"ListOpenAlertsForTarget": func(s *Server, w *webReq) (any, error) {
		var p listOpenAlertsForTargetParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireRead(w, p.Target.Kind, p.Target.Id); err != nil {
			return nil, err
		}
		return s.deps.Store.ListOpenAlertsForTarget(p.Target)
	},
	"ListTags": func(s *Server, w *webReq) (any, error) {
		return s.deps.Store.ListTags()
	},
	"ListVariables": func(s *Server, w *webReq) (any, error) {
		return s.deps.Store.ListVariables()
	},
	"GetVariable": func(s *Server, w *webReq) (any, error) {
		var p getVariableParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Store.GetVariable(p.Name)
	},
	"ListUsers": func(s *Server, w *webReq) (any, error) {
		if !w.user.Admin {
			return nil, fmt.Errorf("%w: ListUsers requires admin", model.ErrForbidden)
		}
		return s.deps.Store.ListUsers()
	},
	"ListGroups": func(s *Server, w *webReq) (any, error) {
		if !w.user.Admin {
			return nil, fmt.Errorf("%w: ListGroups requires admin", model.ErrForbidden)
		}
		return s.deps.Store.ListGroups()
	},
	"GetUserMe": func(s *Server, w *webReq) (any, error) {
		return w.user, nil
	},
}
