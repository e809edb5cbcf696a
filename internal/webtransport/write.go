package webtransport

import (
	"fmt"

	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/permissions"
	"github.com/komodore/core/internal/resources"
)

// requireWrite loads resource and checks the caller has Write on it —
// the gate every mutating /write variant applies (spec §4.4).
func (s *Server) requireWrite(w *webReq, kind model.ResourceKind, id string) (*model.Resource, error) {
	res, err := s.deps.Store.GetResource(kind, id)
	if err != nil {
		return nil, err
	}
	eff, err := s.deps.Permissions.Effective(w.user, res)
	if err != nil {
		return nil, err
	}
	if !permissions.Fulfills(eff, permissions.Required(model.PermissionWrite)) {
		return nil, fmt.Errorf("%w: no write access to %s %s", model.ErrForbidden, kind, id)
	}
	return res, nil
}

type createResourceParams struct {
	Kind           model.ResourceKind                  `json:"kind"`
	Name           string                               `json:"name"`
	Description    string                               `json:"description"`
	Config         model.RawConfig                      `json:"config"`
	Tags           []string                             `json:"tags"`
	BasePermission model.PermissionLevelAndSpecific      `json:"base_permission"`
}

type updateResourceParams struct {
	Kind    model.ResourceKind `json:"kind"`
	Id      string             `json:"id"`
	Partial model.RawConfig    `json:"partial"`
}

type renameResourceParams struct {
	Kind model.ResourceKind `json:"kind"`
	Id   string             `json:"id"`
	Name string             `json:"name"`
}

type updateResourceMetaParams struct {
	Kind           model.ResourceKind               `json:"kind"`
	Id             string                            `json:"id"`
	Description    string                            `json:"description"`
	Template       bool                              `json:"template"`
	BasePermission model.PermissionLevelAndSpecific  `json:"base_permission"`
}

type updateResourceTagsParams struct {
	Kind   model.ResourceKind `json:"kind"`
	Id     string             `json:"id"`
	TagIds []string           `json:"tag_ids"`
}

type deleteResourceParams struct {
	Kind model.ResourceKind `json:"kind"`
	Id   string             `json:"id"`
}

type grantPermissionParams struct {
	UserTargetKind     model.UserTargetKind              `json:"user_target_kind"`
	UserTargetId       string                             `json:"user_target_id"`
	ResourceTargetKind model.ResourceTargetKind           `json:"resource_target_kind"`
	ResourceKind       model.ResourceKind                 `json:"resource_kind"`
	ResourceId         string                             `json:"resource_id"`
	Grant              model.PermissionLevelAndSpecific   `json:"grant"`
}

var writeVariants = variantTable{
	"CreateResource": func(s *Server, w *webReq) (any, error) {
		var p createResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Facade.Create(resources.CreateParams{
			Kind:           p.Kind,
			Name:           p.Name,
			Description:    p.Description,
			Config:         p.Config,
			Tags:           p.Tags,
			BasePermission: p.BasePermission,
			Operator:       w.user.Id,
		})
	},
	"UpdateResource": func(s *Server, w *webReq) (any, error) {
		var p updateResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireWrite(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		return s.deps.Facade.Update(resources.UpdateParams{
			Kind: p.Kind, Id: p.Id, Partial: p.Partial, Operator: w.user.Id,
		})
	},
	"RenameResource": func(s *Server, w *webReq) (any, error) {
		var p renameResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireWrite(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		return s.deps.Facade.Rename(p.Kind, p.Id, p.Name)
	},
	"UpdateResourceMeta": func(s *Server, w *webReq) (any, error) {
		var p updateResourceMetaParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireWrite(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		return s.deps.Facade.UpdateMeta(p.Kind, p.Id, p.Description, p.Template, p.BasePermission)
	},
	"UpdateResourceTags": func(s *Server, w *webReq) (any, error) {
		var p updateResourceTagsParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireWrite(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		return s.deps.Facade.UpdateTags(p.Kind, p.Id, p.TagIds)
	},
	"DeleteResource": func(s *Server, w *webReq) (any, error) {
		var p deleteResourceParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		if _, err := s.requireWrite(w, p.Kind, p.Id); err != nil {
			return nil, err
		}
		if err := s.deps.Facade.Delete(p.Kind, p.Id); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	},
	"GrantPermission": func(s *Server, w *webReq) (any, error) {
		if !w.user.Admin {
			return nil, fmt.Errorf("%w: GrantPermission requires admin", model.ErrForbidden)
		}
		var p grantPermissionParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		row := &model.PermissionRow{
			UserTargetKind:     p.UserTargetKind,
			UserTargetId:       p.UserTargetId,
			ResourceTargetKind: p.ResourceTargetKind,
			ResourceKind:       p.ResourceKind,
			ResourceId:         p.ResourceId,
			Grant:              p.Grant,
		}
		if err := s.deps.Facade.GrantPermission(row); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	},
}
