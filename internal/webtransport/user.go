package webtransport

import (
	"fmt"

	"github.com/komodore/core/internal/model"
)

// requireAdmin is the gate every /user management variant applies
// (spec §4.4 "User/UserGroup/ApiKey administration is admin-only").
func requireAdmin(w *webReq) error {
	if !w.user.Admin {
		return fmt.Errorf("%w: requires admin", model.ErrForbidden)
	}
	return nil
}

type createLocalUserParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

type setUserAllParams struct {
	UserId string                            `json:"user_id"`
	Kind   model.ResourceKind                `json:"kind"`
	Grant  model.PermissionLevelAndSpecific  `json:"grant"`
}

type createGroupParams struct {
	Name     string `json:"name"`
	Everyone bool   `json:"everyone"`
}

type addUserToGroupParams struct {
	GroupId string `json:"group_id"`
	UserId  string `json:"user_id"`
}

type createApiKeyParams struct {
	Name string `json:"name"`
}

type createApiKeyResponse struct {
	Key    string        `json:"key"`
	Secret string        `json:"secret"`
	ApiKey *model.ApiKey `json:"api_key"`
}

type deleteApiKeyParams struct {
	Id string `json:"id"`
}

var userVariants = variantTable{
	"CreateLocalUser": func(s *Server, w *webReq) (any, error) {
		if err := requireAdmin(w); err != nil {
			return nil, err
		}
		var p createLocalUserParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Facade.CreateLocalUser(p.Username, p.Password, p.Admin)
	},
	"SetUserAll": func(s *Server, w *webReq) (any, error) {
		if err := requireAdmin(w); err != nil {
			return nil, err
		}
		var p setUserAllParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Facade.SetUserAll(p.UserId, p.Kind, p.Grant)
	},
	"CreateGroup": func(s *Server, w *webReq) (any, error) {
		if err := requireAdmin(w); err != nil {
			return nil, err
		}
		var p createGroupParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Facade.CreateGroup(p.Name, p.Everyone)
	},
	"AddUserToGroup": func(s *Server, w *webReq) (any, error) {
		if err := requireAdmin(w); err != nil {
			return nil, err
		}
		var p addUserToGroupParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		return s.deps.Facade.AddUserToGroup(p.GroupId, p.UserId)
	},
	"CreateApiKey": func(s *Server, w *webReq) (any, error) {
		var p createApiKeyParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		key, secret, apiKey, err := s.deps.Facade.CreateApiKey(w.user.Id, p.Name)
		if err != nil {
			return nil, err
		}
		return createApiKeyResponse{Key: key, Secret: secret, ApiKey: apiKey}, nil
	},
	"ListMyApiKeys": func(s *Server, w *webReq) (any, error) {
		return s.deps.Store.ListApiKeysForUser(w.user.Id)
	},
	"DeleteApiKey": func(s *Server, w *webReq) (any, error) {
		var p deleteApiKeyParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		keys, err := s.deps.Store.ListApiKeysForUser(w.user.Id)
		if err != nil {
			return nil, err
		}
		owned := false
		for _, k := range keys {
			if k.Id == p.Id {
				owned = true
				break
			}
		}
		if !owned && !w.user.Admin {
			return nil, fmt.Errorf("%w: not your api key", model.ErrForbidden)
		}
		if err := s.deps.Store.DeleteApiKey(p.Id); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	},
}
