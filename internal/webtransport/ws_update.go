package webtransport

import (
	"net/http"

	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/permissions"
)

// handleWsUpdate streams every Update published on the server's
// UpdateBus that the caller may read, filtered by read permission on the
// Update's target. Nothing in this repository publishes to that bus (see
// UpdateBus), so the stream carries only explicitly published Updates.
func (s *Server) handleWsUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.deps.Updates.Subscribe()
	defer cancel()

	for update := range ch {
		if !s.canReadUpdate(user, update) {
			continue
		}
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
}

func (s *Server) canReadUpdate(user *model.User, update *model.Update) bool {
	res, err := s.deps.Store.GetResource(update.Target.Kind, update.Target.Id)
	if err != nil {
		return false
	}
	eff, err := s.deps.Permissions.Effective(user, res)
	if err != nil {
		return false
	}
	return permissions.Fulfills(eff, permissions.Required(model.PermissionRead))
}
