package store

import (
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

// UpdatePageSize is the fixed page size Update queries use (spec §4.7
// "Queries page newest-first in a fixed page size").
const UpdatePageSize = 50

// PutUpdate inserts or overwrites an Update record.
func (s *Store) PutUpdate(u *model.Update) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketUpdates, u.Id, u) })
}

// GetUpdate fetches an Update by id.
func (s *Store) GetUpdate(id string) (*model.Update, error) {
	var u model.Update
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketUpdates, id, &u) })
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUpdatesForTargets returns Updates whose Target is in targets,
// newest-first, paged (spec §4.7: "For non-admins in non-transparent
// mode, the list query is OR-composed across all resource kinds with ids
// filtered to what the user may read"). A nil targets set means
// unrestricted (admin/transparent).
func (s *Store) ListUpdatesForTargets(targets map[model.ResourceTarget]struct{}, page int) ([]*model.Update, error) {
	var all []*model.Update
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketUpdates, func() any { return &model.Update{} }, func(_ string, v any) error {
			u := v.(*model.Update)
			if targets != nil {
				if _, ok := targets[u.Target]; !ok {
					return nil
				}
			}
			all = append(all, u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.After(all[j].Start) })

	start := page * UpdatePageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + UpdatePageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// ListInProgressUpdates returns every Update whose Status is InProgress —
// used by the startup cleanup step (spec §3 Status cache entries
// ownership note: "cleanup step resets any InProgress updates to
// Complete,success=false").
func (s *Store) ListInProgressUpdates() ([]*model.Update, error) {
	var out []*model.Update
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketUpdates, func() any { return &model.Update{} }, func(_ string, v any) error {
			u := v.(*model.Update)
			if u.Status == model.UpdateInProgress {
				out = append(out, u)
			}
			return nil
		})
	})
	return out, err
}
