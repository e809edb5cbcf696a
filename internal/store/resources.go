package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

// GetResource fetches a Resource by kind and id.
func (s *Store) GetResource(kind model.ResourceKind, id string) (*model.Resource, error) {
	var r model.Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, resourceBucket(kind), id, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindResourceByName looks up a Resource by its unique-per-kind name.
func (s *Store) FindResourceByName(kind model.ResourceKind, name string) (*model.Resource, error) {
	var found *model.Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, resourceBucket(kind), func() any { return &model.Resource{} }, func(_ string, v any) error {
			r := v.(*model.Resource)
			if r.Name == name {
				found = r
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, model.ErrNotFound
	}
	return found, nil
}

// PutResource inserts or overwrites a Resource.
func (s *Store) PutResource(r *model.Resource) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, resourceBucket(r.Kind), r.Id, r)
	})
}

// DeleteResource removes a Resource by kind and id.
func (s *Store) DeleteResource(kind model.ResourceKind, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resourceBucket(kind)).Delete([]byte(id))
	})
}

// ListResources returns every Resource of the given kind, optionally
// restricted to the given id set (nil set = all; an empty non-nil set
// matches nothing). Used by
// internal/permissions' scoped-listing path (§4.4) and internal/sync's
// "load all existing Resources[K]" step (§4.9).
func (s *Store) ListResources(kind model.ResourceKind, idFilter map[string]struct{}) ([]*model.Resource, error) {
	var out []*model.Resource
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, resourceBucket(kind), func() any { return &model.Resource{} }, func(key string, v any) error {
			if idFilter != nil {
				if _, ok := idFilter[key]; !ok {
					return nil
				}
			}
			out = append(out, v.(*model.Resource))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list resources %s: %w", kind, err)
	}
	return out, nil
}

// NameExists reports whether a Resource of kind with the given name
// already exists under a different id (used by Create's unique-name
// enforcement, spec §4.5).
func (s *Store) NameExists(kind model.ResourceKind, name, excludeId string) (bool, error) {
	r, err := s.FindResourceByName(kind, name)
	if err != nil {
		if err == model.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return r.Id != excludeId, nil
}
