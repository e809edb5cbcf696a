package store

import (
	bolt "go.etcd.io/bbolt"
	"github.com/google/uuid"

	"github.com/komodore/core/internal/model"
)

// permKey enforces "at most one permission row per (user_target,
// resource_target)" (spec §3 Permission invariant) by making the row's
// storage key deterministic from its targets rather than a random id, so
// UpsertPermission on an existing (user,resource) pair overwrites in place.
func permKey(userKind model.UserTargetKind, userId string, resKind model.ResourceTargetKind, kind model.ResourceKind, resourceId string) string {
	return string(userKind) + "|" + userId + "|" + string(resKind) + "|" + string(kind) + "|" + resourceId
}

// UpsertPermission writes a PermissionRow, assigning it a stable id if new.
func (s *Store) UpsertPermission(p *model.PermissionRow) error {
	key := permKey(p.UserTargetKind, p.UserTargetId, p.ResourceTargetKind, p.ResourceKind, p.ResourceId)
	return s.db.Update(func(tx *bolt.Tx) error {
		existing := tx.Bucket(bucketPermissions).Get([]byte(key))
		if existing == nil {
			if p.Id == "" {
				p.Id = uuid.NewString()
			}
		}
		return putJSON(tx, bucketPermissions, key, p)
	})
}

// PermissionsForUserTarget returns every PermissionRow keyed to the given
// user or group.
func (s *Store) PermissionsForUserTarget(userKind model.UserTargetKind, userId string) ([]*model.PermissionRow, error) {
	var out []*model.PermissionRow
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketPermissions, func() any { return &model.PermissionRow{} }, func(_ string, v any) error {
			p := v.(*model.PermissionRow)
			if p.UserTargetKind == userKind && p.UserTargetId == userId {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// PermissionsForResource returns every PermissionRow targeting a specific
// resource id (used by DeletePermissionsForResource's cascade).
func (s *Store) PermissionsForResource(kind model.ResourceKind, resourceId string) ([]*model.PermissionRow, error) {
	var out []*model.PermissionRow
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketPermissions, func() any { return &model.PermissionRow{} }, func(_ string, v any) error {
			p := v.(*model.PermissionRow)
			if p.ResourceTargetKind == model.ResourceTargetSpecific && p.ResourceKind == kind && p.ResourceId == resourceId {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// DeletePermissionsForResource removes every permission row scoped to a
// specific resource id — called when that resource is deleted (spec §4.5
// "Delete ... also cascades permissions").
func (s *Store) DeletePermissionsForResource(kind model.ResourceKind, resourceId string) error {
	rows, err := s.PermissionsForResource(kind, resourceId)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, p := range rows {
			key := permKey(p.UserTargetKind, p.UserTargetId, p.ResourceTargetKind, p.ResourceKind, p.ResourceId)
			if err := tx.Bucket(bucketPermissions).Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
