package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

// GetUser fetches a User by id.
func (s *Store) GetUser(id string) (*model.User, error) {
	var u model.User
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketUsers, id, &u) })
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByUsername looks up a User by username.
func (s *Store) FindUserByUsername(username string) (*model.User, error) {
	var found *model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketUsers, func() any { return &model.User{} }, func(_ string, v any) error {
			u := v.(*model.User)
			if u.Username == username {
				found = u
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

// PutUser inserts or overwrites a User.
func (s *Store) PutUser(u *model.User) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketUsers, u.Id, u) })
}

// DeleteUser removes a User by id.
func (s *Store) DeleteUser(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketUsers).Delete([]byte(id)) })
}

// ListUsers returns every User.
func (s *Store) ListUsers() ([]*model.User, error) {
	var out []*model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketUsers, func() any { return &model.User{} }, func(_ string, v any) error {
			out = append(out, v.(*model.User))
			return nil
		})
	})
	return out, err
}

// GetGroup fetches a UserGroup by id.
func (s *Store) GetGroup(id string) (*model.UserGroup, error) {
	var g model.UserGroup
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketGroups, id, &g) })
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// PutGroup inserts or overwrites a UserGroup.
func (s *Store) PutGroup(g *model.UserGroup) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketGroups, g.Id, g) })
}

// DeleteGroup removes a UserGroup by id.
func (s *Store) DeleteGroup(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketGroups).Delete([]byte(id)) })
}

// ListGroups returns every UserGroup.
func (s *Store) ListGroups() ([]*model.UserGroup, error) {
	var out []*model.UserGroup
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketGroups, func() any { return &model.UserGroup{} }, func(_ string, v any) error {
			out = append(out, v.(*model.UserGroup))
			return nil
		})
	})
	return out, err
}

// GroupsForUser returns every UserGroup the user belongs to, including
// everyone=true groups (spec §4.4 rule 6).
func (s *Store) GroupsForUser(userId string) ([]*model.UserGroup, error) {
	all, err := s.ListGroups()
	if err != nil {
		return nil, err
	}
	var out []*model.UserGroup
	for _, g := range all {
		if g.Contains(userId) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ListApiKeysForUser returns every ApiKey owned by userId.
func (s *Store) ListApiKeysForUser(userId string) ([]*model.ApiKey, error) {
	var out []*model.ApiKey
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketApiKeys, func() any { return &model.ApiKey{} }, func(_ string, v any) error {
			k := v.(*model.ApiKey)
			if k.UserId == userId {
				out = append(out, k)
			}
			return nil
		})
	})
	return out, err
}

// PutApiKey inserts or overwrites an ApiKey.
func (s *Store) PutApiKey(k *model.ApiKey) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketApiKeys, k.Id, k) })
}

// DeleteApiKey removes an ApiKey by id.
func (s *Store) DeleteApiKey(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketApiKeys).Delete([]byte(id)) })
}
