package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

// PutTag inserts or overwrites a Tag.
func (s *Store) PutTag(t *model.Tag) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketTags, t.Id, t) })
}

// DeleteTag removes a Tag by id.
func (s *Store) DeleteTag(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketTags).Delete([]byte(id)) })
}

// ListTags returns every Tag.
func (s *Store) ListTags() ([]*model.Tag, error) {
	var out []*model.Tag
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketTags, func() any { return &model.Tag{} }, func(_ string, v any) error {
			out = append(out, v.(*model.Tag))
			return nil
		})
	})
	return out, err
}

// TagNameExists reports whether a Tag with the given name already exists
// under a different id (Conflict rule, spec §7).
func (s *Store) TagNameExists(name, excludeId string) (bool, error) {
	tags, err := s.ListTags()
	if err != nil {
		return false, err
	}
	for _, t := range tags {
		if t.Name == name && t.Id != excludeId {
			return true, nil
		}
	}
	return false, nil
}

// PutVariable inserts or overwrites a Variable, keyed by name.
func (s *Store) PutVariable(v *model.Variable) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketVariables, v.Name, v) })
}

// GetVariable fetches a Variable by name.
func (s *Store) GetVariable(name string) (*model.Variable, error) {
	var v model.Variable
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketVariables, name, &v) })
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVariables returns every Variable.
func (s *Store) ListVariables() ([]*model.Variable, error) {
	var out []*model.Variable
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketVariables, func() any { return &model.Variable{} }, func(_ string, v any) error {
			out = append(out, v.(*model.Variable))
			return nil
		})
	})
	return out, err
}

// DeleteVariable removes a Variable by name.
func (s *Store) DeleteVariable(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketVariables).Delete([]byte(name)) })
}

// PutGitAccount inserts or overwrites a GitAccount.
func (s *Store) PutGitAccount(a *model.GitAccount) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketGitAccounts, a.Id, a) })
}

// GetGitAccount fetches a GitAccount by id.
func (s *Store) GetGitAccount(id string) (*model.GitAccount, error) {
	var a model.GitAccount
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketGitAccounts, id, &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PutRegistryAccount inserts or overwrites a RegistryAccount.
func (s *Store) PutRegistryAccount(a *model.RegistryAccount) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketRegistryAccts, a.Id, a) })
}

// GetRegistryAccount fetches a RegistryAccount by id.
func (s *Store) GetRegistryAccount(id string) (*model.RegistryAccount, error) {
	var a model.RegistryAccount
	err := s.db.View(func(tx *bolt.Tx) error { return getJSON(tx, bucketRegistryAccts, id, &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}
