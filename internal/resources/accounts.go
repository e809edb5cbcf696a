package resources

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/komodore/core/internal/model"
)

// CreateTag creates a Tag, enforcing name uniqueness.
func (f *Facade) CreateTag(name, color string) (*model.Tag, error) {
	if name == "" {
		return nil, badRequest(fmt.Errorf("name is required"))
	}
	exists, err := f.store.TagNameExists(name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: tag %q already exists", model.ErrConflict, name)
	}
	t := &model.Tag{Id: uuid.NewString(), Name: name, Color: color}
	if err := f.store.PutTag(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTag removes a Tag by id.
func (f *Facade) DeleteTag(id string) error {
	return f.store.DeleteTag(id)
}

// ListTags returns every Tag, used by internal/sync to resolve declared
// tag names to ids (creating missing ones via CreateTag).
func (f *Facade) ListTags() ([]*model.Tag, error) {
	return f.store.ListTags()
}

// SetVariable upserts a Variable (spec §3, used by internal/interpolate).
func (f *Facade) SetVariable(name, value string, isSecret bool) (*model.Variable, error) {
	if name == "" {
		return nil, badRequest(fmt.Errorf("name is required"))
	}
	v := &model.Variable{Name: name, Value: value, IsSecret: isSecret}
	if err := f.store.PutVariable(v); err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVariable removes a Variable by name.
func (f *Facade) DeleteVariable(name string) error {
	return f.store.DeleteVariable(name)
}

// CreateGitAccount stores a named git credential referenced by Repo/Build
// configs and used by internal/sync when checking out declared state.
func (f *Facade) CreateGitAccount(domain, username, token string) (*model.GitAccount, error) {
	a := &model.GitAccount{Id: uuid.NewString(), Domain: domain, Username: username, Token: token}
	if err := f.store.PutGitAccount(a); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateRegistryAccount stores a named container-registry credential.
func (f *Facade) CreateRegistryAccount(domain, username, token string) (*model.RegistryAccount, error) {
	a := &model.RegistryAccount{Id: uuid.NewString(), Domain: domain, Username: username, Token: token}
	if err := f.store.PutRegistryAccount(a); err != nil {
		return nil, err
	}
	return a, nil
}
