package resources

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/komodore/core/internal/model"
)

// bcryptCost mirrors the teacher's internal/auth password hashing
// (deleted along with the rest of internal/auth's OIDC/WebAuthn/TOTP
// ceremony code, but this one piece survives here because Local-user
// password storage is in-scope even though the login ceremony is not,
// spec §1).
const bcryptCost = bcrypt.DefaultCost

// CreateLocalUser creates a User with a Local config variant, hashing
// password with bcrypt the way the teacher's internal/auth/passwords.go
// did before it was retired along with the login-ceremony code around it.
func (f *Facade) CreateLocalUser(username, password string, admin bool) (*model.User, error) {
	if username == "" {
		return nil, badRequest(fmt.Errorf("username is required"))
	}
	if _, err := f.store.FindUserByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: username %q already taken", model.ErrConflict, username)
	} else if err != model.ErrNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Id:       uuid.NewString(),
		Username: username,
		Enabled:  true,
		Admin:    admin,
		All:      map[model.ResourceKind]model.PermissionLevelAndSpecific{},
		Config:   model.UserConfig{Variant: model.UserConfigLocal, PasswordHash: string(hash)},
	}
	if err := f.store.PutUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

// VerifyPassword checks a plaintext password against a Local user's
// stored bcrypt hash. Returns model.ErrUnauthorized on mismatch or if the
// user is not a Local account — the login ceremony itself (issuing a
// session/JWT) is out of scope (spec §1); this is the one piece of it
// Core's data layer is responsible for.
func (f *Facade) VerifyPassword(u *model.User, password string) error {
	if u.Config.Variant != model.UserConfigLocal {
		return model.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Config.PasswordHash), []byte(password)); err != nil {
		return model.ErrUnauthorized
	}
	return nil
}

// SetUserAll sets a User's kind-wide grant.
func (f *Facade) SetUserAll(userId string, kind model.ResourceKind, grant model.PermissionLevelAndSpecific) (*model.User, error) {
	u, err := f.store.GetUser(userId)
	if err != nil {
		return nil, err
	}
	if u.All == nil {
		u.All = map[model.ResourceKind]model.PermissionLevelAndSpecific{}
	}
	u.All[kind] = grant
	if err := f.store.PutUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateGroup creates a UserGroup.
func (f *Facade) CreateGroup(name string, everyone bool) (*model.UserGroup, error) {
	if name == "" {
		return nil, badRequest(fmt.Errorf("name is required"))
	}
	g := &model.UserGroup{
		Id:       uuid.NewString(),
		Name:     name,
		Everyone: everyone,
		All:      map[model.ResourceKind]model.PermissionLevelAndSpecific{},
	}
	if err := f.store.PutGroup(g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddUserToGroup adds userId to a group's membership.
func (f *Facade) AddUserToGroup(groupId, userId string) (*model.UserGroup, error) {
	g, err := f.store.GetGroup(groupId)
	if err != nil {
		return nil, err
	}
	for _, id := range g.Users {
		if id == userId {
			return g, nil
		}
	}
	g.Users = append(g.Users, userId)
	if err := f.store.PutGroup(g); err != nil {
		return nil, err
	}
	return g, nil
}

// GrantPermission upserts an explicit Permission row (spec §3 Permission,
// §4.4 step 7), used by the permission-management surface for both
// kind-wide and resource-specific grants.
func (f *Facade) GrantPermission(row *model.PermissionRow) error {
	return f.store.UpsertPermission(row)
}

// CreateApiKey mints an ApiKey for a user. The raw key/secret are
// generated here and returned once; only their hashes are persisted — the
// teacher's own API-key issuance follows the same shape (show-once
// secret, stored hash).
func (f *Facade) CreateApiKey(userId, name string) (key, secret string, _ *model.ApiKey, err error) {
	key = uuid.NewString()
	secret = uuid.NewString()

	keyHash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", "", nil, err
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", "", nil, err
	}

	k := &model.ApiKey{
		Id:         uuid.NewString(),
		UserId:     userId,
		Name:       name,
		KeyHash:    string(keyHash),
		SecretHash: string(secretHash),
		Enabled:    true,
	}
	if err := f.store.PutApiKey(k); err != nil {
		return "", "", nil, err
	}
	return key, secret, k, nil
}
