package model

// UserConfigVariant tags which login method provisioned a User (spec §3:
// "config: variant {Local{password_hash}, Oidc{provider,user_id}, Github,
// Google}"). The ceremonies that produce these variants (password login
// form, OIDC code exchange, GitHub/Google OAuth) are explicitly out of
// scope per spec §1 — Core only stores and reasons about the resulting
// shape.
type UserConfigVariant string

const (
	UserConfigLocal  UserConfigVariant = "Local"
	UserConfigOidc   UserConfigVariant = "Oidc"
	UserConfigGithub UserConfigVariant = "Github"
	UserConfigGoogle UserConfigVariant = "Google"
)

// UserConfig is the tagged-union payload for a User's login method. Only
// the field matching Variant is meaningful; the others carry kind-specific
// empty values per the "never null" invariant (spec §3).
type UserConfig struct {
	Variant      UserConfigVariant `json:"variant"`
	PasswordHash string            `json:"password_hash,omitempty"` // Local
	OidcProvider string            `json:"oidc_provider,omitempty"` // Oidc
	OidcUserId   string            `json:"oidc_user_id,omitempty"`  // Oidc
	GithubId     string            `json:"github_id,omitempty"`     // Github
	GoogleId     string            `json:"google_id,omitempty"`     // Google
}

// RecentTarget is one entry in User.recents: the last resources a user
// executed against, newest first, capped at RecentsCap (spec §3 names
// "recents" without elaborating; see SPEC_FULL.md §4).
type RecentTarget struct {
	Target ResourceTarget `json:"target"`
}

// RecentsCap bounds the size of User.recents.
const RecentsCap = 20

// User is the spec §3 User entity.
type User struct {
	Id          string                           `json:"id"`
	Username    string                           `json:"username"`
	Enabled     bool                              `json:"enabled"`
	Admin       bool                              `json:"admin"`
	SuperAdmin  bool                              `json:"super_admin"`
	All         map[ResourceKind]PermissionLevelAndSpecific `json:"all"`
	Recents     []RecentTarget                   `json:"recents"`
	Config      UserConfig                        `json:"config"`
}

// PushRecent prepends target to Recents, de-duplicating and capping at
// RecentsCap.
func (u *User) PushRecent(target ResourceTarget) {
	filtered := make([]RecentTarget, 0, len(u.Recents)+1)
	filtered = append(filtered, RecentTarget{Target: target})
	for _, r := range u.Recents {
		if r.Target == target {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) > RecentsCap {
		filtered = filtered[:RecentsCap]
	}
	u.Recents = filtered
}

// UserGroup is the spec §3 UserGroup entity.
type UserGroup struct {
	Id       string                                       `json:"id"`
	Name     string                                       `json:"name"`
	Users    []string                                     `json:"users"` // UserIds
	Everyone bool                                         `json:"everyone"`
	All      map[ResourceKind]PermissionLevelAndSpecific `json:"all"`
}

// Contains reports whether userId is a member of the group, either
// directly or because the group applies to everyone.
func (g UserGroup) Contains(userId string) bool {
	if g.Everyone {
		return true
	}
	for _, id := range g.Users {
		if id == userId {
			return true
		}
	}
	return false
}

// ApiKey grants programmatic access scoped to a user, with an optional
// restricted permission set narrower than the owning user's own grants
// (named in §6's persisted-state collection list).
type ApiKey struct {
	Id        string `json:"id"`
	UserId    string `json:"user_id"`
	Name      string `json:"name"`
	KeyHash   string `json:"key_hash"`
	SecretHash string `json:"secret_hash"`
	Enabled   bool   `json:"enabled"`
}
