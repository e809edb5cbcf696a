package alerter

import "github.com/komodore/core/internal/model"

// admits reports whether an Alerter's type/target whitelist-blacklist
// config (spec §4.10) lets a given alert through. A blacklist match
// always excludes; an empty whitelist means "no filter configured" and
// admits everything, mirroring the teacher's filteredNotifier treating
// an empty allowed-set as "allow all".
func admits(cfg model.AlerterConfig, target model.ResourceTarget, kind model.AlertKind) bool {
	if containsKind(cfg.TypeBlacklist, kind) {
		return false
	}
	if len(cfg.TypeWhitelist) > 0 && !containsKind(cfg.TypeWhitelist, kind) {
		return false
	}
	if containsTarget(cfg.TargetBlacklist, target) {
		return false
	}
	if len(cfg.TargetWhitelist) > 0 && !containsTarget(cfg.TargetWhitelist, target) {
		return false
	}
	return true
}

func containsKind(kinds []model.AlertKind, k model.AlertKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func containsTarget(targets []model.ResourceTarget, t model.ResourceTarget) bool {
	for _, x := range targets {
		if x == t {
			return true
		}
	}
	return false
}
