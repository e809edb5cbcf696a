package store

import (
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/komodore/core/internal/model"
)

// PutAlert inserts or overwrites an Alert.
func (s *Store) PutAlert(a *model.Alert) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketAlerts, a.Id, a) })
}

// GetOpenAlert returns the single unresolved Alert for (target, kind), or
// model.ErrNotFound if none — backs the uniqueness invariant of spec §3
// ("for a given (target, AlertKind) at most one unresolved alert exists").
func (s *Store) GetOpenAlert(target model.ResourceTarget, kind model.AlertKind) (*model.Alert, error) {
	var found *model.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketAlerts, func() any { return &model.Alert{} }, func(_ string, v any) error {
			a := v.(*model.Alert)
			if !a.Resolved && a.Target == target && a.Data.Kind == kind {
				found = a
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

// ListOpenAlertsForTarget returns every unresolved alert for a target.
func (s *Store) ListOpenAlertsForTarget(target model.ResourceTarget) ([]*model.Alert, error) {
	var out []*model.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketAlerts, func() any { return &model.Alert{} }, func(_ string, v any) error {
			a := v.(*model.Alert)
			if !a.Resolved && a.Target == target {
				out = append(out, a)
			}
			return nil
		})
	})
	return out, err
}

// ListAlerts returns every alert, newest-first.
func (s *Store) ListAlerts() ([]*model.Alert, error) {
	var out []*model.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketAlerts, func() any { return &model.Alert{} }, func(_ string, v any) error {
			out = append(out, v.(*model.Alert))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	return out, nil
}

// DeleteAlert removes an Alert by id — used by the daily prune loop
// (C12) for retention-based eviction.
func (s *Store) DeleteAlert(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketAlerts).Delete([]byte(id)) })
}

// PutStats appends a StatsRecord, keyed by "serverId::" plus the
// fixed-width timestamp layout "20060102150405.000000000" for chronological
// ordering (teacher's internal/store/bolt.go SaveSnapshot
// key convention).
func (s *Store) PutStats(rec model.StatsRecord) error {
	key := rec.ServerId + "::" + rec.Ts.Format("20060102150405.000000000")
	return s.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketStats, key, rec) })
}

// ListStatsOlderThan returns the bucket keys of every StatsRecord whose
// Ts precedes cutoff, for retention pruning.
func (s *Store) ListStatsOlderThan(cutoff func(model.StatsRecord) bool) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachJSON(tx, bucketStats, func() any { return &model.StatsRecord{} }, func(key string, v any) error {
			if cutoff(*v.(*model.StatsRecord)) {
				keys = append(keys, key)
			}
			return nil
		})
	})
	return keys, err
}

// DeleteStats removes the given stats keys.
func (s *Store) DeleteStats(keys []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStats)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}
