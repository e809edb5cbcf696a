package sync

import "github.com/komodore/core/internal/model"

// TagStore is the slice of internal/resources.Facade tagIndex needs.
type TagStore interface {
	ListTags() ([]*model.Tag, error)
	CreateTag(name, color string) (*model.Tag, error)
}

// tagIndex resolves declared tag names to stored tag ids, creating
// missing tags on demand, and answers match_tags filtering (spec §4.9
// "Tag matching").
type tagIndex struct {
	store    TagStore
	nameToId map[string]string
	idToName map[string]string
}

func newTagIndex(store TagStore) (*tagIndex, error) {
	idx := &tagIndex{store: store, nameToId: map[string]string{}, idToName: map[string]string{}}
	tags, err := store.ListTags()
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		idx.nameToId[t.Name] = t.Id
		idx.idToName[t.Id] = t.Name
	}
	return idx, nil
}

// ensure resolves a set of declared tag names to ids, creating any that
// don't exist yet.
func (idx *tagIndex) ensure(names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := idx.nameToId[name]
		if !ok {
			t, err := idx.store.CreateTag(name, "")
			if err != nil {
				return nil, err
			}
			id = t.Id
			idx.nameToId[name] = id
			idx.idToName[id] = name
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (idx *tagIndex) namesOf(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := idx.idToName[id]; ok {
			names = append(names, n)
		}
	}
	return names
}

// matches implements match_tags' All/Any include-filter semantics
// against a resource's tag set (spec §4.9). An empty matchNames list
// includes every resource (no filter configured).
func (idx *tagIndex) matches(resourceTagIds []string, matchNames []string, mode model.MatchTagsMode) bool {
	if len(matchNames) == 0 {
		return true
	}
	have := make(map[string]bool, len(resourceTagIds))
	for _, n := range idx.namesOf(resourceTagIds) {
		have[n] = true
	}
	if mode == model.MatchTagsAll {
		for _, want := range matchNames {
			if !have[want] {
				return false
			}
		}
		return true
	}
	// Any (default).
	for _, want := range matchNames {
		if have[want] {
			return true
		}
	}
	return false
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
	}
	for _, n := range set {
		if n != 0 {
			return false
		}
	}
	return true
}
