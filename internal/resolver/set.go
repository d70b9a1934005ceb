package resolver

import (
	"fmt"
	"sort"

	"confimport/internal/domain"
)

// set 是一类实体的候选键与已解析 id。loaded 之前的查询属于调用方错误。
type set[K comparable] struct {
	kind    string
	pending map[K]struct{}
	ids     map[K]string
	loaded  bool
}

func newSet[K comparable](kind string) *set[K] {
	return &set[K]{kind: kind, pending: make(map[K]struct{}), ids: make(map[K]string)}
}

func (s *set[K]) add(keys ...K) {
	for _, k := range keys {
		s.pending[k] = struct{}{}
	}
}

func (s *set[K]) resolve(k K) (string, bool) {
	if !s.loaded {
		panic(fmt.Sprintf("resolver: %s 在批量查询之前被解析", s.kind))
	}
	id, ok := s.ids[k]
	return id, ok
}

func (s *set[K]) bind(k K, id string) {
	s.pending[k] = struct{}{}
	s.ids[k] = id
}

func (s *set[K]) reset(ids map[K]string) {
	s.ids = ids
	s.loaded = true
}

// forget 删除值在 drop 中的映射。
func (s *set[K]) forget(drop map[string]struct{}) {
	for k, id := range s.ids {
		if _, ok := drop[id]; ok {
			delete(s.ids, k)
		}
	}
}

func (s *set[K]) keys() []K {
	out := make([]K, 0, len(s.pending))
	for k := range s.pending {
		out = append(out, k)
	}
	return out
}

// scoped 是宿主范围内的集合。候选只记录宿主名，查询时按宿主 id 一次取回这些宿主下的全部对象。
type scoped struct {
	*set[domain.ScopedKey]
	owners map[string]struct{}
	names  int
}

func newScoped(kind string) *scoped {
	return &scoped{set: newSet[domain.ScopedKey](kind), owners: make(map[string]struct{})}
}

func (s *scoped) addOwned(owner string, names ...string) {
	s.owners[owner] = struct{}{}
	s.names += len(names)
}

func (s *scoped) ownerNames() []string {
	out := make([]string, 0, len(s.owners))
	for name := range s.owners {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedStrings(s *set[string]) []string {
	out := s.keys()
	sort.Strings(out)
	return out
}
