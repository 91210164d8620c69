package search

import "sort"

type idSet map[string]struct{}

func newIDSet(ids ...string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s idSet) add(id string) { s[id] = struct{}{} }

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// merge adds every member of other to s.
func (s idSet) merge(other idSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// intersect returns the members present in both sets.
func (s idSet) intersect(other idSet) idSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(idSet, len(small))
	for id := range small {
		if large.has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s idSet) containsAll(other idSet) bool {
	return len(s.intersect(other)) == len(other)
}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
