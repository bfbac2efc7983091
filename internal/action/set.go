// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package action

// Set is an insertion-ordered collection of actions deduplicated by
// Identity. The zero value is ready to use.
type Set struct {
	items []Action
	index map[Identity]int
}

// NewSet returns a set holding actions, equal duplicates dropped.
func NewSet(actions ...Action) *Set {
	s := &Set{}
	s.AddAll(actions...)
	return s
}

// Add inserts a unless an equal action is present. It reports whether a
// was inserted.
func (s *Set) Add(a Action) bool {
	if s.index == nil {
		s.index = make(map[Identity]int)
	}
	id := a.Identity()
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, a.Clone())
	return true
}

// AddAll inserts every action and returns how many were new.
func (s *Set) AddAll(actions ...Action) int {
	n := 0
	for _, a := range actions {
		if s.Add(a) {
			n++
		}
	}
	return n
}

// Merge inserts every action of other.
func (s *Set) Merge(other *Set) int {
	if other == nil {
		return 0
	}
	return s.AddAll(other.items...)
}

// Contains reports whether an equal action is present.
func (s *Set) Contains(a Action) bool {
	if s == nil || s.index == nil {
		return false
	}
	_, ok := s.index[a.Identity()]
	return ok
}

// Len returns the number of distinct actions.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the actions in insertion order.
func (s *Set) Items() []Action {
	if s == nil {
		return nil
	}
	out := make([]Action, len(s.items))
	copy(out, s.items)
	return out
}
