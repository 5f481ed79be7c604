package entities

import (
	"sort"
	"strings"
)

// EventType names a lifecycle event that hooks can subscribe to
// (e.g. "train_epoch_end", "engine_start").
type EventType string

// EventSet is an unordered set of event types.
type EventSet map[EventType]struct{}

// NewEventSet creates a set holding the given types.
func NewEventSet(types ...EventType) EventSet {
	s := make(EventSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is a member of the set.
// A nil set has no members.
func (s EventSet) Has(t EventType) bool {
	_, ok := s[t]
	return ok
}

// Add inserts types into the set.
func (s EventSet) Add(types ...EventType) {
	for _, t := range types {
		s[t] = struct{}{}
	}
}

// Union returns a new set containing the members of s and all others.
func (s EventSet) Union(others ...EventSet) EventSet {
	out := make(EventSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	for _, o := range others {
		for t := range o {
			out[t] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s EventSet) Sorted() []EventType {
	out := make([]EventType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s EventSet) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = string(t)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
