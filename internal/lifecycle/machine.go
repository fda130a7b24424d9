// Package lifecycle implements the status state machines that govern Claim and
// Policy resources. A Machine is built from a declarative adjacency map (status
// → set of statuses reachable in one step) plus a list of reason rules, so the
// transition logic lives in data rather than being scattered across handlers.
// The engine is pure: it performs no I/O and holds no mutable state after
// construction, which makes it safe to share across request goroutines.
package lifecycle

import "sort"

// Status is a resource lifecycle status. Each resource type defines its own
// closed set of statuses; the engine treats them as opaque labels.
type Status string

// Wildcard matches any status in a reason rule. The shipped tables only use it
// on the "from" side (e.g. any transition into CANCELLED needs a reason), but
// the rule engine accepts it on either side.
const Wildcard Status = "*"

// ReasonRule marks a transition as requiring a non-empty reason. Either side
// may be Wildcard.
type ReasonRule struct {
	From Status
	To   Status
}

// Machine evaluates transitions for one resource type.
type Machine struct {
	name        string
	transitions map[Status][]Status
	reasonRules []ReasonRule
	statuses    map[Status]bool
}

// New builds a Machine from a transition table. Every status that appears as a
// key or as a target is registered as valid. Terminal statuses are represented
// by an entry with an empty target set (or by appearing only as targets).
func New(name string, transitions map[Status][]Status, reasonRules []ReasonRule) *Machine {
	statuses := make(map[Status]bool)
	table := make(map[Status][]Status, len(transitions))
	for from, targets := range transitions {
		statuses[from] = true
		cp := make([]Status, len(targets))
		copy(cp, targets)
		table[from] = cp
		for _, to := range targets {
			statuses[to] = true
		}
	}
	return &Machine{
		name:        name,
		transitions: table,
		reasonRules: append([]ReasonRule(nil), reasonRules...),
		statuses:    statuses,
	}
}

// Name returns the resource type name the machine governs.
func (m *Machine) Name() string { return m.name }

// ValidStatus reports whether s belongs to this machine's status set.
func (m *Machine) ValidStatus(s Status) bool { return m.statuses[s] }

// AllowedTransitions returns the statuses reachable from the given status in
// one step, sorted for stable output. Terminal or unknown statuses yield an
// empty slice.
func (m *Machine) AllowedTransitions(from Status) []Status {
	targets := m.transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanTransition reports whether the from→to transition is permitted.
func (m *Machine) CanTransition(from, to Status) bool {
	for _, t := range m.transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ReasonRequired reports whether the from→to transition requires a non-empty
// reason. Rules match on the exact pair or via Wildcard on either side.
func (m *Machine) ReasonRequired(from, to Status) bool {
	for _, r := range m.reasonRules {
		if (r.From == from || r.From == Wildcard) && (r.To == to || r.To == Wildcard) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave the given status.
func (m *Machine) IsTerminal(s Status) bool {
	return m.statuses[s] && len(m.transitions[s]) == 0
}
