package entities

import (
	"fmt"
	"strings"
)

// CheckPolicy selects what happens when a hook is registered for an event
// type its owner never declared.
type CheckPolicy string

const (
	// PolicyIgnore silently accepts undeclared types.
	PolicyIgnore CheckPolicy = "ignore"
	// PolicyLog reports undeclared types at error level and continues.
	PolicyLog CheckPolicy = "log"
	// PolicyRaise fails with an EventTypeError.
	PolicyRaise CheckPolicy = "raise"
)

// DefaultCheckPolicy is used when nothing else is configured.
const DefaultCheckPolicy = PolicyRaise

// ParseCheckPolicy parses a policy name. "none" is accepted as an alias of
// "ignore" and the empty string maps to the default policy.
func ParseCheckPolicy(s string) (CheckPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultCheckPolicy, nil
	case "ignore", "none":
		return PolicyIgnore, nil
	case "log":
		return PolicyLog, nil
	case "raise":
		return PolicyRaise, nil
	default:
		return "", fmt.Errorf("unknown hook check policy %q (want ignore, log or raise)", s)
	}
}

// Valid reports whether p is one of the known policies.
func (p CheckPolicy) Valid() bool {
	return p == PolicyIgnore || p == PolicyLog || p == PolicyRaise
}

// Or returns p, or fallback when p is unset.
func (p CheckPolicy) Or(fallback CheckPolicy) CheckPolicy {
	if p == "" {
		return fallback
	}
	return p
}
