package entities

import (
	"fmt"
	"strings"
)

// MismatchReason explains why a required member failed verification.
type MismatchReason string

const (
	// ReasonMissing means the host has no member with the required name.
	ReasonMissing MismatchReason = "missing"
	// ReasonIncompatible means the member exists but its shape differs.
	ReasonIncompatible MismatchReason = "incompatible"
)

// Mismatch describes a single unmet requirement.
type Mismatch struct {
	// Member is the required member name (e.g. "Infer", "ValidationRate").
	Member string `json:"member"`

	// Expected is the expected kind and signature (e.g. "method func(any) (any, error)").
	Expected string `json:"expected"`

	// Actual is the shape found on the host, empty when missing.
	Actual string `json:"actual,omitempty"`

	// Reason categorizes the failure.
	Reason MismatchReason `json:"reason"`

	// Strategy names the verification strategy that found the mismatch.
	Strategy string `json:"strategy"`
}

func (m Mismatch) String() string {
	s := fmt.Sprintf("%s (%s): %s", m.Member, m.Expected, m.Reason)
	if m.Actual != "" {
		s += ", found " + m.Actual
	}
	return s + " [" + m.Strategy + "]"
}

// MismatchReport is the structured result of verifying a unit's
// requirements against a host.
type MismatchReport struct {
	// Unit names the unit whose requirements were checked.
	Unit string `json:"unit"`

	// Host names the host type that was inspected.
	Host string `json:"host"`

	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// NewMismatchReport creates an empty report.
func NewMismatchReport(unit, host string) *MismatchReport {
	return &MismatchReport{Unit: unit, Host: host}
}

// Add records a mismatch.
func (r *MismatchReport) Add(m Mismatch) {
	r.Mismatches = append(r.Mismatches, m)
}

// OK reports whether every requirement was satisfied.
func (r *MismatchReport) OK() bool {
	return r == nil || len(r.Mismatches) == 0
}

// Members returns the names of the offending members in report order.
func (r *MismatchReport) Members() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		out[i] = m.Member
	}
	return out
}

func (r *MismatchReport) String() string {
	if r.OK() {
		return "ok"
	}
	parts := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		parts[i] = m.String()
	}
	return strings.Join(parts, "; ")
}
