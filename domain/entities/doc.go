// Package entities provides the core value types of the composition engine:
// event types, index filters, check policies and capability mismatch reports.
package entities
