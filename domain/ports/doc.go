// Package ports defines interfaces for infrastructure operations.
// Units and hosts depend on these abstractions; infrastructure adapters
// implement them.
package ports
