package ports

// Resolver is implemented by hosts that synthesize members at runtime
// (computed attributes, parameters looked up by name). Capability checks
// using the full resolution strategy consult it when reflection finds
// nothing.
type Resolver interface {
	// Resolve returns the value of a dynamically provided member.
	Resolve(name string) (any, bool)
}
