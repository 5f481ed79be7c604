// Package capability declares what a unit requires from its host and
// verifies hosts against those requirements.
//
// Two verification strategies exist. Resolve inspects the host by
// reflection and then falls back to ports.Resolver for members the host
// synthesizes at runtime. Static inspects only the members declared on the
// host's type and never triggers dynamic resolution.
package capability
