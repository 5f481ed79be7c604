// Package host composes a host object from its own hooks, its mixins and
// its plugins.
//
// A host type describes itself with a Class: the event types it fires, the
// members it requires of itself, and the mixin and plugin prototypes of
// that class. Classes chain through Base, mirroring an inheritance
// hierarchy: event types and requirements accumulate, plugins are
// collected most-base first, and a derived class replaces a base mixin by
// reusing its slot name.
//
// Attach binds everything to a concrete host value:
//
//	type Trainer struct {
//	    *host.Core
//	    Loop *TrainLoop `mixin:"loop"`
//	}
//
//	t := &Trainer{}
//	t.Core, err = host.Attach(ctx, t, trainerClass)
//
// RunHook then dispatches an event to the host's hooks, then every mixin,
// then every enabled plugin.
package host
