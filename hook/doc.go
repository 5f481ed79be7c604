// Package hook implements lifecycle hooks: callables subscribed to an event
// type and an optional index filter, and the Table that stores and
// dispatches them.
//
// Hooks are declared either with marker fields on a unit struct
//
//	type Checkpoint struct {
//	    plugin.Base
//	    _ hook.On `hook:"train_epoch_end" index:"::5" method:"Save"`
//	}
//
// or at runtime through a Table:
//
//	table.Declare("train_batch_end", entities.Every(100)).Do(fn)
//
// Dispatch is sequential. The first hook error aborts a run and is returned
// unmodified.
package hook
