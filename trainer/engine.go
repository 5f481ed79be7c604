// Package trainer provides a training-loop host built on the composition
// engine. A model type embeds Engine, implements the methods its mixins
// require (TrainBatch, Infer, Post) and is attached to a Class whose mixins
// drive the train, validation and test entry points.
package trainer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/host"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/params"
)

// Loader yields the batches of one pass over a dataset.
type Loader = iter.Seq[any]

// SliceLoader returns a Loader over items.
func SliceLoader(items ...any) Loader {
	return func(yield func(any) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}

// EngineMixin drives one entry point.
type EngineMixin interface {
	mixin.Mixin
	RunEngine(ctx context.Context) error
}

// LoopMixin makes one pass over a loader.
type LoopMixin interface {
	mixin.Mixin
	Loop(ctx context.Context, data Loader) error
}

// Host is implemented by every type embedding Engine.
type Host interface {
	Trainer() *Engine
}

// Engine is embedded by model types. Mixins found in the class are
// assigned to the tagged fields when the model is attached.
type Engine struct {
	*host.Core

	Params *params.Parameters
	RunID  string

	TrainLoader      Loader
	ValidationLoader Loader
	TestLoader       Loader

	EngineTrain      EngineMixin `mixin:"engine_train,optional"`
	LoopTrain        LoopMixin   `mixin:"loop_train,optional"`
	EngineValidation EngineMixin `mixin:"engine_validation,optional"`
	LoopValidation   LoopMixin   `mixin:"loop_validation,optional"`
	EngineTest       EngineMixin `mixin:"engine_test,optional"`
	LoopTest         LoopMixin   `mixin:"loop_test,optional"`

	entry Entry
}

// Class is the root class of training hosts: it declares the engine's
// event types and requires the embedded Engine.
var Class = &host.Class{
	Name:      "engine",
	HookTypes: EventTypes(),
	Requires: capability.NewProtocol(
		capability.Method("Trainer", (func() *Engine)(nil)).Static().
			Describe("embedded trainer.Engine"),
	),
}

// Trainer returns e. Promoted to the embedding model, it gives units typed
// access to the engine.
func (e *Engine) Trainer() *Engine {
	return e
}

// Attach wires self, a model embedding Engine, to class with the given
// parameters. A nil p starts from empty parameters.
func Attach[T any](ctx context.Context, self *T, class *host.Class, p *params.Parameters, opts ...host.Option) (*Engine, error) {
	h, ok := any(self).(Host)
	if !ok {
		return nil, fmt.Errorf("attach %T: type does not embed trainer.Engine", self)
	}
	e := h.Trainer()
	if p == nil {
		p = params.New(nil)
	}
	e.Params = p
	e.RunID = uuid.NewString()

	core, err := host.Attach(ctx, self, class, opts...)
	if err != nil {
		return nil, err
	}
	e.Core = core
	return e, nil
}

// Entry returns the entry point currently running, or "" when idle.
func (e *Engine) Entry() Entry {
	return e.entry
}

// Resolve exposes parameters as host members to capability checks.
func (e *Engine) Resolve(name string) (any, bool) {
	if e.Params == nil {
		return nil, false
	}
	return e.Params.Get(name)
}

// Train runs the engine_train mixin.
func (e *Engine) Train(ctx context.Context) error {
	return e.run(ctx, EntryTrain, e.EngineTrain)
}

// Validation runs the engine_validation mixin.
func (e *Engine) Validation(ctx context.Context) error {
	return e.run(ctx, EntryValidation, e.EngineValidation)
}

// Test runs the engine_test mixin.
func (e *Engine) Test(ctx context.Context) error {
	return e.run(ctx, EntryTest, e.EngineTest)
}

// Run dispatches to the entry point named entry.
func (e *Engine) Run(ctx context.Context, entry Entry) error {
	switch entry {
	case EntryTrain:
		return e.Train(ctx)
	case EntryValidation:
		return e.Validation(ctx)
	case EntryTest:
		return e.Test(ctx)
	default:
		return fmt.Errorf("unknown entry %q", entry)
	}
}

func (e *Engine) run(ctx context.Context, entry Entry, m EngineMixin) error {
	if e.Core == nil {
		return fmt.Errorf("engine is not attached")
	}
	if err := e.Check(); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%s requires an engine_%s mixin", entry, entry)
	}

	stop := e.WatchSignals(ctx)
	defer stop()

	e.entry = entry
	defer func() { e.entry = "" }()

	logger := e.Logger().With(slog.String("run", e.RunID), slog.String("entry", string(entry)))
	logger.Info("engine started")

	if err := e.RunHook(ctx, hook.OfType(EngineStart), hook.WithArgs(string(entry))); err != nil {
		return err
	}
	if err := m.RunEngine(ctx); err != nil {
		return err
	}
	if err := e.RunHook(ctx, hook.OfType(EngineEnd), hook.WithArgs(string(entry))); err != nil {
		return err
	}

	logger.Info("engine finished",
		slog.Int("epoch", e.Params.Epoch()),
		slog.Int("batch", e.Params.Batch()),
		slog.Bool("quit", e.Quitting()))
	return nil
}

// Child is satisfied by bound mixins and plugins.
type Child interface {
	Parent() (any, error)
}

// Parent returns the engine of the host u is bound to.
func Parent(u Child) (*Engine, error) {
	v, err := u.Parent()
	if err != nil {
		return nil, err
	}
	h, ok := v.(Host)
	if !ok {
		return nil, fmt.Errorf("parent %T does not embed trainer.Engine", v)
	}
	return h.Trainer(), nil
}
