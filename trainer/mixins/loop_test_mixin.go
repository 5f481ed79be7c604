package mixins

import (
	"context"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Evaluator is the model side of TestLoop.
type Evaluator interface {
	// Infer runs the model on one batch; outputs are collected for Post.
	Infer(ctx context.Context, data any) (any, error)
	// Post reduces the collected outputs to metrics, losses or the like.
	Post(ctx context.Context, outputs []any) (any, error)
}

// TestLoop runs the model over a dataset for evaluation. Batch events are
// indexed from 1; the epoch end event carries the result of Post.
type TestLoop struct {
	mixin.Base

	// Entry is EntryValidation or EntryTest.
	Entry trainer.Entry
}

// NewTestLoop creates a TestLoop prototype for entry.
func NewTestLoop(entry trainer.Entry) *TestLoop {
	return &TestLoop{Entry: entry}
}

func (m *TestLoop) Declare() unit.Spec {
	return unit.Spec{
		Name: string(m.Entry) + "_loop",
		HookTypes: []entities.EventType{
			trainer.EpochStart(m.Entry), trainer.EpochEnd(m.Entry),
			trainer.BatchStart(m.Entry), trainer.BatchEnd(m.Entry),
		},
		Requires: capability.NewProtocol(
			capability.Method("Infer", (func(context.Context, any) (any, error))(nil)).
				Describe("inference pass over one batch"),
			capability.Method("Post", (func(context.Context, []any) (any, error))(nil)).
				Describe("post-processing of the aggregated outputs"),
		),
	}
}

// Loop makes one pass over data.
func (m *TestLoop) Loop(ctx context.Context, data trainer.Loader) error {
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}
	model, err := unit.ParentAs[Evaluator](m)
	if err != nil {
		return err
	}

	if err := eng.RunHook(ctx, hook.OfType(trainer.EpochStart(m.Entry))); err != nil {
		return err
	}

	var outputs []any
	batch := 0
	for item := range data {
		if err := eng.RunHook(ctx, hook.OfType(trainer.DataBatch), hook.WithArgs(item)); err != nil {
			return err
		}
		batch++
		if err := eng.RunHook(ctx, hook.OfType(trainer.BatchStart(m.Entry)), hook.AtIndex(batch), hook.WithArgs(batch)); err != nil {
			return err
		}
		out, err := model.Infer(ctx, item)
		if err != nil {
			return err
		}
		outputs = append(outputs, out)
		if err := eng.RunHook(ctx, hook.OfType(trainer.BatchEnd(m.Entry)), hook.AtIndex(batch), hook.WithArgs(batch, out)); err != nil {
			return err
		}
		if eng.Quitting() {
			return nil
		}
	}

	result, err := model.Post(ctx, outputs)
	if err != nil {
		return err
	}
	return eng.RunHook(ctx, hook.OfType(trainer.EpochEnd(m.Entry)), hook.WithArgs(result))
}

var _ trainer.LoopMixin = (*TestLoop)(nil)
