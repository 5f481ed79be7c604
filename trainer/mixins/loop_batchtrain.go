package mixins

import (
	"context"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// BatchTrainer is the model method BatchTrainLoop calls per batch.
type BatchTrainer interface {
	TrainBatch(ctx context.Context, data any) error
}

// BatchTrainLoop runs one epoch: it increments the epoch counter, then for
// every batch increments the batch counter and calls TrainBatch between
// train_batch_start and train_batch_end. Epoch and batch events are indexed
// by the counters.
type BatchTrainLoop struct {
	mixin.Base
}

// NewBatchTrainLoop creates a BatchTrainLoop prototype.
func NewBatchTrainLoop() *BatchTrainLoop {
	return &BatchTrainLoop{}
}

func (m *BatchTrainLoop) Declare() unit.Spec {
	return unit.Spec{
		Name: "batch_train_loop",
		Requires: capability.NewProtocol(
			capability.Method("TrainBatch", (func(context.Context, any) error)(nil)).
				Describe("training pass over one batch"),
		),
	}
}

// Loop makes one pass over data.
func (m *BatchTrainLoop) Loop(ctx context.Context, data trainer.Loader) error {
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}
	model, err := unit.ParentAs[BatchTrainer](m)
	if err != nil {
		return err
	}

	epoch := eng.Params.IncEpoch()
	if err := eng.RunHook(ctx, hook.OfType(trainer.EpochStart(trainer.EntryTrain)), hook.AtIndex(epoch), hook.WithArgs(epoch)); err != nil {
		return err
	}

	for batch := range data {
		if err := eng.RunHook(ctx, hook.OfType(trainer.DataBatch), hook.WithArgs(batch)); err != nil {
			return err
		}
		n := eng.Params.IncBatch()
		if err := eng.RunHook(ctx, hook.OfType(trainer.BatchStart(trainer.EntryTrain)), hook.AtIndex(n), hook.WithArgs(n)); err != nil {
			return err
		}
		if err := model.TrainBatch(ctx, batch); err != nil {
			return err
		}
		if err := eng.RunHook(ctx, hook.OfType(trainer.BatchEnd(trainer.EntryTrain)), hook.AtIndex(n), hook.WithArgs(n)); err != nil {
			return err
		}
		if eng.Quitting() {
			return nil
		}
	}

	return eng.RunHook(ctx, hook.OfType(trainer.EpochEnd(trainer.EntryTrain)), hook.AtIndex(epoch), hook.WithArgs(epoch))
}

var _ trainer.LoopMixin = (*BatchTrainLoop)(nil)
