// Package mixins provides the engine and loop mixins of training hosts.
package mixins

import (
	"context"
	"fmt"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/host"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// KeyMaxEpochs is the parameter bounding TrainEngine. Zero or absent runs
// until quit.
const KeyMaxEpochs = "max_epochs"

// TrainEngine loops over the train loader until the engine quits or
// max_epochs epochs have run.
type TrainEngine struct {
	mixin.Base
}

// NewTrainEngine creates a TrainEngine prototype.
func NewTrainEngine() *TrainEngine {
	return &TrainEngine{}
}

func trainProtocol() capability.Protocol {
	return capability.NewProtocol(
		capability.FieldOf[trainer.LoopMixin]("LoopTrain").Static().
			Describe("mixin that loops through the training data"),
		capability.FieldOf[trainer.Loader]("TrainLoader").Static().
			Describe("training data"),
	)
}

func (m *TrainEngine) Declare() unit.Spec {
	return unit.Spec{Name: "train_engine", Requires: trainProtocol()}
}

// RunEngine runs epochs until stopped.
func (m *TrainEngine) RunEngine(ctx context.Context) error {
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}
	if eng.LoopTrain == nil {
		return fmt.Errorf("train engine: no loop_train mixin")
	}
	if eng.TrainLoader == nil {
		return fmt.Errorf("train engine: no train loader")
	}

	maxEpochs := eng.Params.GetIntDefault(KeyMaxEpochs, 0)
	for {
		if eng.Quitting() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxEpochs > 0 && eng.Params.Epoch() >= maxEpochs {
			return nil
		}
		if err := eng.LoopTrain.Loop(ctx, eng.TrainLoader); err != nil {
			return err
		}
	}
}

// TrainingClass extends trainer.Class with the default training mixins.
var TrainingClass = &host.Class{
	Name: "training",
	Base: trainer.Class,
	Mixins: []mixin.Slot{
		{Name: "engine_train", Proto: NewTrainEngine()},
		{Name: "loop_train", Proto: NewBatchTrainLoop()},
	},
}

var _ trainer.EngineMixin = (*TrainEngine)(nil)
