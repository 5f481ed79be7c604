package mixins

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// KeyValidationRate is the parameter scheduling validation runs. Absent
// means every epoch (or batch); see trainer.ParseRate for the syntax.
const KeyValidationRate = "validation_rate"

// TrainValidationEngine trains like TrainEngine and runs the
// engine_validation mixin on train_epoch_end (Mode "epoch", the default) or
// train_batch_end (Mode "batch") at the indices of validation_rate.
type TrainValidationEngine struct {
	TrainEngine

	Mode string

	registered bool

	_ hook.On `hook:"engine_start" method:"SetupValidation"`
}

// NewTrainValidationEngine creates a prototype validating per mode.
func NewTrainValidationEngine(mode string) *TrainValidationEngine {
	return &TrainValidationEngine{Mode: mode}
}

func (m *TrainValidationEngine) Declare() unit.Spec {
	return unit.Spec{
		Name: "train_validation_engine",
		HookTypes: []entities.EventType{
			trainer.EngineStart,
			trainer.EpochEnd(trainer.EntryTrain),
			trainer.BatchEnd(trainer.EntryTrain),
		},
		Requires: trainProtocol().With(
			capability.FieldOf[trainer.EngineMixin]("EngineValidation").Static().
				Describe("validation engine that will be used"),
		),
		Policy: entities.PolicyRaise,
	}
}

// SetupValidation registers the validation hook when training starts.
func (m *TrainValidationEngine) SetupValidation(entry string) error {
	if trainer.Entry(entry) != trainer.EntryTrain || m.registered {
		return nil
	}
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}

	var rate any
	if v, ok := eng.Params.Get(KeyValidationRate); ok {
		rate = v
	} else {
		rate = "::1"
	}
	filter, on, err := trainer.ParseRate(rate)
	if err != nil {
		return fmt.Errorf("%s: %w", KeyValidationRate, err)
	}
	if !on {
		eng.Logger().Info("validation_rate is none, validation is disabled")
		return nil
	}

	typ := trainer.EpochEnd(trainer.EntryTrain)
	if m.Mode == "batch" {
		typ = trainer.BatchEnd(trainer.EntryTrain)
	}
	if _, err := m.Hooks().Declare(typ, filter...).Named("run_validation").Do(m.runValidation); err != nil {
		return err
	}
	m.registered = true
	eng.Logger().Debug("validation scheduled", slog.String("event", string(typ)), slog.String("rate", filter.String()))
	return nil
}

func (m *TrainValidationEngine) runValidation(ctx context.Context, _ *hook.Invocation) error {
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}
	if eng.EngineValidation == nil {
		return fmt.Errorf("%s: no engine_validation mixin", unit.NameOf(m))
	}
	return eng.EngineValidation.RunEngine(ctx)
}

var _ trainer.EngineMixin = (*TrainValidationEngine)(nil)
