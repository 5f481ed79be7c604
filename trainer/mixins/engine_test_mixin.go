package mixins

import (
	"context"
	"fmt"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// TestEngine makes a single pass over the validation or test loader.
type TestEngine struct {
	mixin.Base

	// Entry is EntryValidation or EntryTest.
	Entry trainer.Entry
}

// NewTestEngine creates a TestEngine prototype for entry.
func NewTestEngine(entry trainer.Entry) *TestEngine {
	return &TestEngine{Entry: entry}
}

func (m *TestEngine) Declare() unit.Spec {
	loop, loader := "LoopTest", "TestLoader"
	if m.Entry == trainer.EntryValidation {
		loop, loader = "LoopValidation", "ValidationLoader"
	}
	return unit.Spec{
		Name: string(m.Entry) + "_engine",
		Requires: capability.NewProtocol(
			capability.FieldOf[trainer.LoopMixin](loop).Static().
				Describe(fmt.Sprintf("mixin that loops through the %s data", m.Entry)),
			capability.FieldOf[trainer.Loader](loader).Static().
				Describe(fmt.Sprintf("%s data", m.Entry)),
		),
	}
}

// RunEngine loops once over the loader of the configured entry.
func (m *TestEngine) RunEngine(ctx context.Context) error {
	eng, err := trainer.Parent(m)
	if err != nil {
		return err
	}
	if eng.Quitting() {
		return nil
	}

	var (
		loop   trainer.LoopMixin
		loader trainer.Loader
	)
	switch m.Entry {
	case trainer.EntryValidation:
		loop, loader = eng.LoopValidation, eng.ValidationLoader
	case trainer.EntryTest:
		loop, loader = eng.LoopTest, eng.TestLoader
	default:
		return fmt.Errorf("%s can only be used for validation or test, not %q", unit.NameOf(m), m.Entry)
	}
	if loop == nil {
		return fmt.Errorf("%s: no loop_%s mixin", unit.NameOf(m), m.Entry)
	}
	if loader == nil {
		return fmt.Errorf("%s: no %s loader", unit.NameOf(m), m.Entry)
	}
	return loop.Loop(ctx, loader)
}

var _ trainer.EngineMixin = (*TestEngine)(nil)
