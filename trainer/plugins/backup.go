// Package plugins provides optional units for training hosts.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/infrastructure/paramstore"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Parameters read by Backup.
const (
	KeyBackupFolder = "backup_folder"
	KeyBackupRate   = "backup_rate"
)

// Backup saves parameter snapshots while training, on train_epoch_end
// (Mode "epoch", the default) or train_batch_end (Mode "batch") at the
// indices of backup_rate. It disables itself for other entry points or when
// backup_folder is unset.
type Backup struct {
	plugin.Base

	Mode string

	folder     string
	registered bool

	_ hook.On `hook:"engine_start" method:"Setup"`
}

// NewBackup creates a Backup prototype.
func NewBackup(mode string) *Backup {
	return &Backup{Mode: mode}
}

func (b *Backup) Declare() unit.Spec {
	return unit.Spec{
		Name: "backup",
		HookTypes: []entities.EventType{
			trainer.EngineStart,
			trainer.EpochEnd(trainer.EntryTrain),
			trainer.BatchEnd(trainer.EntryTrain),
		},
		Requires: capability.NewProtocol(
			capability.Method("Trainer", (func() *trainer.Engine)(nil)).Static().
				Describe("embedded trainer.Engine holding the parameters"),
		),
		Policy: entities.PolicyIgnore,
	}
}

func (b *Backup) mode() string {
	if b.Mode == "batch" {
		return "batch"
	}
	return "epoch"
}

// Setup validates the backup folder and schedules backups.
func (b *Backup) Setup(entry string) error {
	if trainer.Entry(entry) != trainer.EntryTrain {
		b.SetEnabled(false)
		return nil
	}
	eng, err := trainer.Parent(b)
	if err != nil {
		return err
	}
	logger := eng.Logger()

	folder := eng.Params.GetStringDefault(KeyBackupFolder, "")
	if folder == "" {
		logger.Warn(`"backup_folder" is not set, so no backups will be taken`)
		b.SetEnabled(false)
		return nil
	}
	info, err := os.Stat(folder)
	switch {
	case os.IsNotExist(err):
		logger.Info("backup folder does not exist, creating now", slog.String("folder", folder))
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return fmt.Errorf("create backup folder: %w", err)
		}
	case err != nil:
		return fmt.Errorf("backup folder: %w", err)
	case !info.IsDir():
		return fmt.Errorf("backup folder %q is not a directory", folder)
	}
	b.folder = folder

	var rate any = "::1"
	if v, ok := eng.Params.Get(KeyBackupRate); ok {
		rate = v
	}
	filter, on, err := trainer.ParseRate(rate)
	if err != nil {
		return fmt.Errorf("%s: %w", KeyBackupRate, err)
	}
	if !on {
		logger.Warn(`"backup_rate" is none, so no backups will be taken`)
		b.SetEnabled(false)
		return nil
	}
	if b.registered {
		return nil
	}

	typ := trainer.EpochEnd(trainer.EntryTrain)
	if b.mode() == "batch" {
		typ = trainer.BatchEnd(trainer.EntryTrain)
	}
	if _, err := b.Hooks().Declare(typ, filter...).Named("run_backup").Do(b.runBackup); err != nil {
		return err
	}
	b.registered = true
	return nil
}

// Path returns the snapshot path for index.
func (b *Backup) Path(index int) string {
	return filepath.Join(b.folder, fmt.Sprintf("backup-%s-%05d.yaml", b.mode(), index))
}

func (b *Backup) runBackup(_ context.Context, inv *hook.Invocation) error {
	eng, err := trainer.Parent(b)
	if err != nil {
		return err
	}
	store := paramstore.NewFileStore(paramstore.WithPath(b.Path(inv.Index)))
	if err := eng.Params.Save(store); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	eng.Logger().Info("saved backup", slog.String("path", store.Path()))
	return nil
}

var _ plugin.Plugin = (*Backup)(nil)
