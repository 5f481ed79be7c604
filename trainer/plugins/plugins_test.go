package plugins_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/host"
	"github.com/reglet-dev/reglet-compose/infrastructure/paramstore"
	"github.com/reglet-dev/reglet-compose/params"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/trainer/mixins"
	"github.com/reglet-dev/reglet-compose/trainer/plugins"
)

type model struct {
	trainer.Engine
}

func (m *model) TrainBatch(context.Context, any) error { return nil }

func withPlugins(ps ...plugin.Plugin) *host.Class {
	return &host.Class{Name: "model", Base: mixins.TrainingClass, Plugins: ps}
}

func run(t *testing.T, class *host.Class, values map[string]any) (*model, *trainer.Engine) {
	t.Helper()
	m := &model{}
	eng, err := trainer.Attach(context.Background(), m, class, params.New(values))
	require.NoError(t, err)
	m.TrainLoader = trainer.SliceLoader("a", "b")
	require.NoError(t, eng.Train(context.Background()))
	return m, eng
}

func TestBackup_WritesScheduledSnapshots(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "backups")
	m, eng := run(t, withPlugins(plugins.NewBackup("epoch")), map[string]any{
		mixins.KeyMaxEpochs:     3,
		plugins.KeyBackupFolder: folder,
		plugins.KeyBackupRate:   "::2",
		"_secret":               "hidden",
	})

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "backup-epoch-00002.yaml", entries[0].Name())

	saved, err := paramstore.NewFileStore(paramstore.WithPath(filepath.Join(folder, entries[0].Name()))).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, saved[params.KeyEpoch])
	assert.Equal(t, 4, saved[params.KeyBatch])
	assert.NotContains(t, saved, "secret")
	assert.Equal(t, 6, eng.Params.Batch())
	runtime.KeepAlive(m)
}

func TestBackup_BatchMode(t *testing.T) {
	folder := t.TempDir()
	m, _ := run(t, withPlugins(plugins.NewBackup("batch")), map[string]any{
		mixins.KeyMaxEpochs:     2,
		plugins.KeyBackupFolder: folder,
		plugins.KeyBackupRate:   []any{1, 4},
	})

	assert.FileExists(t, filepath.Join(folder, "backup-batch-00001.yaml"))
	assert.FileExists(t, filepath.Join(folder, "backup-batch-00004.yaml"))
	assert.NoFileExists(t, filepath.Join(folder, "backup-batch-00002.yaml"))
	runtime.KeepAlive(m)
}

func TestBackup_DisabledWithoutFolder(t *testing.T) {
	m, eng := run(t, withPlugins(plugins.NewBackup("epoch")), map[string]any{mixins.KeyMaxEpochs: 1})

	p, err := eng.Plugins().Get("backup")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	runtime.KeepAlive(m)
}

func TestBackup_FolderIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m := &model{}
	eng, err := trainer.Attach(context.Background(), m, withPlugins(plugins.NewBackup("epoch")),
		params.New(map[string]any{mixins.KeyMaxEpochs: 1, plugins.KeyBackupFolder: path}))
	require.NoError(t, err)
	m.TrainLoader = trainer.SliceLoader(1)

	assert.ErrorContains(t, eng.Train(context.Background()), "is not a directory")
	runtime.KeepAlive(m)
}

func TestLog_WritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	m, eng := run(t, withPlugins(plugins.NewLog(&console)), map[string]any{
		mixins.KeyMaxEpochs: 1,
		plugins.KeyLogFile:  path,
		plugins.KeyLogLevel: "warn",
	})
	slog.Info("after setup")
	require.NoError(t, eng.Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"logging configured"`)
	assert.Contains(t, string(data), `"msg":"after setup"`)
	assert.Contains(t, string(data), eng.RunID)
	assert.NotContains(t, console.String(), "after setup")

	p, err := eng.Plugins().Get("log")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	runtime.KeepAlive(m)
}

func TestLog_BadLevel(t *testing.T) {
	m := &model{}
	eng, err := trainer.Attach(context.Background(), m, withPlugins(plugins.NewLog(&bytes.Buffer{})),
		params.New(map[string]any{plugins.KeyLogLevel: "loud"}))
	require.NoError(t, err)
	m.TrainLoader = trainer.SliceLoader(1)

	assert.Error(t, eng.Train(context.Background()))
	runtime.KeepAlive(m)
}

func TestProgress_Forced(t *testing.T) {
	var out bytes.Buffer
	p := plugins.NewProgress(&out)
	p.Force = true

	m, _ := run(t, withPlugins(p), map[string]any{mixins.KeyMaxEpochs: 2})

	s := out.String()
	assert.Contains(t, s, "epoch 1")
	assert.Contains(t, s, "epoch 2")
	assert.Contains(t, s, "done: 4 batches")
	runtime.KeepAlive(m)
}

func TestProgress_DisabledOffTerminal(t *testing.T) {
	var out bytes.Buffer
	m, eng := run(t, withPlugins(plugins.NewProgress(&out)), map[string]any{mixins.KeyMaxEpochs: 1})

	assert.Empty(t, out.String())
	p, err := eng.Plugins().Get("progress")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	runtime.KeepAlive(m)
}
