// Package cli implements the reglet-compose command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reglet-dev/reglet-compose/config"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/examples/counter"
	"github.com/reglet-dev/reglet-compose/host"
	"github.com/reglet-dev/reglet-compose/infrastructure/parser"
	"github.com/reglet-dev/reglet-compose/infrastructure/wasm"
	rlog "github.com/reglet-dev/reglet-compose/log"
	"github.com/reglet-dev/reglet-compose/params"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/trainer/mixins"
	"github.com/reglet-dev/reglet-compose/trainer/plugins"
)

// IOStreams are the standard streams of a command.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type options struct {
	configFile  string
	params      []string
	wasmPlugins []string
}

var (
	heading    = color.New(color.FgCyan, color.Bold)
	errorLabel = color.New(color.FgRed, color.Bold)
)

// Run executes the root command with args and returns the process exit
// code. A failure is reported on streams.ErrOut, as JSON when --log-format
// is json.
func Run(streams IOStreams, args []string) int {
	cmd := NewCommand(streams)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	name, _ := cmd.PersistentFlags().GetString("log-format")
	format, perr := rlog.ParseFormat(name)
	if perr != nil {
		format = rlog.FormatText
	}
	_ = writeError(streams.ErrOut, err, format)
	return 1
}

// writeError renders err as its structured detail.
func writeError(w io.Writer, err error, format rlog.Format) error {
	detail := errors.ToErrorDetail(err)
	if format == rlog.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	if _, werr := errorLabel.Fprint(w, "Error: "); werr != nil {
		return werr
	}
	if _, werr := fmt.Fprintln(w, detail.Message); werr != nil {
		return werr
	}
	if detail.Type == "internal" {
		return nil
	}
	if _, werr := fmt.Fprintf(w, "  type: %s\n", detail.Type); werr != nil {
		return werr
	}
	if detail.Code != "" {
		if _, werr := fmt.Fprintf(w, "  code: %s\n", detail.Code); werr != nil {
			return werr
		}
	}
	for _, k := range slices.Sorted(maps.Keys(detail.Details)) {
		if _, werr := fmt.Fprintf(w, "  %s: %v\n", k, detail.Details[k]); werr != nil {
			return werr
		}
	}
	return nil
}

// NewCommand creates the root command.
func NewCommand(streams IOStreams) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "reglet-compose",
		Short: "Run hook-composed training engines",
		Long: heredoc.Doc(`
			reglet-compose runs an engine assembled from mixins and plugins.

			Settings are read from --config, from REGLET_COMPOSE_* environment
			variables and from flags, in increasing precedence. Single parameters
			can be overridden with --param key=value; values are parsed as YAML.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.ErrOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringArrayVarP(&o.params, "param", "p", nil, "override a parameter, key=value (repeatable)")
	flags.StringArrayVar(&o.wasmPlugins, "wasm-plugin", nil, "load a WebAssembly guest as a plugin (repeatable)")
	addConfigFlags(flags)

	for _, entry := range []trainer.Entry{trainer.EntryTrain, trainer.EntryValidation, trainer.EntryTest} {
		cmd.AddCommand(newRunCommand(o, streams, entry))
	}
	cmd.AddCommand(newProtocolCommand(o, streams))
	cmd.AddCommand(newParametersCommand(o, streams))
	return cmd
}

func addConfigFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.String("hook-check", def.HookCheck, "policy for hooks of undeclared types: raise, log or ignore")
	flags.String("log-level", def.LogLevel, "console log level")
	flags.String("log-format", "", "console log format: text or json (default: text on a terminal)")
	flags.String("log-file", "", "also write debug logs as JSON to this file")
	flags.String("backup-folder", "", "folder receiving parameter backups")
	flags.String("backup-mode", def.BackupMode, "take backups per epoch or batch")
	flags.Int("backup-rate", 0, "take a backup every n epochs or batches")
	flags.Int("max-epochs", 0, "stop training after n epochs (0 runs until interrupted)")
	flags.Bool("progress", false, "draw the progress bar even when not on a terminal")
}

// session is an attached engine plus the settings it was built from.
type session struct {
	cfg     *config.Config
	model   *counter.Model
	runtime *wasm.Runtime
}

// Close closes the model, then the runtime hosting its guest plugins.
func (s *session) Close(ctx context.Context) error {
	err := s.model.Close(ctx)
	if s.runtime != nil {
		if rerr := s.runtime.Close(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func (o *options) open(ctx context.Context, cmd *cobra.Command, streams IOStreams) (*session, error) {
	cfg, err := config.Load(config.WithFile(o.configFile), config.WithFlags(cmd.Flags()))
	if err != nil {
		return nil, err
	}
	p, err := o.parameters(cfg)
	if err != nil {
		return nil, err
	}

	level, err := rlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &errors.ConfigError{Field: "log_level", Err: err}
	}
	format, err := rlog.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, &errors.ConfigError{Field: "log_format", Err: err}
	}
	logger := rlog.New(rlog.WithWriter(streams.ErrOut), rlog.WithLevel(level), rlog.WithFormat(format))

	class := counter.NewClass(counter.Options{
		Console:    streams.ErrOut,
		BackupMode: cfg.BackupMode,
		Progress:   cfg.Progress,
	})
	rt, err := o.loadGuests(ctx, class, logger)
	if err != nil {
		return nil, err
	}
	model, err := counter.New(ctx, class, p, host.WithPolicy(cfg.Policy()), host.WithLogger(logger))
	if err != nil {
		if rt != nil {
			_ = rt.Close(ctx)
		}
		return nil, err
	}
	return &session{cfg: cfg, model: model, runtime: rt}, nil
}

// loadGuests compiles every --wasm-plugin binary and appends it to the
// class plugins. The guest is named after its file.
func (o *options) loadGuests(ctx context.Context, class *host.Class, logger *slog.Logger) (*wasm.Runtime, error) {
	if len(o.wasmPlugins) == 0 {
		return nil, nil
	}
	rt, err := wasm.NewRuntime(ctx, wasm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for _, path := range o.wasmPlugins {
		data, err := os.ReadFile(path)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, &errors.ConfigError{Field: "wasm_plugin", Err: err}
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		mod, err := rt.Compile(ctx, name, data)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, &errors.ConfigError{Field: "wasm_plugin", Err: err}
		}
		class.Plugins = append(class.Plugins, wasm.NewPlugin(mod))
	}
	return rt, nil
}

// parameters merges the config file parameters, the settings that map to
// parameters and the --param overrides, in increasing precedence.
func (o *options) parameters(cfg *config.Config) (*params.Parameters, error) {
	values := make(map[string]any, len(cfg.Parameters))
	for k, v := range cfg.Parameters {
		values[k] = v
	}
	set := func(key string, v any, ok bool) {
		if ok {
			values[key] = v
		}
	}
	set(plugins.KeyLogLevel, cfg.LogLevel, cfg.LogLevel != "")
	set(plugins.KeyLogFile, cfg.LogFile, cfg.LogFile != "")
	set(plugins.KeyBackupFolder, cfg.BackupFolder, cfg.BackupFolder != "")
	set(plugins.KeyBackupRate, fmt.Sprintf("::%d", cfg.BackupRate), cfg.BackupRate > 0)
	set(mixins.KeyMaxEpochs, cfg.MaxEpochs, cfg.MaxEpochs > 0)

	yp := parser.NewYamlParamsParser()
	for _, kv := range o.params {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &errors.ConfigError{Field: "param", Err: fmt.Errorf("expected key=value, got %q", kv)}
		}
		parsed, err := yp.Parse([]byte("v: " + raw))
		if err != nil {
			return nil, &errors.ConfigError{Field: key, Err: err}
		}
		values[key] = parsed["v"]
	}
	return params.New(values), nil
}

func newRunCommand(o *options, streams IOStreams, entry trainer.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   string(entry),
		Short: fmt.Sprintf("Run the %s entry point", entry),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := commandContext(cmd)
			s, err := o.open(ctx, cmd, streams)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(ctx); cerr != nil && err == nil {
					err = cerr
				}
			}()

			if err := s.model.Run(ctx, entry); err != nil {
				return err
			}
			return report(streams.Out, entry, s.model)
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func report(w io.Writer, entry trainer.Entry, m *counter.Model) error {
	if _, err := heading.Fprintf(w, "%s finished\n", entry); err != nil {
		return err
	}
	fmt.Fprintf(w, "run:    %s\n", m.RunID)
	fmt.Fprintf(w, "epochs: %d\nbatches: %d\n", m.Params.Epoch(), m.Params.Batch())
	if m.Quitting() {
		fmt.Fprintln(w, "stopped early")
	}
	results := []trainer.Entry{entry}
	if entry == trainer.EntryTrain {
		results = []trainer.Entry{trainer.EntryValidation}
	}
	for _, e := range results {
		if r, ok := m.Results[e]; ok {
			fmt.Fprintf(w, "%s: %v\n", e, r)
		}
	}
	return nil
}
