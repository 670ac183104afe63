package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/ctxlog"
	"github.com/vk/blockflow/internal/exec"
	"github.com/vk/blockflow/internal/hclmodel"
	"github.com/vk/blockflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All block libraries registered.", "count", len(modules), "types", reg.Types())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Run loads the model, steps it the configured number of times, and prints
// the root block's outputs.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	loader := hclmodel.NewLoader()
	file, err := loader.LoadFile(ctx, a.config.ModelPath, a.registry)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	root, ok := file.Root()
	if a.config.Block != "" {
		root, ok = file.Block(a.config.Block)
		if !ok {
			return fmt.Errorf("model %q does not define block %q", a.config.ModelPath, a.config.Block)
		}
	} else if !ok {
		return fmt.Errorf("model %q defines no blocks", a.config.ModelPath)
	}
	a.logger.Debug("Model loaded.", "root", root.Name, "children", len(root.Children))

	ec := exec.New(root, a.registry)
	if err := ec.Initialize(ctx); err != nil {
		var verr *exec.ValidationError
		if errors.As(err, &verr) {
			for _, issue := range verr.Report.Errors() {
				fmt.Fprintln(a.outW, issue.String())
			}
		}
		return fmt.Errorf("model validation failed: %w", err)
	}

	for _, pair := range a.config.Inputs {
		name, v, err := parseInput(pair)
		if err != nil {
			return err
		}
		if err := ec.SetInput(name, v); err != nil {
			return fmt.Errorf("set input: %w", err)
		}
	}

	a.logger.Info("Stepping model.", "block", root.Name, "steps", a.config.Steps)
	for i := 0; i < a.config.Steps; i++ {
		if err := ec.Step(ctx); err != nil {
			return fmt.Errorf("step %d failed: %w", i+1, err)
		}
	}

	for _, out := range root.Outputs {
		v, err := ec.GetOutput(out.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "%s = %s\n", out.Name, formatValue(v))
	}

	if a.config.SnapshotPath != "" {
		blob, err := ec.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if err := os.WriteFile(a.config.SnapshotPath, blob, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		a.logger.Info("Snapshot written.", "path", a.config.SnapshotPath)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// parseInput splits a name=value pair and infers the value's type. Numbers
// and booleans are recognized; anything else is passed through as a string
// and converted against the connector's declared type on assignment.
func parseInput(pair string) (string, cty.Value, error) {
	name, raw, found := strings.Cut(pair, "=")
	if !found || name == "" {
		return "", cty.NilVal, fmt.Errorf("invalid input assignment %q: expected name=value", pair)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return name, cty.NumberFloatVal(f), nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return name, cty.BoolVal(b), nil
	}
	return name, cty.StringVal(raw), nil
}

func formatValue(v cty.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case v.Type() == cty.Bool:
		return strconv.FormatBool(v.True())
	case v.Type() == cty.String:
		return v.AsString()
	default:
		return v.GoString()
	}
}
