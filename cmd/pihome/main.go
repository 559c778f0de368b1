// PiHome Core - sensors, devices and rules for a single-board home controller.
//
// The binary runs the HTTP/WebSocket API and the rule engine (serve), manages
// the schema (migrate) and offers one-shot key resolution and rule
// evaluation for debugging (resolve, evaluate).
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pihome/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pihome",
		Short:         "PiHome Core",
		Long:          "PiHome Core stores sensors, devices and rules and evaluates rules against live GPIO readings.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		"config file (default $PIHOME_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newResolveCommand(opts))
	cmd.AddCommand(newEvaluateCommand(opts))

	return cmd
}

// configPath returns the --config flag, then PIHOME_CONFIG, then the default.
// explicit is false only for the built-in default.
func (o *rootOptions) configPath() (path string, explicit bool) {
	if o.ConfigPath != "" {
		return o.ConfigPath, true
	}
	if path := os.Getenv("PIHOME_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the configuration. A missing default config file falls
// back to built-in defaults; a missing explicit one is an error.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	path, explicit := o.configPath()

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if vErr := cfg.Validate(); vErr != nil {
			return nil, "", fmt.Errorf("validating default config: %w", vErr)
		}
		return cfg, "", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}
