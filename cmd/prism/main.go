// prism - hybrid rasterizer and path tracer
//
// Renders the built-in demo scenes, optionally with a GLB model, either
// through the lock-free rasterizer or the progressive path tracer.
//
// Usage:
//
//	prism render [flags]      Render a still image to PNG
//	prism view [flags]        Interactive terminal viewer
//	prism bvh [flags]         Print acceleration structure statistics
//	prism scenes              List the demo scenes
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/prism/pkg/log"
	"github.com/taigrr/prism/pkg/scene"
)

var logger = log.New("prism")

var version = "dev"

func main() {
	err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	verbose    bool
	cfg        scene.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{cfg: scene.DefaultConfig()}
	root := &cobra.Command{
		Use:   "prism",
		Short: "Hybrid rasterizer and path tracer",
		Long: `prism renders demo scenes and GLB models with either a lock-free
rasterizer or a progressive Monte Carlo path tracer.

Settings come from the built-in defaults, then an optional JSON file given
with --config, then the command line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(opts)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "JSON settings file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, notice, warning, error)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "shorthand for --log-level=debug")

	root.AddCommand(
		newRenderCmd(opts),
		newViewCmd(opts),
		newBVHCmd(opts),
		newScenesCmd(),
	)
	return root
}

func setupLogging(opts *options) error {
	name := opts.logLevel
	if opts.verbose {
		name = "debug"
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	log.SetLevel(level)
	return nil
}

func newScenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the demo scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(scene.Names(), "\n"))
			return err
		},
	}
}
