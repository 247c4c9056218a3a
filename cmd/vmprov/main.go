// Package main provides the vmprov CLI tool for provisioning a development VM
// from a declarative recipe.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
)

// version is set via -ldflags during build
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer klog.Flush()

	rootCmd := newRootCmd()

	// Cobra handles error printing
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// options holds the flags shared by every subcommand.
type options struct {
	recipePath string
	filesDir   string
	stateDir   string
	workDir    string
}

// newRootCmd creates the root command for vmprov
func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "vmprov",
		Short: "Development VM provisioner",
		Long: `vmprov provisions a development virtual machine from a declarative recipe.

Each step is idempotent and runs in dependency order:
  - OS packages installed with apt-get
  - Third-party libraries downloaded and built from source or .deb packages
  - Static configuration files and directories with fixed ownership and mode
  - Services restarted after their configuration is deployed
  - Python requirements installed from a pinned manifest

The run stops at the first failing step.`,
		Version: version,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.recipePath, "recipe", "r", "", "Recipe file (defaults to the built-in recipe)")
	flags.StringVar(&opts.filesDir, "files-dir", "", "Directory holding file sources (defaults to the built-in files)")
	flags.StringVar(&opts.stateDir, "state-dir", state.DefaultDir, "Directory holding the state file")
	flags.StringVar(&opts.workDir, "work-dir", "", "Parent directory for artifact builds (defaults to the system temp dir)")
	addKlogFlags(flags)

	rootCmd.AddCommand(
		newRunCmd(opts),
		newPlanCmd(opts),
		newValidateCmd(opts),
		newDoctorCmd(opts),
		newPackagesCmd(opts),
		newStateCmd(opts),
	)

	return rootCmd
}

// addKlogFlags registers klog's flags (-v, --logtostderr, ...) on flags.
func addKlogFlags(flags *pflag.FlagSet) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	flags.AddGoFlagSet(fs)
}
