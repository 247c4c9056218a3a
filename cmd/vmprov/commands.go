package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/assets"
	"github.com/jaspreet-dot-casa/vmprov/pkg/doctor"
	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/report"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
	"github.com/jaspreet-dot-casa/vmprov/pkg/steps"
)

// newRunCmd creates the run subcommand
func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Provision this machine",
		Long:  `Check every step and apply the ones whose effect is not already present. Stops at the first failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			r, err := newRunner(cmd, opts, progressPrinter(out))
			if err != nil {
				return err
			}

			result, err := r.Run(cmd.Context())
			if result != nil {
				fmt.Fprintln(out)
				report.PrintRun(out, result)
			}
			return err
		},
	}
}

// newPlanCmd creates the plan subcommand
func newPlanCmd(opts *options) *cobra.Command {
	var order bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which steps a run would apply",
		Long:  `Check every step without changing anything and report which ones a run would apply.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			r, err := newRunner(cmd, opts, nil)
			if err != nil {
				return err
			}

			if order {
				report.PrintSteps(out, r.Steps())
				return nil
			}

			result, err := r.DryRun(cmd.Context())
			if result != nil {
				report.PrintRun(out, result)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&order, "order", false, "Only print the execution order")
	return cmd
}

// newValidateCmd creates the validate subcommand
func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the recipe",
		Long:  `Check the recipe for missing fields, bad paths and modes, unknown requirements and dependency cycles.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			r, files, err := loadRecipe(opts)
			if err != nil {
				return err
			}

			result := r.Validate(files)
			report.PrintIssues(out, result)
			if result.HasErrors() {
				return fmt.Errorf("validation failed with %d error(s)", result.ErrorCount())
			}
			if len(result.Issues) == 0 {
				fmt.Fprintln(out, "Recipe is valid.")
			}
			return nil
		},
	}
}

// newDoctorCmd creates the doctor subcommand
func newDoctorCmd(opts *options) *cobra.Command {
	var (
		fix    bool
		list   bool
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the host tools a run needs",
		Long:  `Check that apt-get, dpkg, make, gcc, systemctl and pip are available.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if list {
				report.PrintGroups(out, doctor.GetGroups())
				return nil
			}

			checker := doctor.NewChecker()
			checker.SetStateDir(opts.stateDir)
			if r, _, err := loadRecipe(opts); err == nil && r.Requirements != nil {
				checker.SetInstaller(r.Requirements.InstallerOrDefault())
			}

			results, err := checker.CheckGroups(ctx, groups)
			if err != nil {
				return err
			}
			report.PrintDoctor(out, results, checker.GetSummary(results))

			if fix {
				err := doctor.NewFixer().FixAll(ctx, checker, results, func(c doctor.Check) {
					fmt.Fprintf(out, "Fixing %s: %s\n", c.Name, c.FixCommand.Command)
				})
				if err != nil {
					return err
				}
			}

			if checker.HasIssues(results) {
				summary := checker.GetSummary(results)
				return fmt.Errorf("%d missing, %d errors", summary.Missing, summary.Errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Run the fix command for each missing tool")
	cmd.Flags().BoolVar(&list, "list", false, "List the check groups without running them")
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "Only run these check groups")
	return cmd
}

// newPackagesCmd creates the packages subcommand
func newPackagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the recipe's OS packages",
		Long:  `List the OS packages the recipe installs, in install order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, _, err := loadRecipe(opts)
			if err != nil {
				return err
			}
			report.PrintPackages(cmd.OutOrStdout(), r.UniquePackages())
			return nil
		},
	}
}

// newStateCmd creates the state subcommand
func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show recorded state",
		Long:  `Show the last provisioning run and the artifact versions recorded as installed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := state.NewStore(opts.stateDir)
			st, err := store.Load()
			if err != nil {
				return err
			}
			report.PrintState(cmd.OutOrStdout(), st, store.Path())
			return nil
		},
	}
}

// loadRecipe loads the recipe named by --recipe, or the built-in one, and
// the file sources named by --files-dir, or the built-in ones.
func loadRecipe(opts *options) (*recipe.Recipe, fs.FS, error) {
	var (
		r   *recipe.Recipe
		err error
	)
	if opts.recipePath != "" {
		r, err = recipe.Load(opts.recipePath)
	} else {
		r, err = recipe.Default()
	}
	if err != nil {
		return nil, nil, err
	}

	files := assets.Files()
	if opts.filesDir != "" {
		info, err := os.Stat(opts.filesDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open files directory: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("%s is not a directory", opts.filesDir)
		}
		files = os.DirFS(opts.filesDir)
	}
	return r, files, nil
}

// newRunner validates the recipe and builds a runner for it.
func newRunner(cmd *cobra.Command, opts *options, progress runner.ProgressCallback) (*runner.Runner, error) {
	r, files, err := loadRecipe(opts)
	if err != nil {
		return nil, err
	}

	result := r.Validate(files)
	if result.HasErrors() {
		report.PrintIssues(cmd.ErrOrStderr(), result)
		return nil, result.Err()
	}
	for _, issue := range result.Issues {
		klog.Warningf("recipe: %s", issue)
	}

	store := state.NewStore(opts.stateDir)
	built, err := steps.FromRecipe(r, steps.Env{
		Exec:    &hostexec.RealExecutor{},
		Files:   files,
		State:   store,
		WorkDir: opts.workDir,
	})
	if err != nil {
		return nil, err
	}

	return runner.New(built, runner.WithRecorder(store), runner.WithProgress(progress))
}

// progressPrinter prints a line as each step starts applying or fails.
func progressPrinter(w io.Writer) runner.ProgressCallback {
	return func(e runner.ProgressEvent) {
		switch {
		case e.IsError && e.StepID != "":
			fmt.Fprintf(w, "%s %s\n", report.ErrorStyle.Render("✗"), e.StepID)
		case e.Stage == runner.StageApplying:
			fmt.Fprintf(w, "%s %3d%% %s\n", report.DimStyle.Render("→"), e.Percent, e.Message)
		}
	}
}
