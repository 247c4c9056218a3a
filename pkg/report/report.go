package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jaspreet-dot-casa/vmprov/pkg/doctor"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
)

// PrintRun prints the outcome of each step of a run or dry run, followed by
// a one-line summary.
func PrintRun(w io.Writer, result *runner.Result) {
	title := "Provisioning run " + result.RunID
	if result.DryRun {
		title = "Provisioning plan"
	}
	fmt.Fprintln(w, TitleStyle.Render(title))
	fmt.Fprintln(w)

	for _, s := range result.Steps {
		fmt.Fprintf(w, "  %s %-10s %s\n", outcomeSymbol(s.Outcome), s.Outcome, s.Description)
		if s.Err != nil {
			fmt.Fprintf(w, "      %s\n", ErrorStyle.Render(s.Err.Error()))
		}
	}
	fmt.Fprintln(w)

	if result.DryRun {
		fmt.Fprintf(w, "%d step(s) would apply, %d already satisfied\n",
			result.Count(runner.OutcomeWouldApply), result.Count(runner.OutcomeSatisfied))
		return
	}

	summary := fmt.Sprintf("%d applied, %d satisfied, %d failed, %d skipped in %s",
		result.Count(runner.OutcomeApplied),
		result.Count(runner.OutcomeSatisfied),
		result.Count(runner.OutcomeFailed),
		result.Count(runner.OutcomeSkipped),
		result.Duration.Round(time.Millisecond))
	if result.Success {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(symbolOK), summary)
	} else {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render(symbolFailed), summary)
	}
}

func outcomeSymbol(o runner.Outcome) string {
	switch o {
	case runner.OutcomeApplied, runner.OutcomeSatisfied:
		return SuccessStyle.Render(symbolOK)
	case runner.OutcomeFailed:
		return ErrorStyle.Render(symbolFailed)
	case runner.OutcomeWouldApply:
		return WarningStyle.Render(symbolPending)
	default:
		return DimStyle.Render(symbolSkipped)
	}
}

// PrintSteps lists steps in execution order with their requirements.
func PrintSteps(w io.Writer, steps []runner.Step) {
	fmt.Fprintln(w, TitleStyle.Render("Execution order"))
	fmt.Fprintln(w)
	for i, s := range steps {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, s.ID())
		if reqs := s.Requires(); len(reqs) > 0 {
			fmt.Fprintf(w, "      %s\n", DimStyle.Render(fmt.Sprintf("after %v", reqs)))
		}
	}
}

// PrintDoctor prints check groups and a summary.
func PrintDoctor(w io.Writer, groups []doctor.CheckGroup, summary doctor.Summary) {
	for _, g := range groups {
		fmt.Fprintln(w, TitleStyle.Render(g.Name))
		if g.Description != "" {
			fmt.Fprintf(w, "  %s\n", DimStyle.Render(g.Description))
		}
		for _, c := range g.Checks {
			fmt.Fprintf(w, "  %s %s: %s\n", checkSymbol(c.Status), c.Name, c.Message)
			if c.Status != doctor.StatusOK && c.FixCommand != nil {
				fmt.Fprintf(w, "      %s %s\n", DimStyle.Render(c.FixCommand.Description+":"), CommandStyle.Render(c.FixCommand.Command))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d checks: %d ok, %d missing, %d warnings, %d errors\n",
		summary.Total, summary.OK, summary.Missing, summary.Warnings, summary.Errors)
}

// PrintGroups prints the available check groups.
func PrintGroups(w io.Writer, groups []doctor.CheckGroup) {
	fmt.Fprintln(w, TitleStyle.Render("Check groups"))
	for _, g := range groups {
		fmt.Fprintf(w, "  %-10s %s\n", g.ID, g.Name)
		if g.Description != "" {
			fmt.Fprintf(w, "  %-10s %s\n", "", DimStyle.Render(g.Description))
		}
	}
}

func checkSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusOK:
		return SuccessStyle.Render(symbolOK)
	case doctor.StatusWarning:
		return WarningStyle.Render(symbolWarning)
	default:
		return ErrorStyle.Render(symbolFailed)
	}
}

// PrintState prints the last run and the recorded artifact stamps.
func PrintState(w io.Writer, st *state.State, path string) {
	fmt.Fprintln(w, TitleStyle.Render("State"))
	fmt.Fprintf(w, "  %s\n\n", DimStyle.Render(path))

	if st.LastRun == nil {
		fmt.Fprintln(w, "No runs recorded.")
	} else {
		r := st.LastRun
		fmt.Fprintf(w, "Last run:  %s\n", r.ID)
		fmt.Fprintf(w, "  Status:   %s\n", r.Status)
		fmt.Fprintf(w, "  Started:  %s\n", r.StartedAt.Format(time.RFC3339))
		if !r.FinishedAt.IsZero() {
			fmt.Fprintf(w, "  Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(w)

	if len(st.Artifacts) == 0 {
		fmt.Fprintln(w, "No artifacts recorded.")
		return
	}

	names := make([]string, 0, len(st.Artifacts))
	for name := range st.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Artifacts:")
	for _, name := range names {
		s := st.Artifacts[name]
		line := fmt.Sprintf("  - %s %s (%s, installed %s)", name, s.Version, s.Marker, FormatTimeAgo(s.InstalledAt))
		if s.Adopted {
			line += " " + WarningStyle.Render("adopted")
		}
		fmt.Fprintln(w, line)
	}
}

// PrintPackages prints the recipe's package list.
func PrintPackages(w io.Writer, packages []string) {
	fmt.Fprintf(w, "%d packages:\n\n", len(packages))
	for _, p := range packages {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}

// PrintIssues prints recipe validation issues.
func PrintIssues(w io.Writer, result *recipe.Result) {
	for _, issue := range result.Issues {
		prefix := WarningStyle.Render("WARNING")
		if issue.Severity == recipe.SeverityError {
			prefix = ErrorStyle.Render("ERROR")
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", prefix, issue.Field, issue.Message)
	}
}
