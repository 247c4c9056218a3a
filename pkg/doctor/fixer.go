package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
)

// fixCommands defines how to install each tool on a Debian-family host.
var fixCommands = map[string]*FixCommand{
	IDMake: {
		Description: "Install via apt",
		Command:     "sudo apt-get install -y make",
		Sudo:        true,
	},
	IDGCC: {
		Description: "Install via apt",
		Command:     "sudo apt-get install -y gcc g++",
		Sudo:        true,
	},
	IDPip: {
		Description: "Install via apt",
		Command:     "sudo apt-get install -y python-pip",
		Sudo:        true,
	},
	IDDpkgQuery: {
		Description: "Reinstall dpkg",
		Command:     "sudo apt-get install --reinstall -y dpkg",
		Sudo:        true,
	},
}

// GetFixCommand returns the fix command for a tool, or nil if it cannot be
// installed automatically.
func GetFixCommand(toolID string) *FixCommand {
	return fixCommands[toolID]
}

// Fixer provides functionality to run fix commands.
type Fixer struct {
	executor hostexec.Executor
}

// NewFixer creates a new Fixer.
func NewFixer() *Fixer {
	return &Fixer{
		executor: &hostexec.RealExecutor{},
	}
}

// NewFixerWithExecutor creates a new Fixer with a custom executor.
func NewFixerWithExecutor(exec hostexec.Executor) *Fixer {
	return &Fixer{
		executor: exec,
	}
}

// RunFix executes a fix command.
func (f *Fixer) RunFix(ctx context.Context, fix *FixCommand) error {
	if fix == nil {
		return errors.New("no fix command available")
	}

	output, err := f.executor.Run(ctx, hostexec.Command{Name: "sh", Args: []string{"-c", fix.Command}})
	if err != nil {
		return fmt.Errorf("fix failed: %w\nOutput: %s", err, output)
	}

	return nil
}

// FixAll runs the fix command of every failing check that has one and
// re-runs that check, updating groups in place. onFix, if non-nil, is called
// before each fix. It stops at the first fix command that fails.
func (f *Fixer) FixAll(ctx context.Context, checker *Checker, groups []CheckGroup, onFix func(Check)) error {
	for gi := range groups {
		checks := groups[gi].Checks
		for ci, check := range checks {
			if check.Status == StatusOK || check.FixCommand == nil {
				continue
			}
			if onFix != nil {
				onFix(check)
			}
			if err := f.RunFix(ctx, check.FixCommand); err != nil {
				return fmt.Errorf("failed to fix %s: %w", check.Name, err)
			}
			checks[ci] = checker.GetCheck(ctx, check.ID)
		}
	}
	return nil
}
