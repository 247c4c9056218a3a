package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
)

// Checker provides dependency checking functionality.
type Checker struct {
	executor  hostexec.Executor
	installer string // Requirements installer named by the recipe
	stateDir  string
}

// NewChecker creates a new Checker with the real command executor.
func NewChecker() *Checker {
	return NewCheckerWithExecutor(&hostexec.RealExecutor{})
}

// NewCheckerWithExecutor creates a new Checker with a custom executor (for testing).
func NewCheckerWithExecutor(exec hostexec.Executor) *Checker {
	return &Checker{
		executor: exec,
		stateDir: state.DefaultDir,
	}
}

// SetInstaller sets the requirements installer to look for.
func (c *Checker) SetInstaller(installer string) {
	c.installer = installer
}

// SetStateDir sets the state directory to check.
func (c *Checker) SetStateDir(dir string) {
	c.stateDir = dir
}

// CheckAll runs all checks and returns groups with results.
func (c *Checker) CheckAll(ctx context.Context) []CheckGroup {
	var result []CheckGroup
	for _, id := range GetAllGroupIDs() {
		result = append(result, c.CheckGroup(ctx, id))
	}
	return result
}

// CheckGroups runs the named groups in the order given. An empty list runs
// every group.
func (c *Checker) CheckGroups(ctx context.Context, groupIDs []string) ([]CheckGroup, error) {
	if len(groupIDs) == 0 {
		return c.CheckAll(ctx), nil
	}
	for _, id := range groupIDs {
		if _, ok := GetGroupDefinition(id); !ok {
			return nil, fmt.Errorf("unknown check group %q (available: %s)", id, strings.Join(GetAllGroupIDs(), ", "))
		}
	}

	result := make([]CheckGroup, 0, len(groupIDs))
	for _, id := range groupIDs {
		result = append(result, c.CheckGroup(ctx, id))
	}
	return result, nil
}

// CheckGroup runs all checks for a specific group.
func (c *Checker) CheckGroup(ctx context.Context, groupID string) CheckGroup {
	def, ok := GetGroupDefinition(groupID)
	if !ok {
		return CheckGroup{
			ID:   groupID,
			Name: "Unknown",
		}
	}

	group := CheckGroup{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
	}
	for _, checkID := range def.CheckIDs {
		group.Checks = append(group.Checks, c.runCheck(ctx, checkID))
	}
	return group
}

// runCheck runs a specific check by ID.
func (c *Checker) runCheck(ctx context.Context, checkID string) Check {
	switch checkID {
	case IDAptGet:
		return CheckAptGet(ctx, c.executor)
	case IDDpkg:
		return CheckDpkg(ctx, c.executor)
	case IDDpkgQuery:
		return CheckDpkgQuery(ctx, c.executor)
	case IDMake:
		return CheckMake(ctx, c.executor)
	case IDGCC:
		return CheckGCC(ctx, c.executor)
	case IDInitSystem:
		return CheckInitSystem(ctx, c.executor)
	case IDPip:
		return CheckPip(ctx, c.executor, c.installer)
	case IDStateDir:
		return CheckStateDir(c.executor, c.stateDir)
	default:
		return Check{
			ID:      checkID,
			Name:    checkID,
			Status:  StatusError,
			Message: "unknown check",
		}
	}
}

// GetCheck runs a single check by ID.
func (c *Checker) GetCheck(ctx context.Context, checkID string) Check {
	return c.runCheck(ctx, checkID)
}

// Summary represents an overall health summary.
type Summary struct {
	Total    int
	OK       int
	Missing  int
	Warnings int
	Errors   int
}

// GetSummary returns a summary of check results.
func (c *Checker) GetSummary(groups []CheckGroup) Summary {
	var summary Summary

	for _, group := range groups {
		for _, check := range group.Checks {
			summary.Total++
			switch check.Status {
			case StatusOK:
				summary.OK++
			case StatusMissing:
				summary.Missing++
			case StatusWarning:
				summary.Warnings++
			case StatusError:
				summary.Errors++
			}
		}
	}

	return summary
}

// HasIssues returns true if any checks have issues.
func (c *Checker) HasIssues(groups []CheckGroup) bool {
	summary := c.GetSummary(groups)
	return summary.Missing > 0 || summary.Errors > 0
}
