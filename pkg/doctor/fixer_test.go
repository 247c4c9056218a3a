package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
)

func TestNewFixer(t *testing.T) {
	fixer := NewFixer()
	assert.NotNil(t, fixer)
	assert.NotNil(t, fixer.executor)
}

func TestNewFixerWithExecutor(t *testing.T) {
	mockExec := &MockExecutor{}
	fixer := NewFixerWithExecutor(mockExec)
	assert.NotNil(t, fixer)
	assert.Equal(t, mockExec, fixer.executor)
}

func TestFixer_RunFix_Success(t *testing.T) {
	mockExec := &MockExecutor{
		RunFunc: func(cmd hostexec.Command) (string, error) {
			assert.Equal(t, "sh", cmd.Name)
			assert.Equal(t, []string{"-c", "echo hello"}, cmd.Args)
			return "hello\n", nil
		},
	}

	fixer := NewFixerWithExecutor(mockExec)
	fix := &FixCommand{
		Command:     "echo hello",
		Description: "Test command",
	}

	err := fixer.RunFix(context.Background(), fix)
	assert.NoError(t, err)
}

func TestFixer_RunFix_Failure(t *testing.T) {
	mockExec := &MockExecutor{
		RunFunc: func(cmd hostexec.Command) (string, error) {
			return "command not found", errors.New("exit status 127")
		},
	}

	fixer := NewFixerWithExecutor(mockExec)
	fix := &FixCommand{
		Command:     "nonexistent-command",
		Description: "Test command",
	}

	err := fixer.RunFix(context.Background(), fix)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fix failed")
	assert.Contains(t, err.Error(), "command not found")
}

func TestFixer_RunFix_NilFix(t *testing.T) {
	fixer := NewFixer()

	err := fixer.RunFix(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no fix command available")
}

func TestFixer_FixAll_RechecksFixedTools(t *testing.T) {
	installed := map[string]bool{"gcc": true}
	exec := &MockExecutor{
		LookPathFunc: func(file string) (string, error) {
			if installed[file] {
				return "/usr/bin/" + file, nil
			}
			return "", errors.New("not found")
		},
		RunFunc: func(cmd hostexec.Command) (string, error) {
			if cmd.Name == "sh" {
				installed["make"] = true
				return "", nil
			}
			return "1.0.0", nil
		},
	}

	checker := NewCheckerWithExecutor(exec)
	groups := []CheckGroup{checker.CheckGroup(context.Background(), GroupBuild)}
	require.True(t, checker.HasIssues(groups))

	var fixed []string
	err := NewFixerWithExecutor(exec).FixAll(context.Background(), checker, groups, func(c Check) {
		fixed = append(fixed, c.ID)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{IDMake}, fixed)
	assert.Equal(t, StatusOK, groups[0].Checks[0].Status)
	assert.False(t, checker.HasIssues(groups))
}

func TestFixer_FixAll_StopsOnFailure(t *testing.T) {
	exec := &MockExecutor{
		LookPathFunc: onlyTools(),
		RunFunc: func(cmd hostexec.Command) (string, error) {
			return "E: Unable to locate package", errors.New("exit status 100")
		},
	}

	checker := NewCheckerWithExecutor(exec)
	groups := []CheckGroup{checker.CheckGroup(context.Background(), GroupBuild)}

	var attempts int
	err := NewFixerWithExecutor(exec).FixAll(context.Background(), checker, groups, func(Check) { attempts++ })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fix make")
	assert.Equal(t, 1, attempts)
	assert.Equal(t, StatusMissing, groups[0].Checks[0].Status)
}
