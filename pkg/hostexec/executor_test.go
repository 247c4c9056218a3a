package hostexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	assert.Equal(t, "make", Command{Name: "make"}.String())
	assert.Equal(t, "apt-get install -y git", Command{Name: "apt-get", Args: []string{"install", "-y", "git"}}.String())
}

func TestRealExecutor_RunCapturesOutput(t *testing.T) {
	e := &RealExecutor{}
	out, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello; echo oops >&2"}})

	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "oops")
}

func TestRealExecutor_RunUsesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	e := &RealExecutor{}

	out, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $VMPROV_TEST"},
		Dir:  dir,
		Env:  []string{"VMPROV_TEST=set"},
	})

	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, out, resolved)
	assert.Contains(t, out, "set")
}

func TestRealExecutor_RunFailureIncludesOutput(t *testing.T) {
	e := &RealExecutor{}
	_, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo E: Unable to locate package nope; exit 100"}})

	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Contains(t, err.Error(), "Unable to locate package nope")
	assert.Equal(t, "sh", exitErr.Command.Name)
}

func TestRealExecutor_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &RealExecutor{}
	_, err := e.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRealExecutor_FileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker.so")
	e := &RealExecutor{}

	assert.False(t, e.FileExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.True(t, e.FileExists(path))
}

func TestExitErrorTruncatesOutput(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "line")
	}
	lines = append(lines, "last")

	err := &ExitError{Command: Command{Name: "make"}, Output: strings.Join(lines, "\n"), Err: errors.New("exit status 2")}

	msg := err.Error()
	assert.True(t, strings.HasSuffix(msg, "last"))
	assert.LessOrEqual(t, strings.Count(msg, "\n"), maxErrorLines)
}
