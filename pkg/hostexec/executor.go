// Package hostexec runs external commands on the host being provisioned.
//
// Every step that shells out goes through the Executor interface so that
// tests can substitute a fake host.
package hostexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// Command describes one external command invocation.
type Command struct {
	Name string   // Executable name or path
	Args []string // Arguments, not including Name
	Dir  string   // Working directory ("" for the current directory)
	Env  []string // Extra KEY=VALUE pairs appended to the process environment
}

// String returns the command line as it would be typed in a shell.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Executor is an interface for executing commands, allowing for testing.
type Executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, cmd Command) (string, error)
	FileExists(path string) bool
}

// ExitError is returned by RealExecutor.Run when a command fails.
// It carries the combined output so callers can surface the tool's own message.
type ExitError struct {
	Command Command
	Output  string
	Err     error
}

func (e *ExitError) Error() string {
	out := tail(strings.TrimSpace(e.Output), maxErrorLines)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Command, e.Err, out)
}

func (e *ExitError) Unwrap() error { return e.Err }

// maxErrorLines bounds how much tool output is folded into an error message.
const maxErrorLines = 20

// RealExecutor is the default command executor that uses the real system.
type RealExecutor struct{}

// LookPath finds the path to an executable.
func (e *RealExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes a command and returns its combined stdout and stderr.
func (e *RealExecutor) Run(ctx context.Context, c Command) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	klog.V(2).Infof("exec: %s", c)
	err := cmd.Run()
	if klog.V(3).Enabled() && out.Len() > 0 {
		klog.Infof("exec output (%s):\n%s", c.Name, out.String())
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.String(), fmt.Errorf("%s: %w", c, ctxErr)
		}
		return out.String(), &ExitError{Command: c, Output: out.String(), Err: err}
	}

	return out.String(), nil
}

// FileExists checks if a file exists.
func (e *RealExecutor) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// tail returns at most n trailing lines of s.
func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
