package steps

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/jaspreet-dot-casa/vmprov/pkg/fetch"
	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
)

// MockExecutor is a mock command executor for testing.
type MockExecutor struct {
	LookPathFunc   func(file string) (string, error)
	RunFunc        func(ctx context.Context, cmd hostexec.Command) (string, error)
	FileExistsFunc func(path string) bool

	Calls []hostexec.Command
}

func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

func (m *MockExecutor) Run(ctx context.Context, cmd hostexec.Command) (string, error) {
	m.Calls = append(m.Calls, cmd)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	return "", nil
}

func (m *MockExecutor) FileExists(path string) bool {
	if m.FileExistsFunc != nil {
		return m.FileExistsFunc(path)
	}
	return false
}

// CommandLines returns every recorded call as a command line.
func (m *MockExecutor) CommandLines() []string {
	lines := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		lines[i] = c.String()
	}
	return lines
}

// CountPrefix returns how many recorded calls start with prefix.
func (m *MockExecutor) CountPrefix(prefix string) int {
	n := 0
	for _, line := range m.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// fakeFetcher writes canned bodies keyed by URL.
type fakeFetcher struct {
	bodies map[string][]byte
	urls   []string
}

func (f *fakeFetcher) Download(_ context.Context, opts fetch.Options) error {
	f.urls = append(f.urls, opts.URL)
	body, ok := f.bodies[opts.URL]
	if !ok {
		return errors.New("unexpected status: 404 Not Found")
	}
	return os.WriteFile(opts.DestPath, body, 0o644)
}

// currentOwners resolves every name to the test process's own IDs so that
// chown succeeds without privileges.
type currentOwners struct{}

func (currentOwners) Resolve(_, _ string) (int, int, error) {
	return os.Getuid(), os.Getgid(), nil
}

// dpkgListing renders installed the way dpkg-query prints it with dpkgFormat.
func dpkgListing(installed map[string]bool) string {
	names := make([]string, 0, len(installed))
	for name, ok := range installed {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name + "\tinstall ok installed\t\n")
	}
	return b.String()
}
