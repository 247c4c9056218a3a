package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// installedStatus is what dpkg-query prints for an installed package.
const installedStatus = "install ok installed"

// dpkgFormat prints one line per known package: its name (qualified with
// the architecture for multi-arch packages), its status and the virtual
// names it provides.
const dpkgFormat = `${binary:Package}\t${Status}\t${Provides}\n`

// aptEnv keeps apt-get from prompting.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// lockMessages are printed by apt-get and dpkg when another process holds
// the dpkg lock.
var lockMessages = []string{
	"Could not get lock",
	"dpkg frontend lock",
	"Unable to acquire the dpkg",
}

// PackageStep refreshes the package index and installs missing OS packages.
type PackageStep struct {
	exec     hostexec.Executor
	packages []string
	requires []string

	// newBackOff returns the retry policy used while the dpkg lock is held.
	newBackOff func() backoff.BackOff
}

// NewPackageStep creates a package installer step. Duplicate names are
// dropped, keeping the first occurrence.
func NewPackageStep(exec hostexec.Executor, packages []string, requires []string) *PackageStep {
	r := &recipe.Recipe{Packages: packages}
	return &PackageStep{
		exec:       exec,
		packages:   r.UniquePackages(),
		requires:   requires,
		newBackOff: defaultLockBackOff,
	}
}

func defaultLockBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

func (s *PackageStep) ID() string         { return recipe.PackagesID }
func (s *PackageStep) Requires() []string { return s.requires }

func (s *PackageStep) Describe() string {
	return fmt.Sprintf("install %d packages", len(s.packages))
}

// Packages returns the de-duplicated package list.
func (s *PackageStep) Packages() []string {
	return s.packages
}

// Check is satisfied when every package is already installed, in which case
// the index is not refreshed either.
func (s *PackageStep) Check(ctx context.Context) (runner.Status, error) {
	missing, err := s.Missing(ctx)
	if err != nil {
		return runner.StatusNeedsApply, err
	}
	if len(missing) > 0 {
		klog.V(1).Infof("%d of %d packages missing: %s", len(missing), len(s.packages), strings.Join(missing, " "))
		return runner.StatusNeedsApply, nil
	}
	return runner.StatusSatisfied, nil
}

// Missing returns the packages dpkg does not report as installed.
func (s *PackageStep) Missing(ctx context.Context) ([]string, error) {
	installed, err := s.installed(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, pkg := range s.packages {
		if !installed[pkg] {
			missing = append(missing, pkg)
		}
	}
	return missing, nil
}

// installed returns the names dpkg reports as installed, including their
// unqualified multi-arch names and the virtual names they provide.
func (s *PackageStep) installed(ctx context.Context) (map[string]bool, error) {
	out, err := s.exec.Run(ctx, hostexec.Command{
		Name: "dpkg-query",
		Args: []string{"-W", "-f=" + dpkgFormat},
	})
	if err != nil {
		return nil, fmt.Errorf("query installed packages: %w", err)
	}
	return parseDpkgStatus(out), nil
}

func parseDpkgStatus(out string) map[string]bool {
	installed := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || strings.TrimSpace(fields[1]) != installedStatus {
			continue
		}

		name := strings.TrimSpace(fields[0])
		installed[name] = true
		if base, _, ok := strings.Cut(name, ":"); ok {
			installed[base] = true
		}

		if len(fields) < 3 {
			continue
		}
		for _, p := range strings.Split(fields[2], ",") {
			// "libgsl0-dev (= 2.5)"
			p, _, _ = strings.Cut(strings.TrimSpace(p), " ")
			p, _, _ = strings.Cut(p, ":")
			if p != "" {
				installed[p] = true
			}
		}
	}
	return installed
}

// Apply refreshes the package index, then installs each missing package in
// list order.
func (s *PackageStep) Apply(ctx context.Context) error {
	missing, err := s.Missing(ctx)
	if err != nil {
		return err
	}

	if err := s.runLocked(ctx, hostexec.Command{Name: "apt-get", Args: []string{"update"}, Env: aptEnv}); err != nil {
		return fmt.Errorf("refresh package index: %w", err)
	}

	for _, pkg := range missing {
		klog.Infof("Installing package %s", pkg)
		cmd := hostexec.Command{Name: "apt-get", Args: []string{"install", "-y", pkg}, Env: aptEnv}
		if err := s.runLocked(ctx, cmd); err != nil {
			return fmt.Errorf("install package %q: %w", pkg, err)
		}
	}
	return nil
}

// runLocked runs cmd, retrying while the dpkg lock is held by another
// process. Any other failure is returned immediately.
func (s *PackageStep) runLocked(ctx context.Context, cmd hostexec.Command) error {
	op := func() error {
		_, err := s.exec.Run(ctx, cmd)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isLockError(err) {
			return backoff.Permanent(err)
		}
		klog.Warningf("dpkg lock held, retrying %q", cmd)
		return err
	}
	return backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx))
}

func isLockError(err error) bool {
	msg := err.Error()
	for _, m := range lockMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
