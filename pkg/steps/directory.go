package steps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// DirectoryStep ensures a directory exists with a fixed owner, group and mode.
type DirectoryStep struct {
	dir      recipe.Directory
	requires []string
	owners   OwnerResolver
}

// NewDirectoryStep creates a directory step.
func NewDirectoryStep(dir recipe.Directory, requires []string, owners OwnerResolver) *DirectoryStep {
	return &DirectoryStep{dir: dir, requires: requires, owners: owners}
}

func (s *DirectoryStep) ID() string         { return recipe.DirectoryID(s.dir.Path) }
func (s *DirectoryStep) Requires() []string { return s.requires }

func (s *DirectoryStep) Describe() string {
	if o := ownerString(s.dir.Owner, s.dir.Group); o != "" {
		return fmt.Sprintf("ensure directory %s (%s %s)", s.dir.Path, o, s.dir.Mode)
	}
	return fmt.Sprintf("ensure directory %s (%s)", s.dir.Path, s.dir.Mode)
}

func (s *DirectoryStep) Check(_ context.Context) (runner.Status, error) {
	uid, gid, err := s.owners.Resolve(s.dir.Owner, s.dir.Group)
	if err != nil {
		return runner.StatusNeedsApply, err
	}

	info, err := os.Stat(s.dir.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return runner.StatusNeedsApply, nil
	}
	if err != nil {
		return runner.StatusNeedsApply, fmt.Errorf("failed to stat %s: %w", s.dir.Path, err)
	}
	if !info.IsDir() {
		return runner.StatusNeedsApply, fmt.Errorf("%s exists and is not a directory", s.dir.Path)
	}
	if info.Mode().Perm() != s.dir.Mode.Perm() || !ownerMatches(info, uid, gid) {
		return runner.StatusNeedsApply, nil
	}
	return runner.StatusSatisfied, nil
}

// Apply creates the directory and sets its mode explicitly, since MkdirAll
// is subject to the umask.
func (s *DirectoryStep) Apply(_ context.Context) error {
	uid, gid, err := s.owners.Resolve(s.dir.Owner, s.dir.Group)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir.Path, s.dir.Mode.Perm()); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir.Path, err)
	}
	if err := os.Chmod(s.dir.Path, s.dir.Mode.Perm()); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", s.dir.Path, err)
	}
	if uid >= 0 || gid >= 0 {
		if err := os.Chown(s.dir.Path, uid, gid); err != nil {
			return fmt.Errorf("failed to set owner of %s: %w", s.dir.Path, err)
		}
	}

	klog.Infof("Ensured directory %s", s.dir.Path)
	return nil
}
