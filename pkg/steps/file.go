package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/zeebo/blake3"
	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// FileStep deploys a bundled file with a fixed owner, group and mode.
type FileStep struct {
	file     recipe.File
	requires []string
	sources  fs.FS
	owners   OwnerResolver
}

// NewFileStep creates a file deployment step reading file.Source from sources.
func NewFileStep(file recipe.File, requires []string, sources fs.FS, owners OwnerResolver) *FileStep {
	return &FileStep{
		file:     file,
		requires: requires,
		sources:  sources,
		owners:   owners,
	}
}

func (s *FileStep) ID() string         { return recipe.FileID(s.file.Dest) }
func (s *FileStep) Requires() []string { return s.requires }

func (s *FileStep) Describe() string {
	if o := ownerString(s.file.Owner, s.file.Group); o != "" {
		return fmt.Sprintf("deploy %s (%s %s)", s.file.Dest, o, s.file.Mode)
	}
	return fmt.Sprintf("deploy %s (%s)", s.file.Dest, s.file.Mode)
}

// Check is satisfied when the destination has the source's content, mode and
// ownership.
func (s *FileStep) Check(_ context.Context) (runner.Status, error) {
	content, err := s.source()
	if err != nil {
		return runner.StatusNeedsApply, err
	}
	uid, gid, err := s.owners.Resolve(s.file.Owner, s.file.Group)
	if err != nil {
		return runner.StatusNeedsApply, err
	}

	info, err := os.Stat(s.file.Dest)
	if errors.Is(err, fs.ErrNotExist) {
		return runner.StatusNeedsApply, nil
	}
	if err != nil {
		return runner.StatusNeedsApply, fmt.Errorf("failed to stat %s: %w", s.file.Dest, err)
	}
	if info.IsDir() {
		return runner.StatusNeedsApply, fmt.Errorf("%s is a directory", s.file.Dest)
	}
	if info.Mode().Perm() != s.file.Mode.Perm() || !ownerMatches(info, uid, gid) {
		return runner.StatusNeedsApply, nil
	}

	want := blake3.Sum256(content)
	got, err := digestFile(s.file.Dest)
	if err != nil {
		return runner.StatusNeedsApply, err
	}
	if got != want {
		klog.V(1).Infof("%s differs from %s", s.file.Dest, s.file.Source)
		return runner.StatusNeedsApply, nil
	}
	return runner.StatusSatisfied, nil
}

// Apply writes the content to a temporary file next to the destination, sets
// its mode and ownership, and then renames it into place.
func (s *FileStep) Apply(_ context.Context) error {
	content, err := s.source()
	if err != nil {
		return err
	}
	uid, gid, err := s.owners.Resolve(s.file.Owner, s.file.Group)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.file.Dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.file.Dest)+".vmprov-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", s.file.Dest, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(content)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, s.file.Mode.Perm()); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", s.file.Dest, err)
	}
	if uid >= 0 || gid >= 0 {
		if err := os.Chown(tmpPath, uid, gid); err != nil {
			return fmt.Errorf("failed to set owner of %s: %w", s.file.Dest, err)
		}
	}

	if err := atomic.ReplaceFile(tmpPath, s.file.Dest); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.file.Dest, err)
	}
	committed = true

	klog.Infof("Deployed %s", s.file.Dest)
	return nil
}

func (s *FileStep) source() ([]byte, error) {
	content, err := fs.ReadFile(s.sources, s.file.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", s.file.Source, err)
	}
	return content, nil
}

// digestFile returns the BLAKE3 digest of the file at path.
func digestFile(path string) ([32]byte, error) {
	var sum [32]byte

	f, err := os.Open(path)
	if err != nil {
		return sum, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, fmt.Errorf("failed to read %s: %w", path, err)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
