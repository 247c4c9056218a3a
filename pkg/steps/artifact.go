package steps

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/fetch"
	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
)

// Fetcher downloads a single URL to a local path.
type Fetcher interface {
	Download(ctx context.Context, opts fetch.Options) error
}

// StampStore persists artifact install stamps.
type StampStore interface {
	Stamp(name string) (state.Stamp, bool, error)
	Record(name string, stamp state.Stamp) error
}

// ArtifactStep downloads, builds and installs one third-party library.
//
// The step is satisfied when the marker file exists and the recorded stamp
// matches the artifact version. A marker without a stamp is adopted as
// installed; a stamp for another version forces a rebuild.
type ArtifactStep struct {
	artifact recipe.Artifact
	requires []string
	exec     hostexec.Executor
	fetcher  Fetcher
	store    StampStore
	workDir  string
	now      func() time.Time
}

// NewArtifactStep creates an artifact build step. Work directories are
// created under workDir, or the system temp dir when workDir is empty.
func NewArtifactStep(a recipe.Artifact, requires []string, exec hostexec.Executor, fetcher Fetcher, store StampStore, workDir string) *ArtifactStep {
	return &ArtifactStep{
		artifact: a,
		requires: requires,
		exec:     exec,
		fetcher:  fetcher,
		store:    store,
		workDir:  workDir,
		now:      time.Now,
	}
}

func (s *ArtifactStep) ID() string         { return recipe.ArtifactID(s.artifact.Name) }
func (s *ArtifactStep) Requires() []string { return s.requires }

func (s *ArtifactStep) Describe() string {
	if s.artifact.Version == "" {
		return "build " + s.artifact.Name
	}
	return fmt.Sprintf("build %s %s", s.artifact.Name, s.artifact.Version)
}

func (s *ArtifactStep) Check(_ context.Context) (runner.Status, error) {
	a := s.artifact
	if !s.exec.FileExists(a.Marker) {
		return runner.StatusNeedsApply, nil
	}

	stamp, ok, err := s.store.Stamp(a.Name)
	if err != nil {
		return runner.StatusNeedsApply, err
	}
	if !ok {
		klog.V(1).Infof("%s: marker %s present without a stamp, adopting", a.Name, a.Marker)
		return runner.StatusSatisfied, nil
	}
	if stamp.Version != a.Version {
		klog.Infof("%s: installed version %q, recipe wants %q", a.Name, stamp.Version, a.Version)
		return runner.StatusNeedsApply, nil
	}
	return runner.StatusSatisfied, nil
}

// Adopt stamps an install found without a stamp.
func (s *ArtifactStep) Adopt(_ context.Context) error {
	a := s.artifact
	if _, ok, err := s.store.Stamp(a.Name); err != nil || ok {
		return err
	}
	return s.store.Record(a.Name, state.Stamp{
		Version:     a.Version,
		Marker:      a.Marker,
		InstalledAt: s.now(),
		Adopted:     true,
	})
}

// Apply downloads and builds the artifact in a fresh work directory, which
// is removed afterwards whether or not the build succeeded.
func (s *ArtifactStep) Apply(ctx context.Context) error {
	a := s.artifact

	if s.workDir != "" {
		if err := os.MkdirAll(s.workDir, 0o755); err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.workDir, "vmprov-"+a.Name+"-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			klog.Warningf("Failed to clean up %s: %v", dir, err)
		}
	}()

	for _, d := range a.Downloads {
		if err := s.download(ctx, d, dir); err != nil {
			return fmt.Errorf("build %s: %w", a.Name, err)
		}
	}

	runDir := dir
	if a.Dir != "" {
		runDir = filepath.Join(dir, a.Dir)
	}
	for _, argv := range a.Steps {
		if len(argv) == 0 {
			continue
		}
		klog.Infof("%s: %s", a.Name, strings.Join(argv, " "))
		cmd := hostexec.Command{Name: argv[0], Args: argv[1:], Dir: runDir}
		if _, err := s.exec.Run(ctx, cmd); err != nil {
			return fmt.Errorf("build %s: step %q: %w", a.Name, strings.Join(argv, " "), err)
		}
	}

	if !s.exec.FileExists(a.Marker) {
		return fmt.Errorf("build %s: marker %s missing after install", a.Name, a.Marker)
	}

	return s.store.Record(a.Name, state.Stamp{
		Version:     a.Version,
		Marker:      a.Marker,
		InstalledAt: s.now(),
	})
}

func (s *ArtifactStep) download(ctx context.Context, d recipe.Download, dir string) error {
	name, err := downloadName(d.URL)
	if err != nil {
		return err
	}
	dest := filepath.Join(dir, name)

	klog.Infof("Downloading %s", d.URL)
	err = s.fetcher.Download(ctx, fetch.Options{
		URL:      d.URL,
		DestPath: dest,
		SHA256:   d.SHA256,
		OnProgress: func(downloaded, total int64) {
			klog.V(4).Infof("%s: %d/%d bytes", name, downloaded, total)
		},
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", d.URL, err)
	}

	if d.Extract {
		if err := fetch.Extract(dest, dir); err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
	}
	return nil
}

// downloadName returns the local file name for a download URL.
func downloadName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("download URL %q has no file name", rawURL)
	}
	return name, nil
}
