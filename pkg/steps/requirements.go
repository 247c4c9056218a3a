package steps

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// RequirementsStep installs a pinned requirements manifest with the
// secondary-runtime installer on every run.
type RequirementsStep struct {
	req      recipe.Requirements
	requires []string
	exec     hostexec.Executor
}

// NewRequirementsStep creates a requirements install step.
func NewRequirementsStep(req recipe.Requirements, requires []string, exec hostexec.Executor) *RequirementsStep {
	return &RequirementsStep{req: req, requires: requires, exec: exec}
}

func (s *RequirementsStep) ID() string         { return recipe.RequirementsID }
func (s *RequirementsStep) Requires() []string { return s.requires }

func (s *RequirementsStep) Describe() string {
	return fmt.Sprintf("%s install -r %s", s.req.InstallerOrDefault(), s.req.Manifest)
}

// Check always reports work to do; the installer decides what is current.
func (s *RequirementsStep) Check(_ context.Context) (runner.Status, error) {
	return runner.StatusNeedsApply, nil
}

func (s *RequirementsStep) Apply(ctx context.Context) error {
	if !s.exec.FileExists(s.req.Manifest) {
		return fmt.Errorf("requirements manifest %s not found", s.req.Manifest)
	}

	installer := s.req.InstallerOrDefault()
	klog.Infof("Installing requirements from %s", s.req.Manifest)
	cmd := hostexec.Command{Name: installer, Args: []string{"install", "-r", s.req.Manifest}}
	if _, err := s.exec.Run(ctx, cmd); err != nil {
		return fmt.Errorf("install requirements from %s: %w", s.req.Manifest, err)
	}
	return nil
}
