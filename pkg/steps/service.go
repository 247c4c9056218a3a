package steps

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// ServiceStep restarts a system service. It has no guard: the service is
// restarted on every run once its configuration has been deployed.
type ServiceStep struct {
	name     string
	requires []string
	exec     hostexec.Executor
}

// NewServiceStep creates a service restart step.
func NewServiceStep(name string, requires []string, exec hostexec.Executor) *ServiceStep {
	return &ServiceStep{name: name, requires: requires, exec: exec}
}

func (s *ServiceStep) ID() string         { return recipe.ServiceID(s.name) }
func (s *ServiceStep) Requires() []string { return s.requires }
func (s *ServiceStep) Describe() string   { return "restart " + s.name }

func (s *ServiceStep) Check(_ context.Context) (runner.Status, error) {
	return runner.StatusNeedsApply, nil
}

// Apply restarts the service with systemctl, or the SysV service wrapper
// when systemctl is not installed.
func (s *ServiceStep) Apply(ctx context.Context) error {
	cmd := hostexec.Command{Name: "systemctl", Args: []string{"restart", s.name}}
	if _, err := s.exec.LookPath("systemctl"); err != nil {
		cmd = hostexec.Command{Name: "service", Args: []string{s.name, "restart"}}
	}

	klog.Infof("Restarting service %s", s.name)
	if _, err := s.exec.Run(ctx, cmd); err != nil {
		return fmt.Errorf("restart service %s: %w", s.name, err)
	}
	return nil
}
