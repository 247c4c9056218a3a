package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

func TestServiceStep_AlwaysNeedsApply(t *testing.T) {
	s := NewServiceStep("ntp", []string{"file:/etc/ntp.conf"}, &MockExecutor{})

	status, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusNeedsApply, status)
	assert.Equal(t, "service:ntp", s.ID())
	assert.Equal(t, []string{"file:/etc/ntp.conf"}, s.Requires())
}

func TestServiceStep_RestartsWithSystemctl(t *testing.T) {
	exec := &MockExecutor{}
	s := NewServiceStep("ntp", nil, exec)

	require.NoError(t, s.Apply(context.Background()))
	assert.Equal(t, []string{"systemctl restart ntp"}, exec.CommandLines())
}

func TestServiceStep_FallsBackToService(t *testing.T) {
	exec := &MockExecutor{
		LookPathFunc: func(file string) (string, error) {
			return "", errors.New("executable file not found in $PATH")
		},
	}
	s := NewServiceStep("ntp", nil, exec)

	require.NoError(t, s.Apply(context.Background()))
	assert.Equal(t, []string{"service ntp restart"}, exec.CommandLines())
}

func TestServiceStep_RestartFailure(t *testing.T) {
	exec := &MockExecutor{
		RunFunc: func(_ context.Context, cmd hostexec.Command) (string, error) {
			return "", errors.New("Unit ntp.service not found.")
		},
	}
	s := NewServiceStep("ntp", nil, exec)

	err := s.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart service ntp")
}
