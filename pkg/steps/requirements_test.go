package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

const manifest = "/vagrant/scripts/requirements.txt"

func TestRequirementsStep_Installs(t *testing.T) {
	exec := &MockExecutor{FileExistsFunc: func(p string) bool { return p == manifest }}
	s := NewRequirementsStep(recipe.Requirements{Manifest: manifest}, nil, exec)

	status, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusNeedsApply, status)

	require.NoError(t, s.Apply(context.Background()))
	assert.Equal(t, []string{"pip install -r " + manifest}, exec.CommandLines())
	assert.Equal(t, "pip install -r "+manifest, s.Describe())
}

func TestRequirementsStep_CustomInstaller(t *testing.T) {
	exec := &MockExecutor{FileExistsFunc: func(string) bool { return true }}
	s := NewRequirementsStep(recipe.Requirements{Manifest: manifest, Installer: "pip3"}, nil, exec)

	require.NoError(t, s.Apply(context.Background()))
	assert.Equal(t, []string{"pip3 install -r " + manifest}, exec.CommandLines())
}

func TestRequirementsStep_MissingManifest(t *testing.T) {
	exec := &MockExecutor{FileExistsFunc: func(string) bool { return false }}
	s := NewRequirementsStep(recipe.Requirements{Manifest: manifest}, nil, exec)

	err := s.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirements manifest "+manifest+" not found")
	assert.Empty(t, exec.Calls)
}

func TestRequirementsStep_InstallerFailure(t *testing.T) {
	exec := &MockExecutor{
		FileExistsFunc: func(string) bool { return true },
		RunFunc: func(_ context.Context, cmd hostexec.Command) (string, error) {
			return "", errors.New("No matching distribution found for numpy==1.7.1")
		},
	}
	s := NewRequirementsStep(recipe.Requirements{Manifest: manifest}, nil, exec)

	err := s.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install requirements from "+manifest)
	assert.Contains(t, err.Error(), "numpy")
}
