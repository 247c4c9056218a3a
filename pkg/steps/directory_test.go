//go:build unix

package steps

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

func TestDirectoryStep_CreatesWithModeDespiteUmask(t *testing.T) {
	old := syscall.Umask(0o022)
	defer syscall.Umask(old)

	d := recipe.Directory{
		Path:  filepath.Join(t.TempDir(), "home", "vagrant", ".matplotlib"),
		Owner: "vagrant",
		Group: "vagrant",
		Mode:  0o775,
	}
	s := NewDirectoryStep(d, nil, currentOwners{})

	status, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusNeedsApply, status)

	require.NoError(t, s.Apply(context.Background()))

	info, err := os.Stat(d.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o775), info.Mode().Perm())

	status, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSatisfied, status)
}

func TestDirectoryStep_FixesExistingMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".matplotlib")
	require.NoError(t, os.Mkdir(path, 0o700))

	s := NewDirectoryStep(recipe.Directory{Path: path, Mode: 0o775}, nil, currentOwners{})
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.StatusNeedsApply, status)

	require.NoError(t, s.Apply(context.Background()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o775), info.Mode().Perm())
}

func TestDirectoryStep_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".matplotlib")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s := NewDirectoryStep(recipe.Directory{Path: path, Mode: 0o775}, nil, currentOwners{})
	_, err := s.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestDirectoryStep_Describe(t *testing.T) {
	s := NewDirectoryStep(recipe.Directory{Path: "/home/vagrant/.matplotlib", Owner: "vagrant", Group: "vagrant", Mode: 0o775}, nil, currentOwners{})
	assert.Equal(t, "directory:/home/vagrant/.matplotlib", s.ID())
	assert.Equal(t, "ensure directory /home/vagrant/.matplotlib (vagrant:vagrant 0775)", s.Describe())
}
