package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaspreet-dot-casa/vmprov/assets"
	"github.com/jaspreet-dot-casa/vmprov/pkg/plan"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Len(t, r.Packages, 21)
	assert.Contains(t, r.Packages, "python-matplotlib")
	assert.Contains(t, r.Packages, "redis-server")

	require.Len(t, r.Artifacts, 2)
	assert.Equal(t, "re2", r.Artifacts[0].Name)
	assert.Equal(t, "/usr/local/lib/libre2.so", r.Artifacts[0].Marker)
	assert.True(t, r.Artifacts[0].Downloads[0].Extract)
	assert.Equal(t, "re2", r.Artifacts[0].Dir)
	assert.Equal(t, [][]string{{"make"}, {"make", "test"}, {"make", "install"}, {"make", "testinstall"}}, r.Artifacts[0].Steps)

	assert.Equal(t, "gflags", r.Artifacts[1].Name)
	assert.Equal(t, "/usr/lib/libgflags.so", r.Artifacts[1].Marker)
	assert.Len(t, r.Artifacts[1].Downloads, 2)

	require.Len(t, r.Files, 2)
	assert.Equal(t, "/etc/ntp.conf", r.Files[0].Dest)
	assert.Equal(t, "root", r.Files[0].Owner)
	assert.Equal(t, os.FileMode(0644), r.Files[0].Mode.Perm())
	assert.Equal(t, []string{"ntp"}, r.Files[0].Notifies)
	assert.Equal(t, os.FileMode(0664), r.Files[1].Mode.Perm())

	require.Len(t, r.Directories, 1)
	assert.Equal(t, "/home/vagrant/.matplotlib", r.Directories[0].Path)
	assert.Equal(t, os.FileMode(0775), r.Directories[0].Mode.Perm())

	require.NotNil(t, r.Requirements)
	assert.Equal(t, "/vagrant/scripts/requirements.txt", r.Requirements.Manifest)
	assert.Equal(t, "pip", r.Requirements.InstallerOrDefault())
}

func TestDefaultIsValid(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	result := r.Validate(assets.Files())
	assert.False(t, result.HasErrors(), "issues: %v", result.Issues)
	assert.NoError(t, result.Err())
}

func TestDefaultNodes(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	p, err := plan.New(r.Nodes())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"packages",
		"artifact:re2",
		"artifact:gflags",
		"directory:/home/vagrant/.matplotlib",
		"file:/etc/ntp.conf",
		"file:/home/vagrant/.matplotlib/matplotlibrc",
		"service:ntp",
		"requirements",
	}, p.Order())
}

func TestNodes_ImplicitEdges(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	byID := make(map[string][]string)
	for _, n := range r.Nodes() {
		byID[n.ID] = n.Requires
	}

	assert.Equal(t, []string{"packages"}, byID["artifact:re2"])
	assert.Equal(t, []string{"packages"}, byID["requirements"])
	assert.Equal(t, []string{"directory:/home/vagrant/.matplotlib"}, byID["file:/home/vagrant/.matplotlib/matplotlibrc"])
	assert.Equal(t, []string{"file:/etc/ntp.conf"}, byID["service:ntp"])
	assert.Empty(t, byID["file:/etc/ntp.conf"])
}

func TestNodes_NoPackages(t *testing.T) {
	r := &Recipe{
		Artifacts:    []Artifact{{Name: "re2"}},
		Requirements: &Requirements{Manifest: "/r.txt"},
	}

	nodes := r.Nodes()
	require.Len(t, nodes, 2)
	assert.Empty(t, nodes[0].Requires)
	assert.Empty(t, nodes[1].Requires)
}

func TestUniquePackages(t *testing.T) {
	r := &Recipe{Packages: []string{"git", "make", "git", " ", "gcc", "make"}}
	assert.Equal(t, []string{"git", "make", "gcc"}, r.UniquePackages())
}

func TestFileModeYAML(t *testing.T) {
	tests := []struct {
		in   string
		want os.FileMode
	}{
		{`mode: "0644"`, 0644},
		{`mode: 0775`, 0775},
		{`mode: "0o664"`, 0664},
		{`mode: "600"`, 0600},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				Mode FileMode `yaml:"mode"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v.Mode.Perm())
		})
	}
}

func TestFileModeYAML_Invalid(t *testing.T) {
	var v struct {
		Mode FileMode `yaml:"mode"`
	}
	err := yaml.Unmarshal([]byte(`mode: "0999"`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be octal")
}

func TestFileModeString(t *testing.T) {
	assert.Equal(t, "0644", FileMode(0644).String())
	assert.Equal(t, "0775", FileMode(0775).String())

	out, err := yaml.Marshal(struct {
		Mode FileMode `yaml:"mode"`
	}{Mode: 0664})
	require.NoError(t, err)
	assert.Equal(t, "mode: \"0664\"\n", string(out))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packages: [git, make]\n"), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "make"}, r.Packages)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read recipe")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("packages: [git\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse recipe")
}
