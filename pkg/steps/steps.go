// Package steps implements the provisioning steps: OS packages, artifact
// builds, directories, files, service restarts and secondary-runtime
// requirements.
package steps

import (
	"errors"
	"io/fs"

	"github.com/jaspreet-dot-casa/vmprov/pkg/fetch"
	"github.com/jaspreet-dot-casa/vmprov/pkg/hostexec"
	"github.com/jaspreet-dot-casa/vmprov/pkg/recipe"
	"github.com/jaspreet-dot-casa/vmprov/pkg/runner"
)

// Env holds the host collaborators steps are built with.
type Env struct {
	Exec    hostexec.Executor
	Files   fs.FS         // Sources for file steps
	State   StampStore    // Required when the recipe has artifacts
	Fetcher Fetcher       // Defaults to fetch.NewDownloader()
	WorkDir string        // Parent of artifact work directories ("" for the temp dir)
	Owners  OwnerResolver // Defaults to SystemOwners
}

// FromRecipe builds one step per recipe entry, in the order packages,
// artifacts, directories, files, services, requirements. Each step carries
// the requirements computed by the recipe.
func FromRecipe(r *recipe.Recipe, env Env) ([]runner.Step, error) {
	if env.Exec == nil {
		return nil, errors.New("steps: executor is required")
	}
	if len(r.Files) > 0 && env.Files == nil {
		return nil, errors.New("steps: file sources are required")
	}
	if len(r.Artifacts) > 0 && env.State == nil {
		return nil, errors.New("steps: state store is required for artifacts")
	}
	if env.Fetcher == nil {
		env.Fetcher = fetch.NewDownloader()
	}
	if env.Owners == nil {
		env.Owners = SystemOwners{}
	}

	requires := make(map[string][]string)
	for _, n := range r.Nodes() {
		requires[n.ID] = n.Requires
	}

	var steps []runner.Step
	if pkgs := r.UniquePackages(); len(pkgs) > 0 {
		steps = append(steps, NewPackageStep(env.Exec, pkgs, requires[recipe.PackagesID]))
	}
	for _, a := range r.Artifacts {
		steps = append(steps, NewArtifactStep(a, requires[recipe.ArtifactID(a.Name)], env.Exec, env.Fetcher, env.State, env.WorkDir))
	}
	for _, d := range r.Directories {
		steps = append(steps, NewDirectoryStep(d, requires[recipe.DirectoryID(d.Path)], env.Owners))
	}
	for _, f := range r.Files {
		steps = append(steps, NewFileStep(f, requires[recipe.FileID(f.Dest)], env.Files, env.Owners))
	}
	for _, s := range r.Services {
		steps = append(steps, NewServiceStep(s.Name, requires[recipe.ServiceID(s.Name)], env.Exec))
	}
	if r.Requirements != nil {
		steps = append(steps, NewRequirementsStep(*r.Requirements, requires[recipe.RequirementsID], env.Exec))
	}

	if len(steps) == 0 {
		return nil, errors.New("steps: recipe has nothing to do")
	}
	return steps, nil
}
