package recipe

import "github.com/jaspreet-dot-casa/vmprov/pkg/plan"

// PackagesID is the step ID of the package installer.
const PackagesID = "packages"

// RequirementsID is the step ID of the requirements installer.
const RequirementsID = "requirements"

// ArtifactID returns the step ID of an artifact build.
func ArtifactID(name string) string { return "artifact:" + name }

// DirectoryID returns the step ID of a directory.
func DirectoryID(path string) string { return "directory:" + path }

// FileID returns the step ID of a file deployment.
func FileID(dest string) string { return "file:" + dest }

// ServiceID returns the step ID of a service restart.
func ServiceID(name string) string { return "service:" + name }

// Nodes returns one plan node per step in construction order: packages,
// artifacts, directories, files, services, requirements.
//
// Explicit requires are combined with the implicit edges:
//   - artifacts and requirements require the package list
//   - a file or directory inside a declared directory requires that directory
//   - a service requires every file that notifies it
func (r *Recipe) Nodes() []plan.Node {
	var nodes []plan.Node
	hasPackages := len(r.UniquePackages()) > 0

	if hasPackages {
		nodes = append(nodes, plan.Node{ID: PackagesID})
	}

	for _, a := range r.Artifacts {
		var reqs []string
		if hasPackages {
			reqs = append(reqs, PackagesID)
		}
		nodes = append(nodes, plan.Node{ID: ArtifactID(a.Name), Requires: merge(reqs, a.Requires)})
	}

	for _, d := range r.Directories {
		nodes = append(nodes, plan.Node{ID: DirectoryID(d.Path), Requires: merge(r.parentDirs(d.Path), d.Requires)})
	}

	for _, f := range r.Files {
		nodes = append(nodes, plan.Node{ID: FileID(f.Dest), Requires: merge(r.parentDirs(f.Dest), f.Requires)})
	}

	for _, s := range r.Services {
		var reqs []string
		for _, f := range r.Files {
			for _, n := range f.Notifies {
				if n == s.Name {
					reqs = append(reqs, FileID(f.Dest))
				}
			}
		}
		nodes = append(nodes, plan.Node{ID: ServiceID(s.Name), Requires: merge(reqs, s.Requires)})
	}

	if r.Requirements != nil {
		var reqs []string
		if hasPackages {
			reqs = append(reqs, PackagesID)
		}
		nodes = append(nodes, plan.Node{ID: RequirementsID, Requires: merge(reqs, r.Requirements.Requires)})
	}

	return nodes
}

// parentDirs returns the IDs of declared directories that contain path.
func (r *Recipe) parentDirs(path string) []string {
	var ids []string
	for _, d := range r.Directories {
		if within(path, d.Path) {
			ids = append(ids, DirectoryID(d.Path))
		}
	}
	return ids
}

// merge appends explicit requirements to implicit ones, dropping repeats.
func merge(implicit, explicit []string) []string {
	if len(explicit) == 0 {
		return implicit
	}
	seen := make(map[string]bool, len(implicit)+len(explicit))
	out := make([]string, 0, len(implicit)+len(explicit))
	for _, id := range append(append([]string{}, implicit...), explicit...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
