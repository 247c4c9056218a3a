package recipe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jaspreet-dot-casa/vmprov/pkg/fetch"
	"github.com/jaspreet-dot-casa/vmprov/pkg/plan"
)

// ErrInvalidRecipe is returned by Result.Err when validation found errors.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Severity represents the severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue represents a validation issue found in a recipe.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Result holds all validation results.
type Result struct {
	Issues []Issue `json:"issues"`
}

// HasErrors returns true if there are any error-level issues.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of error-level issues.
func (r *Result) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			count++
		}
	}
	return count
}

// Err returns nil if there are no errors, otherwise an error wrapping
// ErrInvalidRecipe that lists every error-level issue.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	var msgs []string
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			msgs = append(msgs, issue.String())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecipe, strings.Join(msgs, "; "))
}

func (r *Result) errorf(field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
}

func (r *Result) warnf(field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// Validate checks the recipe for errors. When files is non-nil, every file
// source must exist in it.
func (r *Recipe) Validate(files fs.FS) *Result {
	result := &Result{Issues: []Issue{}}

	r.validatePackages(result)
	r.validateArtifacts(result)
	r.validateDirectories(result)
	r.validateFiles(result, files)
	r.validateServices(result)
	r.validateRequirements(result)

	// Only check edges once every ID is well formed.
	if !result.HasErrors() {
		if _, err := plan.New(r.Nodes()); err != nil {
			result.errorf("requires", "%v", err)
		}
	}

	return result
}

func (r *Recipe) validatePackages(result *Result) {
	seen := make(map[string]bool)
	for i, p := range r.Packages {
		field := fmt.Sprintf("packages[%d]", i)
		name := strings.TrimSpace(p)
		if name == "" {
			result.errorf(field, "package name is empty")
			continue
		}
		if strings.ContainsAny(name, " \t") {
			result.errorf(field, "package name %q contains whitespace", name)
		}
		if seen[name] {
			result.warnf(field, "duplicate package %q", name)
		}
		seen[name] = true
	}
}

func (r *Recipe) validateArtifacts(result *Result) {
	seen := make(map[string]bool)
	for i, a := range r.Artifacts {
		field := fmt.Sprintf("artifacts[%d]", i)

		if a.Name == "" {
			result.errorf(field+".name", "name is required")
		} else if seen[a.Name] {
			result.errorf(field+".name", "duplicate artifact %q", a.Name)
		}
		seen[a.Name] = true

		if a.Version == "" {
			result.warnf(field+".version", "no version: upgrades of %q will not be detected", a.Name)
		}
		if !filepath.IsAbs(a.Marker) {
			result.errorf(field+".marker", "marker must be an absolute path")
		}

		if len(a.Downloads) == 0 {
			result.errorf(field+".downloads", "at least one download is required")
		}
		names := make(map[string]bool)
		for j, d := range a.Downloads {
			dfield := fmt.Sprintf("%s.downloads[%d]", field, j)
			u, err := url.Parse(d.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				result.errorf(dfield+".url", "invalid download URL %q", d.URL)
				continue
			}
			base := filepath.Base(u.Path)
			if base == "." || base == "/" {
				result.errorf(dfield+".url", "URL %q has no file name", d.URL)
			} else if names[base] {
				result.errorf(dfield+".url", "file name %q is downloaded twice", base)
			}
			names[base] = true
			if d.SHA256 != "" {
				if b, err := hex.DecodeString(d.SHA256); err != nil || len(b) != 32 {
					result.errorf(dfield+".sha256", "sha256 must be 64 hex characters")
				}
			}
			if d.Extract && !fetch.IsArchive(base) {
				result.errorf(dfield+".extract", "%q is not a supported archive", base)
			}
		}

		if a.Dir != "" && (filepath.IsAbs(a.Dir) || !filepath.IsLocal(a.Dir)) {
			result.errorf(field+".dir", "dir must be a relative path inside the work directory")
		}

		if len(a.Steps) == 0 {
			result.errorf(field+".steps", "at least one step is required")
		}
		for j, step := range a.Steps {
			if len(step) == 0 || step[0] == "" {
				result.errorf(fmt.Sprintf("%s.steps[%d]", field, j), "step has no command")
			}
		}
	}
}

func (r *Recipe) validateDirectories(result *Result) {
	seen := make(map[string]bool)
	for i, d := range r.Directories {
		field := fmt.Sprintf("directories[%d]", i)
		if !filepath.IsAbs(d.Path) {
			result.errorf(field+".path", "path must be absolute")
		} else if seen[filepath.Clean(d.Path)] {
			result.errorf(field+".path", "duplicate directory %q", d.Path)
		}
		seen[filepath.Clean(d.Path)] = true
		validateOwnership(result, field, d.Owner, d.Group, d.Mode)
	}
}

func (r *Recipe) validateFiles(result *Result, files fs.FS) {
	services := make(map[string]bool)
	for _, s := range r.Services {
		services[s.Name] = true
	}

	seen := make(map[string]bool)
	for i, f := range r.Files {
		field := fmt.Sprintf("files[%d]", i)

		if f.Source == "" {
			result.errorf(field+".source", "source is required")
		} else if files != nil {
			if _, err := fs.Stat(files, f.Source); err != nil {
				result.errorf(field+".source", "source %q not found", f.Source)
			}
		}

		if !filepath.IsAbs(f.Dest) {
			result.errorf(field+".dest", "dest must be absolute")
		} else if seen[filepath.Clean(f.Dest)] {
			result.errorf(field+".dest", "duplicate destination %q", f.Dest)
		}
		seen[filepath.Clean(f.Dest)] = true

		validateOwnership(result, field, f.Owner, f.Group, f.Mode)

		for _, n := range f.Notifies {
			if !services[n] {
				result.errorf(field+".notifies", "unknown service %q", n)
			}
		}
	}
}

func (r *Recipe) validateServices(result *Result) {
	seen := make(map[string]bool)
	for i, s := range r.Services {
		field := fmt.Sprintf("services[%d].name", i)
		if s.Name == "" {
			result.errorf(field, "name is required")
			continue
		}
		if seen[s.Name] {
			result.errorf(field, "duplicate service %q", s.Name)
		}
		seen[s.Name] = true
	}
}

func (r *Recipe) validateRequirements(result *Result) {
	if r.Requirements == nil {
		return
	}
	if !filepath.IsAbs(r.Requirements.Manifest) {
		result.errorf("requirements.manifest", "manifest must be an absolute path")
	}
}

func validateOwnership(result *Result, field, owner, group string, mode FileMode) {
	if owner == "" {
		result.errorf(field+".owner", "owner is required")
	}
	if group == "" {
		result.errorf(field+".group", "group is required")
	}
	if mode == 0 {
		result.warnf(field+".mode", "mode is 0000")
	}
	if mode > 0o777 {
		result.errorf(field+".mode", "mode %s has bits outside 0777", mode)
	}
}
