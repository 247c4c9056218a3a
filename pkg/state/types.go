// Package state records what provisioning runs have installed on this host.
//
// Artifact installs are stamped with the version that was built, so a guard
// can tell "installed" from "installed at the version this recipe asks for".
package state

import "time"

// Version is the current state file schema version.
const Version = "1.0"

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// State is the persisted provisioning state of a host.
type State struct {
	Version   string           `yaml:"version"`
	LastRun   *Run             `yaml:"last_run,omitempty"`
	Artifacts map[string]Stamp `yaml:"artifacts"`
}

// Run describes one provisioning run.
type Run struct {
	ID         string    `yaml:"id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at,omitempty"`
	Status     string    `yaml:"status"`
}

// Stamp records an installed artifact.
type Stamp struct {
	Version     string    `yaml:"version"`
	Marker      string    `yaml:"marker"`
	InstalledAt time.Time `yaml:"installed_at"`
	RunID       string    `yaml:"run_id,omitempty"`
	Adopted     bool      `yaml:"adopted,omitempty"` // Found installed without a stamp
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Version:   Version,
		Artifacts: make(map[string]Stamp),
	}
}
