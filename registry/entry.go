// Package registry is the durable catalog of installed extensions. It owns
// every RegistryEntry; all state transitions route through the Loader,
// which holds the registry's write token.
package registry

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
)

// InstallID is the stable unique identifier of an installed extension.
// Assigned at first install, never reused.
type InstallID string

func newInstallID() InstallID {
	return InstallID(uuid.NewString())
}

// Source records install provenance.
type Source int

const (
	// SourceLocal is a package installed from the local machine.
	SourceLocal Source = iota
	// SourceRemote is a package installed from a remote origin.
	SourceRemote
)

func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// State is the lifecycle state of a registry entry.
//
// Installing and Uninstalling exist only for the duration of the Loader
// call that produces them; they are never persisted.
type State int

const (
	// StateInstalling is the transient state during install.
	StateInstalling State = iota
	// StateInstalled is the committed, not-yet-enabled state.
	StateInstalled
	// StateEnabled is the active state.
	StateEnabled
	// StateDisabled is the inactive state.
	StateDisabled
	// StateUninstalling is the transient state during uninstall.
	StateUninstalling
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateUninstalling:
		return "uninstalling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions is the closed state machine:
// Installing -> Installed -> {Enabled <-> Disabled} -> Uninstalling -> removed.
var transitions = map[State]map[State]bool{
	StateInstalling: {StateInstalled: true},
	StateInstalled:  {StateEnabled: true, StateDisabled: true, StateUninstalling: true},
	StateEnabled:    {StateDisabled: true, StateUninstalling: true},
	StateDisabled:   {StateEnabled: true, StateUninstalling: true},
}

func (s State) canTransition(to State) bool {
	return transitions[s][to]
}

// transient states must never leak outside the Loader call producing them.
func (s State) transient() bool {
	return s == StateInstalling || s == StateUninstalling
}

// entry is the registry-owned record for one installed extension. Nothing
// outside this package holds a mutable reference to it.
type entry struct {
	id       InstallID
	manifest *manifest.Manifest
	grant    *permission.Grant
	state    State
	source   Source
	enabled  bool
}

// View is an immutable copy of an entry handed to readers. Reads during an
// in-flight update observe either the fully-old or fully-new grant, never a
// partial one.
type View struct {
	ID       InstallID
	Name     string
	Version  string
	State    State
	Source   Source
	Enabled  bool
	Manifest *manifest.Manifest
	Grant    *permission.Grant
}

func (e *entry) view() View {
	return View{
		ID:       e.id,
		Name:     e.manifest.Name,
		Version:  e.manifest.Version.String(),
		State:    e.state,
		Source:   e.source,
		Enabled:  e.enabled,
		Manifest: e.manifest,
		Grant:    e.grant,
	}
}

// Record is the durable shape handed to the external persistence
// collaborator. Downstream storage must preserve this field set verbatim;
// schema.Catalog publishes its JSON Schema for that purpose.
type Record struct {
	InstallID    string   `json:"install_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Generation   int      `json:"generation"`
	Description  string   `json:"description,omitempty"`
	Author       string   `json:"author,omitempty"`
	State        string   `json:"state"`
	Source       string   `json:"source"`
	Enabled      bool     `json:"enabled"`
	Capabilities []string `json:"capabilities"`
	HostScope    []string `json:"host_scope"`
}

func (e *entry) record() Record {
	caps := e.grant.Capabilities()
	capStrs := make([]string, len(caps))
	for i, c := range caps {
		capStrs[i] = string(c)
	}
	scope := e.grant.HostScope()
	scopeStrs := make([]string, len(scope))
	for i, p := range scope {
		scopeStrs[i] = p.String()
	}
	sort.Strings(scopeStrs)

	return Record{
		InstallID:    string(e.id),
		Name:         e.manifest.Name,
		Version:      e.manifest.Version.String(),
		Generation:   int(e.manifest.Generation),
		Description:  e.manifest.Description,
		Author:       e.manifest.Author,
		State:        e.state.String(),
		Source:       e.source.String(),
		Enabled:      e.enabled,
		Capabilities: capStrs,
		HostScope:    scopeStrs,
	}
}
