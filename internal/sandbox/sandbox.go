// Package sandbox provides sandbox kind selection and command wrapping for
// isolated tool execution. The actual isolation mechanism lives behind the
// Wrapper interface; this package only decides what kind of isolation a tool
// run gets and prepares the command line for it.
package sandbox

import (
	"fmt"
)

// Kind is the isolation level a command runs under.
type Kind string

const (
	// KindNone runs the command directly on the host.
	KindNone Kind = "none"
	// KindReadOnly allows reading the workspace but no writes.
	KindReadOnly Kind = "read-only"
	// KindWorkspaceWrite allows writes inside the workspace only.
	KindWorkspaceWrite Kind = "workspace-write"
)

// Preference is a tool's declared stance on isolation.
type Preference string

const (
	// PreferenceAuto defers to the active policy.
	PreferenceAuto Preference = "auto"
	// PreferenceRequire insists on a sandbox; selection fails when the
	// policy has sandboxing disabled.
	PreferenceRequire Preference = "require"
	// PreferenceForbid opts out of sandboxing entirely.
	PreferenceForbid Preference = "forbid"
)

// Policy is the active sandboxing policy for a session.
type Policy struct {
	// Disabled turns sandboxing off for every tool that does not require it.
	Disabled bool `json:"disabled"`
	// Default is the kind used when a tool defers via PreferenceAuto.
	Default Kind `json:"default"`
}

// DefaultPolicy sandboxes auto-preference tools with workspace writes.
func DefaultPolicy() Policy {
	return Policy{Default: KindWorkspaceWrite}
}

// Select yields the sandbox kind for a tool given its preference and the
// active policy.
func Select(pref Preference, policy Policy) (Kind, error) {
	switch pref {
	case PreferenceForbid:
		return KindNone, nil
	case PreferenceRequire:
		if policy.Disabled {
			return KindNone, fmt.Errorf("tool requires a sandbox but sandboxing is disabled")
		}
		if policy.Default == "" || policy.Default == KindNone {
			return KindWorkspaceWrite, nil
		}
		return policy.Default, nil
	default:
		if policy.Disabled || policy.Default == "" {
			return KindNone, nil
		}
		return policy.Default, nil
	}
}

// Wrapper prepares a command for isolated execution of the given kind.
// Failures surface as ordinary execution errors to the caller.
type Wrapper interface {
	Wrap(kind Kind, argv []string, dir string) ([]string, error)
}

// ExecWrapper wraps commands by prefixing them with a per-kind launcher
// command line, e.g. a bwrap or sandbox-exec invocation.
type ExecWrapper struct {
	launchers map[Kind][]string
}

// NewExecWrapper creates a wrapper from a kind-to-launcher map.
func NewExecWrapper(launchers map[Kind][]string) *ExecWrapper {
	return &ExecWrapper{launchers: launchers}
}

// Wrap prefixes argv with the launcher for the kind. KindNone passes the
// command through untouched; an unconfigured kind is an error.
func (w *ExecWrapper) Wrap(kind Kind, argv []string, dir string) ([]string, error) {
	if kind == KindNone || kind == "" {
		return argv, nil
	}
	launcher, ok := w.launchers[kind]
	if !ok {
		return nil, fmt.Errorf("no sandbox launcher configured for kind %q", kind)
	}
	wrapped := make([]string, 0, len(launcher)+len(argv))
	wrapped = append(wrapped, launcher...)
	wrapped = append(wrapped, argv...)
	return wrapped, nil
}

// NopWrapper passes every command through unchanged. Used when the host
// provides no isolation mechanism.
type NopWrapper struct{}

func (NopWrapper) Wrap(kind Kind, argv []string, dir string) ([]string, error) {
	return argv, nil
}
