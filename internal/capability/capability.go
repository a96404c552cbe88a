// Package capability defines the contract between the orchestrator and the
// screening checks it dispatches. A capability receives one subject and
// returns findings for the ledger or a typed Failure.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"caseline/internal/client"
	"caseline/internal/ledger"
)

// FailureKind classifies capability failures for retry policy and
// degradation handling.
type FailureKind string

const (
	FailRateLimited FailureKind = "RATE_LIMITED" // transient, retry
	FailError       FailureKind = "ERROR"        // transient, retry
	FailNoResults   FailureKind = "NO_RESULTS"   // permanent, record as not found
	FailRefused     FailureKind = "REFUSED"      // permanent, record as incomplete
)

// Failure is a typed capability error.
type Failure struct {
	Capability string
	Kind       FailureKind
	Msg        string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Capability, f.Kind, f.Msg)
}

// Retryable reports whether the failure is worth another attempt.
func (f *Failure) Retryable() bool {
	return f.Kind == FailRateLimited || f.Kind == FailError
}

// AsFailure unwraps a *Failure from err, or nil.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// Request is one scheduled invocation: the full intake profile plus the
// subject this call screens (the client itself or one beneficial owner).
type Request struct {
	Client      client.Client
	Subject     string
	SubjectRole string
}

// Result carries the findings a capability produced. IDs and timestamps are
// assigned by the ledger at record time.
type Result struct {
	Findings []ledger.Finding
}

// Capability is one screening check.
type Capability interface {
	Name() string
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Registry maps capability names to implementations.
type Registry struct {
	mu   sync.Mutex
	caps map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: map[string]Capability{}}
}

// Register adds or replaces a capability under its own name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Name()] = c
}

// Lookup returns the capability for name, or nil.
func (r *Registry) Lookup(name string) Capability {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps[name]
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.caps))
	for name := range r.caps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
