// Package verifier decides whether a completed activity satisfies its
// activity. Each activity type is bound to one verifier at startup.
//
// A verifier is either Synchronous, answering on every read, or TwoPhase,
// where an explicit start submits a claim and a later finish collects the
// outcome.
package verifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
	"earlyadopters/internal/oracle"
)

// Subject is everything a verifier may look at.
type Subject struct {
	ProjectID     int64
	ActivityIndex int
	ActivityType  string
	DetailURI     string
	CompletionID  string
	Author        string
	Content       string
}

// Claim identifies a started two-phase verification.
type Claim struct {
	ID        string
	Statement string
}

// Resolution is the outcome of polling a claim. Accepted is meaningful only
// when Settled is true.
type Resolution struct {
	Settled  bool
	Accepted bool
}

type Verifier interface {
	Name() string
}

type Synchronous interface {
	Verifier
	Verify(ctx context.Context, s Subject) (bool, error)
}

type TwoPhase interface {
	Verifier
	Start(ctx context.Context, s Subject) (Claim, error)
	Finish(ctx context.Context, c Claim) (Resolution, error)
}

// Registry maps activity types to verifiers.
type Registry struct {
	byType map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]Verifier)}
}

// Register binds activityType to v. A type can be bound once.
func (r *Registry) Register(activityType string, v Verifier) error {
	activityType = strings.TrimSpace(activityType)
	if activityType == "" {
		return fmt.Errorf("activity type is required")
	}
	if v == nil {
		return fmt.Errorf("verifier for %s is nil", activityType)
	}
	_, sync := v.(Synchronous)
	_, twoPhase := v.(TwoPhase)
	if !sync && !twoPhase {
		return fmt.Errorf("verifier %s for %s implements neither Synchronous nor TwoPhase", v.Name(), activityType)
	}
	if _, exists := r.byType[activityType]; exists {
		return fmt.Errorf("activity type %s already registered", activityType)
	}
	r.byType[activityType] = v
	return nil
}

func (r *Registry) Lookup(activityType string) (Verifier, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.byType[activityType]
	return v, ok
}

// Types returns the registered activity types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FromConfig builds the registry described by the verifiers section.
// oc may be nil when no oracle verifier is configured.
func FromConfig(cfg map[string]config.VerifierConfig, store content.Store, oc oracle.Client) (*Registry, error) {
	reg := NewRegistry()
	types := make([]string, 0, len(cfg))
	for t := range cfg {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		vc := cfg[t]
		var v Verifier
		switch vc.Kind {
		case config.VerifierContent:
			cv, err := NewContentVerifier(vc.Mode, store)
			if err != nil {
				return nil, fmt.Errorf("verifier %s: %w", t, err)
			}
			v = cv
		case config.VerifierOracle:
			if oc == nil {
				return nil, fmt.Errorf("verifier %s: oracle client not configured", t)
			}
			v = NewOracleVerifier(vc.Statement, store, oc)
		default:
			return nil, fmt.Errorf("verifier %s: unknown kind %q", t, vc.Kind)
		}
		if err := reg.Register(t, v); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
