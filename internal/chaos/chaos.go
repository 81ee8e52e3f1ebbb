// Package chaos injects journal faults and runs experiments that check the
// request lifecycle keeps its invariants while the journal misbehaves.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"bloodlink/pkg/eventstore"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInjected is returned by a FaultyStore append that was chosen to fail.
var ErrInjected = errors.New("chaos: injected journal failure")

// Fault describes what a FaultyStore does to appends while enabled.
type Fault struct {
	FailureRate float64 // 0.0 to 1.0
	Latency     time.Duration
}

// FaultyStore wraps a journal and, while a fault is active, delays appends
// and fails a share of them before they reach the wrapped store.
type FaultyStore struct {
	next eventstore.Store

	mu     sync.Mutex
	fault  *Fault
	rng    *rand.Rand
	failed int
}

func NewFaultyStore(next eventstore.Store, seed uint64) *FaultyStore {
	return &FaultyStore{next: next, rng: rand.New(rand.NewPCG(seed, seed))}
}

// Inject activates f until Clear is called.
func (s *FaultyStore) Inject(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = &f
}

func (s *FaultyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = nil
}

// Failed returns how many appends were failed on purpose.
func (s *FaultyStore) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *FaultyStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error {
	s.mu.Lock()
	var latency time.Duration
	fail := false
	if s.fault != nil {
		latency = s.fault.Latency
		fail = s.rng.Float64() < s.fault.FailureRate
		if fail {
			s.failed++
		}
	}
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		trace.SpanFromContext(ctx).AddEvent("chaos.injected_failure")
		return ErrInjected
	}
	return s.next.AppendEvents(ctx, aggregateID, aggregateType, expectedVersion, events)
}

func (s *FaultyStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]eventstore.Event, error) {
	return s.next.LoadEvents(ctx, aggregateID, fromVersion, toVersion)
}

// Experiment is one hypothesis checked under injected faults.
type Experiment struct {
	Name       string
	Hypothesis string
	// Inject starts the fault; Rollback removes it. Workload runs in between.
	Inject     func(context.Context) error
	Workload   func(context.Context) error
	Rollback   func(context.Context) error
	Assertions []Assertion
}

// Assertion is evaluated after rollback; a non-nil error is a violation.
type Assertion struct {
	Name  string
	Check func(context.Context) error
}

type Violation struct {
	Assertion string `json:"assertion"`
	Error     string `json:"error"`
}

type Result struct {
	Experiment     string        `json:"experiment"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
	HypothesisHeld bool          `json:"hypothesis_held"`
	WorkloadError  string        `json:"workload_error,omitempty"`
	Violations     []Violation   `json:"violations"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	mu      sync.Mutex
	results []Result
}

func NewEngine() *Engine {
	return &Engine{tracer: otel.Tracer("bloodlink/chaos")}
}

// Run executes exp: inject, workload, rollback, then assertions. Rollback
// runs even when the workload fails.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{Experiment: exp.Name, StartTime: time.Now(), Violations: make([]Violation, 0)}

	span.AddEvent("injecting_chaos")
	if exp.Inject != nil {
		if err := exp.Inject(ctx); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("inject %s: %w", exp.Name, err)
		}
	}

	span.AddEvent("running_workload")
	if exp.Workload != nil {
		if err := exp.Workload(ctx); err != nil {
			result.WorkloadError = err.Error()
		}
	}

	span.AddEvent("rolling_back")
	if exp.Rollback != nil {
		if err := exp.Rollback(ctx); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("rollback %s: %w", exp.Name, err)
		}
	}

	span.AddEvent("validating_assertions")
	for _, a := range exp.Assertions {
		if err := a.Check(ctx); err != nil {
			result.Violations = append(result.Violations, Violation{Assertion: a.Name, Error: err.Error()})
		}
	}
	result.HypothesisHeld = len(result.Violations) == 0
	result.Duration = time.Since(result.StartTime)

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()
	return result, nil
}

// Results returns a copy of every result recorded so far.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}
