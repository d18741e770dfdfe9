// Package phaseMarker tracks which settlement phase last started or finished.
package phaseMarker

import (
	"context"
	"fmt"
	"sync"
)

type Phase string

const (
	Phase_Step1Start Phase = "STEP1_START"
	Phase_Step1End   Phase = "STEP1_END"
	Phase_Step2Start Phase = "STEP2_START"
	Phase_Step2End   Phase = "STEP2_END"
	Phase_Step3Start Phase = "STEP3_START"
	Phase_Step3End   Phase = "STEP3_END"
)

// InitialPhase is the marker of a pipeline that has never run.
const InitialPhase = Phase_Step3End

var validPhases = map[Phase]struct{}{
	Phase_Step1Start: {},
	Phase_Step1End:   {},
	Phase_Step2Start: {},
	Phase_Step2End:   {},
	Phase_Step3Start: {},
	Phase_Step3End:   {},
}

func (p Phase) String() string {
	return string(p)
}

func ParsePhase(s string) (Phase, error) {
	if _, ok := validPhases[Phase(s)]; !ok {
		return "", fmt.Errorf("unknown phase '%s'", s)
	}
	return Phase(s), nil
}

// Tracker stores the current phase. CompareAndSwap is the only way a phase may be claimed.
type Tracker interface {
	Get(ctx context.Context) (Phase, error)
	// CompareAndSwap sets next only if the current phase is expected and reports whether it did.
	CompareAndSwap(ctx context.Context, expected Phase, next Phase) (bool, error)
	// Set overwrites the phase unconditionally. Used by operators to unstick a pipeline.
	Set(ctx context.Context, phase Phase) error
}

type InMemoryTracker struct {
	mu    sync.Mutex
	phase Phase
}

func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{phase: InitialPhase}
}

func (t *InMemoryTracker) Get(ctx context.Context) (Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase, nil
}

func (t *InMemoryTracker) CompareAndSwap(ctx context.Context, expected Phase, next Phase) (bool, error) {
	if _, err := ParsePhase(string(next)); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != expected {
		return false, nil
	}
	t.phase = next
	return true, nil
}

func (t *InMemoryTracker) Set(ctx context.Context, phase Phase) error {
	if _, err := ParsePhase(string(phase)); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	return nil
}
