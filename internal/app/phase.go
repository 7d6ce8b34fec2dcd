package app

import "sync"

// Phase is the step of the trading cycle the driver is in.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLoadConfig    Phase = "load_config"
	PhaseFetchBalances Phase = "fetch_balances"
	PhaseFetchTicker   Phase = "fetch_ticker"
	PhaseReconcile     Phase = "reconcile"
	PhaseStrategies    Phase = "strategies"
	PhaseSleep         Phase = "sleep"
)

type PhaseMachine struct {
	mu    sync.Mutex
	phase Phase
}

func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{phase: PhaseIdle}
}

// Advance moves to next if the cycle allows it and returns the resulting
// phase. Any phase may fall through to sleep.
func (m *PhaseMachine) Advance(next Phase) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if allowed(m.phase, next) {
		m.phase = next
	}
	return m.phase
}

func (m *PhaseMachine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func allowed(current, next Phase) bool {
	if next == PhaseSleep {
		return current != PhaseSleep
	}
	switch current {
	case PhaseIdle, PhaseSleep:
		return next == PhaseLoadConfig
	case PhaseLoadConfig:
		return next == PhaseFetchBalances
	case PhaseFetchBalances:
		return next == PhaseFetchTicker
	case PhaseFetchTicker:
		return next == PhaseReconcile || next == PhaseStrategies
	case PhaseReconcile:
		return next == PhaseStrategies
	}
	return false
}
