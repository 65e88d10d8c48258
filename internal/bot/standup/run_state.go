package standup

import (
	"fmt"
	"slices"
	"sync"
)

type RunState int

const (
	RunIdle RunState = iota
	RunInitializing
	RunAwaitingResponses
	RunSummarizing
	RunDone
	RunFailed
)

var runStateNames = [...]string{
	RunIdle:              "idle",
	RunInitializing:      "initializing",
	RunAwaitingResponses: "awaiting_responses",
	RunSummarizing:       "summarizing",
	RunDone:              "done",
	RunFailed:            "failed",
}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return fmt.Sprintf("run_state(%d)", int(s))
	}
	return runStateNames[s]
}

func (s RunState) Terminal() bool {
	return s == RunDone || s == RunFailed
}

func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var runTransitions = map[RunState][]RunState{
	RunIdle:              {RunInitializing},
	RunInitializing:      {RunAwaitingResponses},
	RunAwaitingResponses: {RunSummarizing},
	RunSummarizing:       {RunDone},
}

type runMachine struct {
	mu    sync.Mutex
	state RunState
	err   error
}

func (m *runMachine) current() (RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

// advance moves from -> to only if the machine is currently in from.
func (m *runMachine) advance(from, to RunState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from || !slices.Contains(runTransitions[from], to) {
		return false
	}
	m.state = to
	return true
}

func (m *runMachine) fail(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Terminal() {
		return false
	}
	m.state = RunFailed
	m.err = err
	return true
}
