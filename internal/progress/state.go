package progress

import "sync"

// Snapshot is a point-in-time copy of a run's processing state.
type Snapshot struct {
	IsProcessing bool    `json:"is_processing"`
	Progress     float64 `json:"progress"`
	Message      string  `json:"message"`
	Error        string  `json:"error,omitempty"`
}

// State tracks one run at a time. The zero value is idle with no error.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Begin resets the state for a new run and marks it as processing.
func (s *State) Begin(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{IsProcessing: true, Message: message}
}

// Report implements Reporter. Reports outside a run are ignored.
func (s *State) Report(percent float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.IsProcessing {
		return
	}
	s.snap.Progress = Clamp(percent)
	s.snap.Message = message
}

// Fail records msg as the run's error and returns to idle.
func (s *State) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsProcessing = false
	s.snap.Error = msg
}

// Finish marks the run complete and returns to idle.
func (s *State) Finish(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsProcessing = false
	s.snap.Progress = 100
	s.snap.Message = message
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
