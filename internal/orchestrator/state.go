package orchestrator

import (
	"sync"

	"github.com/valpere/translateme/internal"
)

// Snapshot is an immutable view of the coordinator state.
type Snapshot struct {
	Records []internal.TranslationRecord
	Loading bool
	Display string
}

// State owns the record list mirrored from the store, the loading flag and
// the text last shown to the user. Observers are notified one at a time, in
// order, with the state current at delivery. Observers may call Snapshot but
// nothing else on State.
type State struct {
	mu       sync.Mutex
	records  []internal.TranslationRecord
	inflight int
	display  string
	latest   uint64

	notifyMu  sync.Mutex
	observers map[int]func(Snapshot)
	nextID    int
}

func NewState() *State {
	return &State{observers: make(map[int]func(Snapshot))}
}

// Start marks the beginning of a translate call.
func (s *State) Start() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	s.publish()
}

// Done marks the end of a translate call.
func (s *State) Done() {
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
	s.publish()
}

// SetRecords replaces the mirrored record list.
func (s *State) SetRecords(records []internal.TranslationRecord) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	s.publish()
}

// NextGeneration starts a new request and returns its generation. Only the
// latest generation may replace the display text.
func (s *State) NextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// SetDisplayIf replaces the display text when gen is still the latest
// generation and reports whether it did.
func (s *State) SetDisplayIf(gen uint64, text string) bool {
	s.mu.Lock()
	if gen != s.latest {
		s.mu.Unlock()
		return false
	}
	s.display = text
	s.mu.Unlock()
	s.publish()
	return true
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]internal.TranslationRecord, len(s.records))
	copy(records, s.records)
	return Snapshot{
		Records: records,
		Loading: s.inflight > 0,
		Display: s.display,
	}
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.observers, id)
			s.notifyMu.Unlock()
		})
	}
}

func (s *State) publish() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.observers {
		fn(snap)
	}
}
