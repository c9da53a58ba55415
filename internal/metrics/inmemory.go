package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered        uint64
	LoginsSucceeded        uint64
	LoginsFailed           uint64
	AuthRejected           uint64
	NotesCreated           uint64
	NotesUpdated           uint64
	NotesDeleted           uint64
	RateLimited            uint64
	RequestDurationCount   uint64
	RequestDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
// It backs the /metrics endpoint and is safe for concurrent use.
type InMemoryRecorder struct {
	usersRegistered        atomic.Uint64
	loginsSucceeded        atomic.Uint64
	loginsFailed           atomic.Uint64
	authRejected           atomic.Uint64
	notesCreated           atomic.Uint64
	notesUpdated           atomic.Uint64
	notesDeleted           atomic.Uint64
	rateLimited            atomic.Uint64
	requestDurationCount   atomic.Uint64
	requestDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:        m.usersRegistered.Load(),
		LoginsSucceeded:        m.loginsSucceeded.Load(),
		LoginsFailed:           m.loginsFailed.Load(),
		AuthRejected:           m.authRejected.Load(),
		NotesCreated:           m.notesCreated.Load(),
		NotesUpdated:           m.notesUpdated.Load(),
		NotesDeleted:           m.notesDeleted.Load(),
		RateLimited:            m.rateLimited.Load(),
		RequestDurationCount:   m.requestDurationCount.Load(),
		RequestDurationTotalNs: m.requestDurationTotalNs.Load(),
	}
}

func (m *InMemoryRecorder) IncUserRegistered() { m.usersRegistered.Add(1) }
func (m *InMemoryRecorder) IncLoginSucceeded() { m.loginsSucceeded.Add(1) }
func (m *InMemoryRecorder) IncLoginFailed()    { m.loginsFailed.Add(1) }
func (m *InMemoryRecorder) IncAuthRejected()   { m.authRejected.Add(1) }
func (m *InMemoryRecorder) IncNoteCreated()    { m.notesCreated.Add(1) }
func (m *InMemoryRecorder) IncNoteUpdated()    { m.notesUpdated.Add(1) }
func (m *InMemoryRecorder) IncNoteDeleted()    { m.notesDeleted.Add(1) }
func (m *InMemoryRecorder) IncRateLimited()    { m.rateLimited.Add(1) }

// ObserveRequestDuration records the duration of one HTTP request.
func (m *InMemoryRecorder) ObserveRequestDuration(duration time.Duration) {
	m.requestDurationCount.Add(1)
	m.requestDurationTotalNs.Add(duration.Nanoseconds())
}
