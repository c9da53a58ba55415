package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserRegistered() {}
func (n *NoopRecorder) IncLoginSucceeded() {}
func (n *NoopRecorder) IncLoginFailed()    {}
func (n *NoopRecorder) IncAuthRejected()   {}
func (n *NoopRecorder) IncNoteCreated()    {}
func (n *NoopRecorder) IncNoteUpdated()    {}
func (n *NoopRecorder) IncNoteDeleted()    {}
func (n *NoopRecorder) IncRateLimited()    {}

func (n *NoopRecorder) ObserveRequestDuration(duration time.Duration) {}
