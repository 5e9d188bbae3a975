// Copyright 2020, Square, Inc.

package lifecycle

// A Recorder records what the Poller and Controller do, for metrics. The
// metrics package implements it with Prometheus.
type Recorder interface {
	// StatusQueried is called after every status query; err is nil on success.
	StatusQueried(err error)

	// ActionSent is called after every control action on one job.
	ActionSent(action string, err error)

	// Finished is called with the result of every Wait and Apply.
	Finished(r Result)
}

type nopRecorder struct{}

func (nopRecorder) StatusQueried(error)      {}
func (nopRecorder) ActionSent(string, error) {}
func (nopRecorder) Finished(Result)          {}
