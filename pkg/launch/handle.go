package launch

import (
	"sync"
)

// State is the lifecycle of one launch job.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// HostResult is the outcome of the create-and-start call on one target
// host. Hosts fail independently; one bad host never aborts the rest.
type HostResult struct {
	HostID string `json:"host"`
	Error  string `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of a launch.
type Status struct {
	ID         string       `json:"id"`
	Deployment string       `json:"deployment"`
	State      State        `json:"state"`
	Hosts      []HostResult `json:"hosts,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Handle is the pollable result of a launch. The triggering caller gets it
// back immediately; the work itself runs on the launcher pool.
type Handle struct {
	id         string
	deployment string

	mu    sync.Mutex
	state State
	hosts []HostResult
	err   error
	done  chan struct{}
}

func newHandle(id, deployment string) *Handle {
	return &Handle{
		id:         id,
		deployment: deployment,
		state:      StatePending,
		done:       make(chan struct{}),
	}
}

// ID returns the launch id.
func (h *Handle) ID() string {
	return h.id
}

// Done returns a channel closed when the launch has finished, successfully
// or not.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the launch-level failure, if any. Per-host failures do not
// fail the launch; they are reported in Status.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Status returns a snapshot of the launch.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := Status{
		ID:         h.id,
		Deployment: h.deployment,
		State:      h.state,
		Hosts:      append([]HostResult(nil), h.hosts...),
	}
	if h.err != nil {
		status.Error = h.err.Error()
	}
	return status
}

func (h *Handle) setState(state State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

func (h *Handle) addHostResult(result HostResult) {
	h.mu.Lock()
	h.hosts = append(h.hosts, result)
	h.mu.Unlock()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	if err != nil {
		h.state = StateFailed
	} else {
		h.state = StateComplete
	}
	h.mu.Unlock()
	close(h.done)
}
