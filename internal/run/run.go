package run

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/WebForks/comfyui-remote/internal/comfy"
	"github.com/WebForks/comfyui-remote/internal/store"
)

// State is the lifecycle state of a run.
type State string

const (
	// StateSubmitting covers upload, compilation and job submission.
	StateSubmitting State = "submitting"
	// StatePolling means the job was accepted and we are waiting for an
	// image to appear in the backend's history.
	StatePolling State = "polling"
	// StateDone is terminal: an image was found and downloaded.
	StateDone State = "done"
	// StateTimedOut is terminal: no image appeared before the deadline.
	StateTimedOut State = "timed_out"
	// StateFailed is terminal: upload or submission failed.
	StateFailed State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateTimedOut || s == StateFailed
}

// Params are the run-time parameter overrides substituted into the workflow
// before compilation.
type Params struct {
	PositivePrompt string
	NegativePrompt string
	Seed           int64 // negative keeps the workflow's own seed
	Steps          int   // zero keeps the workflow's own step count
	InputImageName string
	InputImage     []byte
}

// Result is what a finished run hands back to the caller.
type Result struct {
	Image *comfy.ImageResult
	// ProxyURL is a same-origin reference served by this proxy.
	ProxyURL string
	// ViewURL is the direct reference on the render backend.
	ViewURL string
	// Record is the persisted history entry; nil when persistence failed
	// (the run is still Done, the user-visible result is the image).
	Record *store.RunRecord
}

// Run is one submission-to-artifact cycle.  It is safe for concurrent
// status reads while the orchestrator advances it.
type Run struct {
	ID           string
	WorkflowID   string
	WorkflowName string
	ClientID     string
	Params       Params

	mu        sync.Mutex
	state     State
	promptID  string
	startedAt time.Time
	errDetail string
	result    *Result

	// last-seen poll payloads, surfaced on timeout for diagnostics
	lastJobHistory  json.RawMessage
	lastFullHistory json.RawMessage
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PromptID returns the remote job id, empty until submission succeeded.
func (r *Run) PromptID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promptID
}

// StartedAt returns the submission timestamp the timeout is measured from.
func (r *Run) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// Result returns the finished result, nil before StateDone.
func (r *Run) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// ErrDetail returns the human-readable failure or timeout detail.
func (r *Run) ErrDetail() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errDetail
}

// LastHistories returns the most recent raw poll payloads.
func (r *Run) LastHistories() (jobHistory, fullHistory json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastJobHistory, r.lastFullHistory
}
