package run

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WebForks/comfyui-remote/internal/comfy"
	"github.com/WebForks/comfyui-remote/internal/graph"
	"github.com/WebForks/comfyui-remote/internal/store"
)

const (
	// DefaultPollInterval is the cadence of the long-lived wait loop.
	DefaultPollInterval = 1500 * time.Millisecond
	// DefaultTimeout is the wall-clock ceiling measured from submission.
	DefaultTimeout = 600 * time.Second
)

// Orchestrator drives runs through the
// submitting -> polling -> {done, timed_out, failed} state machine.  The
// long-lived Wait loop and the checkpointed PollOnce variant share the same
// transition function and timeout arithmetic.
type Orchestrator struct {
	client       *comfy.Client
	history      *store.HistoryStore
	pollInterval time.Duration
	timeout      time.Duration
	now          func() time.Time

	mu   sync.Mutex
	runs map[string]*Run
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval overrides the wait-loop poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithTimeout overrides the run deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator builds an orchestrator.  history may be nil, in which case
// finished artifacts are not persisted locally.
func NewOrchestrator(client *comfy.Client, history *store.HistoryStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:       client,
		history:      history,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		now:          time.Now,
		runs:         make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Get returns a registered run by id, or nil.
func (o *Orchestrator) Get(id string) *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[id]
}

// Start uploads the optional input image, compiles the workflow with the
// given parameter overrides and submits it.  On success the run is in
// StatePolling with a remote job id; on failure it is terminal in
// StateFailed and the error is returned as well.
func (o *Orchestrator) Start(ctx context.Context, wf *store.Workflow, p Params) (*Run, error) {
	r := &Run{
		ID:           uuid.New().String(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		ClientID:     uuid.New().String(),
		Params:       p,
		state:        StateSubmitting,
	}
	o.mu.Lock()
	o.runs[r.ID] = r
	o.mu.Unlock()

	g, err := graph.NewGraphFromJSON(wf.Graph)
	if err != nil {
		return r, o.fail(r, fmt.Errorf("workflow graph does not parse: %w", err))
	}
	g.Normalize()

	if len(p.InputImage) > 0 {
		name := p.InputImageName
		if name == "" {
			name = "input.png"
		}
		remote, err := o.client.Upload(ctx, bytes.NewReader(p.InputImage), name)
		if err != nil {
			return r, o.fail(r, err)
		}
		r.Params.InputImageName = remote
		g.InjectInputImage(remote)
	}
	g.InjectPrompts(p.PositivePrompt, p.NegativePrompt)
	g.InjectSampler(p.Seed, p.Steps)

	job, err := graph.Compile(g)
	if err != nil {
		return r, o.fail(r, err)
	}

	promptID, err := o.client.Submit(ctx, job, r.ClientID)
	if err != nil {
		return r, o.fail(r, err)
	}

	r.mu.Lock()
	r.promptID = promptID
	r.startedAt = o.now()
	r.state = StatePolling
	r.mu.Unlock()
	slog.Info("run submitted", "run", r.ID, "job", promptID, "workflow", wf.Name)
	return r, nil
}

// Resume reconstructs a polling run from a persisted job id and start time,
// so the checkpointed variant survives across process or caller lifetimes.
func (o *Orchestrator) Resume(promptID string, startedAt time.Time) *Run {
	r := &Run{
		ID:        uuid.New().String(),
		ClientID:  uuid.New().String(),
		state:     StatePolling,
		promptID:  promptID,
		startedAt: startedAt,
	}
	o.mu.Lock()
	o.runs[r.ID] = r
	o.mu.Unlock()
	return r
}

// PollOnce performs exactly one status check and returns the resulting
// state.  A failed poll attempt is treated as "no result yet", never as a
// run failure; only the deadline terminates a run without an image.
func (o *Orchestrator) PollOnce(ctx context.Context, r *Run) State {
	if s := r.State(); s.Terminal() || s == StateSubmitting {
		return s
	}

	probe, err := o.client.FetchStatus(ctx, r.PromptID())
	if err != nil {
		slog.Warn("poll attempt failed", "run", r.ID, "error", err)
	} else {
		r.mu.Lock()
		if probe.JobHistory != nil {
			r.lastJobHistory = probe.JobHistory
		}
		if probe.FullHistory != nil {
			r.lastFullHistory = probe.FullHistory
		}
		r.mu.Unlock()
		if probe.Image != nil {
			return o.finish(ctx, r, probe.Image)
		}
	}

	if o.now().Sub(r.StartedAt()) > o.timeout {
		r.mu.Lock()
		r.state = StateTimedOut
		r.errDetail = fmt.Sprintf("no result for job %s within %s", r.promptID, o.timeout)
		r.mu.Unlock()
		slog.Warn("run timed out", "run", r.ID, "job", r.PromptID())
		return StateTimedOut
	}
	return StatePolling
}

// Wait drives the run to a terminal state with the long-lived poll loop.
// Waiting is cooperative; cancelling ctx abandons the loop without touching
// the run's state (no cancellation is sent to the backend).
func (o *Orchestrator) Wait(ctx context.Context, r *Run) State {
	for {
		if s := o.PollOnce(ctx, r); s.Terminal() {
			return s
		}
		select {
		case <-ctx.Done():
			return r.State()
		case <-time.After(o.pollInterval):
		}
	}
}

// finish downloads the artifact and persists it with the run metadata.
// Persistence is best-effort: the user-visible result is the image, so a
// store failure does not fail the run.
func (o *Orchestrator) finish(ctx context.Context, r *Run, img *comfy.ImageResult) State {
	res := &Result{
		Image:   img,
		ViewURL: o.client.ViewURL(img),
	}

	artifact, err := o.client.Download(ctx, img)
	if err != nil {
		slog.Warn("artifact download failed, keeping backend reference only", "run", r.ID, "error", err)
	} else if o.history != nil {
		rec, err := o.history.Append(artifact, img.Filename, store.RunMeta{
			PromptID:       r.PromptID(),
			WorkflowID:     r.WorkflowID,
			WorkflowName:   r.WorkflowName,
			PositivePrompt: r.Params.PositivePrompt,
			NegativePrompt: r.Params.NegativePrompt,
			Seed:           r.Params.Seed,
			Steps:          r.Params.Steps,
			InputFilename:  r.Params.InputImageName,
		})
		if err != nil {
			slog.Error("persisting run record failed", "run", r.ID, "error", err)
		} else {
			res.Record = rec
			res.ProxyURL = "/api/images/" + rec.StoredFilename
		}
	}
	if res.ProxyURL == "" {
		res.ProxyURL = "/api/view?" + viewQuery(img)
	}

	r.mu.Lock()
	r.state = StateDone
	r.result = res
	r.mu.Unlock()
	slog.Info("run finished", "run", r.ID, "job", r.PromptID(), "image", img.Filename)
	return StateDone
}

func (o *Orchestrator) fail(r *Run, err error) error {
	r.mu.Lock()
	r.state = StateFailed
	r.errDetail = err.Error()
	r.mu.Unlock()
	slog.Error("run failed", "run", r.ID, "error", err)
	return err
}

func viewQuery(img *comfy.ImageResult) string {
	params := url.Values{}
	params.Add("filename", img.Filename)
	params.Add("subfolder", img.Subfolder)
	params.Add("type", img.Type)
	return params.Encode()
}
