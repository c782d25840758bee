package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a workflow or run record id does not exist.
var ErrNotFound = errors.New("not found")

// Workflow is one imported workflow graph.  Graph holds the raw exported
// JSON untouched; it is only parsed (into a working copy) when a run starts.
type Workflow struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Graph     json.RawMessage `json:"graph"`
}

// WorkflowStore keeps imported workflows in a single JSON file.  Writers are
// serialized by the store's mutex; writes go through a temp file + rename so
// a crash never leaves a half-written file.
type WorkflowStore struct {
	path string
	mu   sync.Mutex
}

// NewWorkflowStore opens (or creates) the store at dir/workflows.json.
func NewWorkflowStore(dir string) (*WorkflowStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &WorkflowStore{path: filepath.Join(dir, "workflows.json")}, nil
}

// ReadAll returns every stored workflow.
func (s *WorkflowStore) ReadAll() ([]Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the workflow with the given id.
func (s *WorkflowStore) Get(id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wfs, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range wfs {
		if wfs[i].ID == id {
			return &wfs[i], nil
		}
	}
	return nil, ErrNotFound
}

// Import stores a new workflow under a fresh id.
func (s *WorkflowStore) Import(name string, graph json.RawMessage) (*Workflow, error) {
	if !json.Valid(graph) {
		return nil, errors.New("workflow graph is not valid JSON")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wfs, err := s.load()
	if err != nil {
		return nil, err
	}
	wf := Workflow{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Graph:     graph,
	}
	wfs = append(wfs, wf)
	if err := s.save(wfs); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Rename changes a workflow's display name.
func (s *WorkflowStore) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wfs, err := s.load()
	if err != nil {
		return err
	}
	for i := range wfs {
		if wfs[i].ID == id {
			wfs[i].Name = name
			return s.save(wfs)
		}
	}
	return ErrNotFound
}

// Delete removes a workflow.
func (s *WorkflowStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wfs, err := s.load()
	if err != nil {
		return err
	}
	for i := range wfs {
		if wfs[i].ID == id {
			wfs = append(wfs[:i], wfs[i+1:]...)
			return s.save(wfs)
		}
	}
	return ErrNotFound
}

func (s *WorkflowStore) load() ([]Workflow, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Workflow{}, nil
	}
	if err != nil {
		return nil, err
	}
	wfs := []Workflow{}
	if err := json.Unmarshal(data, &wfs); err != nil {
		return nil, fmt.Errorf("corrupt workflow store %s: %w", s.path, err)
	}
	return wfs, nil
}

func (s *WorkflowStore) save(wfs []Workflow) error {
	data, err := json.MarshalIndent(wfs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
