package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunRecord is the persisted metadata of one completed run.  It is created
// only when a run finishes with an image and removed only as a whole record
// (together with its artifact file).
type RunRecord struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	PromptID         string    `json:"prompt_id"`
	WorkflowID       string    `json:"workflow_id"`
	WorkflowName     string    `json:"workflow_name"`
	PositivePrompt   string    `json:"positive_prompt"`
	NegativePrompt   string    `json:"negative_prompt"`
	Seed             int64     `json:"seed"`
	Steps            int       `json:"steps"`
	InputFilename    string    `json:"input_filename,omitempty"`
}

// RunMeta is the caller-supplied part of a RunRecord.
type RunMeta struct {
	PromptID       string
	WorkflowID     string
	WorkflowName   string
	PositivePrompt string
	NegativePrompt string
	Seed           int64
	Steps          int
	InputFilename  string
}

// HistoryStore persists completed run artifacts and their metadata: a
// history.json index next to an images/ directory holding the artifact
// files.
type HistoryStore struct {
	path     string
	imageDir string
	mu       sync.Mutex
}

// NewHistoryStore opens (or creates) the store under dir.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	imageDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, err
	}
	return &HistoryStore{
		path:     filepath.Join(dir, "history.json"),
		imageDir: imageDir,
	}, nil
}

// Append stores the artifact bytes under a fresh unique filename and
// prepends a new RunRecord to the index.  Each run gets its own artifact
// file; concurrent runs never share filenames.
func (s *HistoryStore) Append(artifact []byte, originalFilename string, meta RunMeta) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ext := filepath.Ext(originalFilename)
	if ext == "" {
		ext = ".png"
	}
	stored := id + ext

	if err := os.WriteFile(filepath.Join(s.imageDir, stored), artifact, 0o644); err != nil {
		return nil, err
	}

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	rec := RunRecord{
		ID:               id,
		CreatedAt:        time.Now().UTC(),
		OriginalFilename: originalFilename,
		StoredFilename:   stored,
		PromptID:         meta.PromptID,
		WorkflowID:       meta.WorkflowID,
		WorkflowName:     meta.WorkflowName,
		PositivePrompt:   meta.PositivePrompt,
		NegativePrompt:   meta.NegativePrompt,
		Seed:             meta.Seed,
		Steps:            meta.Steps,
		InputFilename:    meta.InputFilename,
	}
	records = append([]RunRecord{rec}, records...)
	if err := s.save(records); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all run records, newest first.
func (s *HistoryStore) List() ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Delete removes a record and its artifact file.
func (s *HistoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		stored := records[i].StoredFilename
		records = append(records[:i], records[i+1:]...)
		if err := s.save(records); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(s.imageDir, stored)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return ErrNotFound
}

// ImagePath resolves a stored filename to its on-disk path.  Names that
// would escape the images directory are rejected.
func (s *HistoryStore) ImagePath(storedFilename string) (string, error) {
	if storedFilename == "" || strings.Contains(storedFilename, "/") || strings.Contains(storedFilename, "\\") || strings.Contains(storedFilename, "..") {
		return "", errors.New("invalid image filename")
	}
	path := filepath.Join(s.imageDir, storedFilename)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func (s *HistoryStore) load() ([]RunRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []RunRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	records := []RunRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt history store %s: %w", s.path, err)
	}
	return records, nil
}

func (s *HistoryStore) save(records []RunRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
