// Package storage persists the most recent availability snapshot to a JSON file.
//
// Storage keeps exactly one snapshot: every Save overwrites the previous one.
// Writes are atomic (temp file + rename) and neither Load nor Save ever returns
// an error to the caller. A failed read degrades to "no prior data" and a
// failed write only costs the next cycle its baseline.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

const (
	defaultFilePermissions os.FileMode = 0o644
	defaultDirPermissions  os.FileMode = 0o755
)

// FileStore reads and writes the latest snapshot as {section: {date: remaining}}.
type FileStore struct {
	mu sync.Mutex

	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// New creates a FileStore persisting to filePath.
// If filePath is empty, uses OS-appropriate tmp directory
func New(filePath string) *FileStore {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "permit-checker", "previous_permits.json")
	}

	return &FileStore{
		filePath:        filePath,
		filePermissions: defaultFilePermissions,
		dirPermissions:  defaultDirPermissions,
	}
}

// Path returns the file the store persists to.
func (s *FileStore) Path() string {
	return s.filePath
}

// Load returns the last persisted snapshot, or an empty snapshot when none
// exists or the persisted data cannot be parsed.
func (s *FileStore) Load() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("No previous data file found at %s, starting fresh", s.filePath)
		} else {
			logger.Error("Error reading previous data from %s: %v", s.filePath, err)
		}
		return models.Snapshot{}
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(jsonData, &snapshot); err != nil {
		logger.Error("Error parsing previous data from %s: %v", s.filePath, err)
		return models.Snapshot{}
	}
	if snapshot == nil {
		// A literal "null" file.
		return models.Snapshot{}
	}

	// Sections stored as null come back as nil maps; normalize them so callers
	// can treat the section as present with no observed dates.
	for name, dates := range snapshot {
		if dates == nil {
			snapshot[name] = models.DateAvailability{}
		}
	}

	if err := snapshot.Validate(); err != nil {
		logger.Error("Discarding invalid previous data from %s: %v", s.filePath, err)
		return models.Snapshot{}
	}

	logger.Info("Successfully loaded data from %s (%d sections)", s.filePath, len(snapshot))
	return snapshot
}

// Save persists the snapshot, overwriting any prior one. Failures are logged only.
func (s *FileStore) Save(snapshot models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot == nil {
		snapshot = models.Snapshot{}
	}

	// Create data directory if needed
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		logger.Error("Error saving data: failed to create data directory: %v", err)
		return
	}

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		logger.Error("Error saving data: failed to marshal snapshot: %v", err)
		return
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePermissions); err != nil {
		logger.Error("Error saving data: failed to write file: %v", err)
		return
	}

	// Rename temp file to actual file
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		logger.Error("Error saving data: failed to rename file: %v", err)
		return
	}

	logger.Info("Successfully saved data to %s", s.filePath)
}
