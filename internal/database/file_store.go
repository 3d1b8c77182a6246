package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// FileStore keeps every record in a single JSON array on local disk.
// Appends rewrite the whole file under a process-wide mutex.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *observability.Logger
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string, logger *observability.Logger) *FileStore {
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load returns all records in file order. A missing or unparsable file yields an empty list.
func (s *FileStore) Load(ctx context.Context) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "FileStore.Load", attribute.String("file.path", s.path))
	defer observability.FinishSpan(span, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.loadLocked(ctx)
	return records, err
}

// Append adds rec to the end of the file
func (s *FileStore) Append(ctx context.Context, rec models.FeedbackRecord) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "FileStore.Append", attribute.String("file.path", s.path))
	defer observability.FinishSpan(span, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, corrupt, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if corrupt {
		// Keep the unreadable content for inspection instead of overwriting it
		aside := s.path + ".corrupt"
		if err := os.Rename(s.path, aside); err != nil {
			s.logger.Warn(ctx, "Failed to move corrupt feedback file aside", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		} else {
			s.logger.Warn(ctx, "Moved corrupt feedback file aside", map[string]interface{}{
				"path":  s.path,
				"moved": aside,
			})
		}
	}

	records = append(records, rec)
	return s.writeLocked(records)
}

// EnsureExists creates the file holding an empty array if it does not exist yet
func (s *FileStore) EnsureExists(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to stat %s: %v", s.path, err)
	}

	s.logger.Info(ctx, "Initializing feedback file", map[string]interface{}{"path": s.path})
	return s.writeLocked([]models.FeedbackRecord{})
}

// loadLocked reads the file. corrupt is true when the file exists but is not a JSON array of records.
func (s *FileStore) loadLocked(ctx context.Context) (records []models.FeedbackRecord, corrupt bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.FeedbackRecord{}, false, nil
	}
	if err != nil {
		return nil, false, contextutils.WrapErrorf(contextutils.ErrStorageReadFailed, "failed to read %s: %v", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []models.FeedbackRecord{}, false, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn(ctx, "Feedback file is not valid JSON, treating as empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return []models.FeedbackRecord{}, true, nil
	}
	if records == nil {
		records = []models.FeedbackRecord{}
	}
	return records, false, nil
}

// writeLocked replaces the file atomically: the data goes to a temp file in the same directory
// which is then renamed over the target.
func (s *FileStore) writeLocked(records []models.FeedbackRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to encode feedback: %v", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to create temp file in %s: %v", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to write %s: %v", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to sync %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to close %s: %v", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to chmod %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to replace %s: %v", s.path, err)
	}
	return nil
}
