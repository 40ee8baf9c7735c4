package store

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"github.com/jonboulle/clockwork"

	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/sismos"
)

const (
	// DefaultMaxBackups is the number of backups kept when none is configured.
	DefaultMaxBackups = 5

	backupInfix      = ".backup_"
	backupTimeLayout = "20060102_150405"
)

// FileStore persists a single snapshot file and rotates timestamped backups
// of it in the same directory. It is the only writer of those files.
type FileStore struct {
	path       string
	maxBackups int
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
}

// NewFileStore creates a FileStore for path. If maxBackups is <= 0,
// DefaultMaxBackups is used.
func NewFileStore(path string, maxBackups int, logger *slog.Logger, metrics *observability.Metrics) *FileStore {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &FileStore{
		path:       path,
		maxBackups: maxBackups,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
	}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the snapshot file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the snapshot. It returns nil when the file is missing, is not
// JSON, or matches neither the normalized nor the provider shape. Provider
// shaped content is transformed before it is returned.
func (s *FileStore) Load() *sismos.Collection {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("snapshot file does not exist", "path", s.path)
		} else {
			s.logger.Error("read snapshot failed", "path", s.path, "error", err)
		}
		return nil
	}

	c, err := decodeSnapshot(data)
	if err != nil {
		s.logger.Error("decode snapshot failed", "path", s.path, "error", err)
		return nil
	}
	return c
}

// decodeSnapshot tries the normalized shape first and falls back to the
// provider shape. A normalized document may omit its type tag.
func decodeSnapshot(data []byte) (*sismos.Collection, error) {
	var normalized sismos.Collection
	normErr := json.Unmarshal(data, &normalized)
	if normErr == nil {
		if normalized.Type == "" {
			normalized.Type = sismos.CollectionType
		}
		if normErr = normalized.Validate(); normErr == nil {
			return &normalized, nil
		}
	}

	var raw sismos.RawCollection
	rawErr := json.Unmarshal(data, &raw)
	if rawErr == nil {
		if rawErr = raw.Validate(); rawErr == nil {
			c := sismos.Transform(raw)
			return &c, nil
		}
	}

	return nil, errors.Join(normErr, rawErr)
}

// Save writes c to the snapshot path through a temporary file and a rename,
// so readers never observe a partial file. When backup is set and a snapshot
// already exists it is copied aside first; a failed backup is logged and
// does not stop the save.
func (s *FileStore) Save(c *sismos.Collection, backup bool) error {
	if backup && s.Exists() {
		if _, err := s.createBackup(); err != nil {
			s.logger.Warn("backup failed, saving anyway", "path", s.path, "error", err)
		}
	}

	data, err := encodeSnapshot(c)
	if err != nil {
		s.metrics.SaveErrors.Inc()
		return fmt.Errorf("%w: encode: %w", sismos.ErrPersistence, err)
	}

	// renameio writes a temp file beside the snapshot, fsyncs, then renames it.
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		s.metrics.SaveErrors.Inc()
		s.logger.Error("save snapshot failed", "path", s.path, "error", err)
		return fmt.Errorf("%w: %w", sismos.ErrPersistence, err)
	}

	s.metrics.SnapshotEvents.Set(float64(len(c.Features)))
	s.logger.Info("snapshot saved", "path", s.path, "events", len(c.Features))
	return nil
}

// encodeSnapshot pretty-prints c without escaping non-ASCII or HTML characters.
func encodeSnapshot(c *sismos.Collection) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// createBackup copies the snapshot to <path>.backup_<YYYYMMDD_HHMMSS> and
// then applies retention.
func (s *FileStore) createBackup() (string, error) {
	now := s.clock.Now()
	name := s.path + backupInfix + now.Format(backupTimeLayout)

	if err := copyFile(s.path, name); err != nil {
		return "", err
	}
	// Retention orders by modification time, so stamp the backup with its
	// creation time rather than the snapshot's.
	if err := os.Chtimes(name, now, now); err != nil {
		s.logger.Warn("set backup time failed", "backup", name, "error", err)
	}

	s.metrics.BackupsCreated.Inc()
	s.logger.Info("backup created", "backup", name)

	s.PruneBackups(s.maxBackups)
	return name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	return out.Close()
}

// Backups lists backup files, oldest first by modification time.
func (s *FileStore) Backups() ([]string, error) {
	matches, err := filepath.Glob(globEscape(s.path) + backupInfix + "*")
	if err != nil {
		return nil, err
	}

	type backupFile struct {
		name    string
		modTime time.Time
	}
	files := make([]backupFile, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, backupFile{name: m, modTime: info.ModTime()})
	}
	slices.SortStableFunc(files, func(a, b backupFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// PruneBackups deletes all but the newest maxBackups backups and returns how
// many were removed. Errors are logged, never returned.
func (s *FileStore) PruneBackups(maxBackups int) int {
	if maxBackups < 0 {
		maxBackups = 0
	}

	backups, err := s.Backups()
	if err != nil {
		s.logger.Warn("list backups failed", "path", s.path, "error", err)
		return 0
	}
	if len(backups) <= maxBackups {
		return 0
	}

	removed := 0
	for _, name := range backups[:len(backups)-maxBackups] {
		if err := os.Remove(name); err != nil {
			s.logger.Warn("remove old backup failed", "backup", name, "error", err)
			continue
		}
		removed++
		s.metrics.BackupsPruned.Inc()
		s.logger.Info("old backup removed", "backup", name)
	}
	return removed
}

// globEscape escapes glob metacharacters in a literal path.
func globEscape(path string) string {
	var buf bytes.Buffer
	for _, r := range path {
		switch r {
		case '*', '?', '[', '\\':
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
