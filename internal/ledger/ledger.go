package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kursadbilgin/push-relay/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Ledger is the in-memory notification collection mirrored to a single JSON file.
// Every mutation rewrites the whole file.
type Ledger struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	records []domain.Notification
}

// Open prepares the backing file and loads whatever it holds. Only configuration
// problems are returned; unreadable content degrades to an empty ledger.
func Open(fs afero.Fs, path string, logger *zap.Logger) (*Ledger, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("%w: ledger path is required", domain.ErrStorageConfiguration)
	}

	l := &Ledger{
		fs:     fs,
		path:   trimmedPath,
		logger: logger.With(zap.String("ledgerPath", trimmedPath)),
	}

	if err := l.ensureStoreExists(); err != nil {
		return nil, err
	}

	l.records = l.load()
	return l, nil
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) ensureStoreExists() error {
	if dir := filepath.Dir(l.path); dir != "." && dir != "" {
		if err := l.fs.MkdirAll(dir, dirPerm); err != nil {
			return &domain.StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	info, err := l.fs.Stat(l.path)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("%w: %s is a directory", domain.ErrStorageConfiguration, l.path)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return &domain.StorageError{Op: "stat", Path: l.path, Err: err}
	}

	if err := afero.WriteFile(l.fs, l.path, []byte("[]"), filePerm); err != nil {
		return &domain.StorageError{Op: "init", Path: l.path, Err: err}
	}
	return nil
}

func (l *Ledger) load() []domain.Notification {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		l.logger.Error("failed to read ledger, starting empty", zap.Error(err))
		return []domain.Notification{}
	}

	var records []domain.Notification
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		if err != nil {
			l.logger.Warn("ledger content is not a notification list, starting empty", zap.Error(err))
		}
		return []domain.Notification{}
	}

	return records
}

// persistLocked overwrites the file with the full in-memory collection. Callers
// hold the write lock so concurrent mutations cannot interleave their writes.
func (l *Ledger) persistLocked() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Path: l.path, Err: err}
	}

	if err := afero.WriteFile(l.fs, l.path, data, filePerm); err != nil {
		return &domain.StorageError{Op: "write", Path: l.path, Err: err}
	}
	return nil
}

// Append adds the record and persists. The record stays in memory even when the
// returned error reports a failed write.
func (l *Ledger) Append(n domain.Notification) (domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, n.Clone())
	return n.Clone(), l.persistLocked()
}

// List returns the recipient's records, most recent first.
func (l *Ledger) List(recipient string) []domain.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]domain.Notification, 0)
	for i := range l.records {
		if l.records[i].Recipient == recipient {
			matched = append(matched, l.records[i].Clone())
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return matched
}

func (l *Ledger) GetByID(id string) (domain.Notification, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.indexOfLocked(id)
	if idx < 0 {
		return domain.Notification{}, domain.ErrNotFound
	}
	return l.records[idx].Clone(), nil
}

// MarkRead sets the read flag. Calling it again on a read record is a no-op write.
func (l *Ledger) MarkRead(id string) (domain.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(id)
	if idx < 0 {
		return domain.Notification{}, domain.ErrNotFound
	}

	l.records[idx].Read = true
	return l.records[idx].Clone(), l.persistLocked()
}

// Delete removes the record. Unknown ids report false and leave the ledger untouched.
func (l *Ledger) Delete(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(id)
	if idx < 0 {
		return false, nil
	}

	l.records = append(l.records[:idx], l.records[idx+1:]...)
	return true, l.persistLocked()
}

func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = []domain.Notification{}
	return l.persistLocked()
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Check reports whether the backing file is still reachable.
func (l *Ledger) Check() error {
	info, err := l.fs.Stat(l.path)
	if err != nil {
		return &domain.StorageError{Op: "stat", Path: l.path, Err: err}
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrStorageConfiguration, l.path)
	}
	return nil
}

func (l *Ledger) indexOfLocked(id string) int {
	for i := range l.records {
		if l.records[i].ID == id {
			return i
		}
	}
	return -1
}
