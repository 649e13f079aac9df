// Package lock guards a backend working directory against concurrent runs
// with an exclusively created lock file.
package lock

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Info is the lock file content.
type Info struct {
	PID      int       `json:"pid"`
	RunID    string    `json:"run_id"`
	Host     string    `json:"host,omitempty"`
	Acquired time.Time `json:"acquired"`
}

// Lock is a held lock file.
type Lock struct {
	path string
	once sync.Once
	err  error
}

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.LockedError("another run holds the working directory lock").Build()

// Acquire creates the lock file at path. If it already exists the lock is
// held elsewhere and ErrLocked is returned with the holder's details.
func Acquire(path, runID string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.FileSystemError("failed to create lock directory").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if stderrors.Is(err, fs.ErrExist) {
		held := ErrLocked.WithContext("path", path)
		if info, rerr := Read(path); rerr == nil {
			held = held.WithContext("holder_pid", info.PID).WithContext("holder_run_id", info.RunID)
		}
		return nil, held
	}
	if err != nil {
		return nil, errors.FileSystemError("failed to create lock file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	host, _ := os.Hostname()
	info := Info{PID: os.Getpid(), RunID: runID, Host: host, Acquired: time.Now().UTC()}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if err := stderrors.Join(encErr, closeErr); err != nil {
		_ = os.Remove(path)
		return nil, errors.FileSystemError("failed to write lock file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return &Lock{path: path}, nil
}

// Read returns the details stored in an existing lock file.
func Read(path string) (Info, error) {
	var info Info
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	err = json.Unmarshal(data, &info)
	return info, err
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file. Repeated calls return the first result.
func (l *Lock) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			l.err = errors.FileSystemError("failed to remove lock file").
				WithCause(err).
				WithContext("path", l.path).
				Build()
		}
	})
	return l.err
}
