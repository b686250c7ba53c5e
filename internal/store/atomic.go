package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const filePerm = 0o600

const dirPerm = 0o750

// ErrLocked is returned by Lock when an advisory lock file is already present.
var ErrLocked = errors.New("state root is locked by another process")

// SaveAtomic writes state to dir/basename+codec.Extension() using a
// temp-file-then-rename sequence so readers never observe a partially
// written file. The temp file lives alongside the destination so the
// rename stays within a single filesystem.
func SaveAtomic(dir, basename string, codec Codec, state any) error {
	mkdirErr := os.MkdirAll(dir, dirPerm)
	if mkdirErr != nil {
		return fmt.Errorf("create state dir: %w", mkdirErr)
	}

	finalPath := filepath.Join(dir, basename+codec.Extension())

	tmp, createErr := os.CreateTemp(dir, "."+basename+".*.tmp")
	if createErr != nil {
		return fmt.Errorf("create temp state file: %w", createErr)
	}

	tmpPath := tmp.Name()

	encodeErr := codec.Encode(tmp, state)
	if encodeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("encode state: %w", encodeErr)
	}

	syncErr := tmp.Sync()
	if syncErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("sync temp state file: %w", syncErr)
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("close temp state file: %w", closeErr)
	}

	chmodErr := os.Chmod(tmpPath, filePerm)
	if chmodErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("chmod temp state file: %w", chmodErr)
	}

	renameErr := os.Rename(tmpPath, finalPath)
	if renameErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("rename state file: %w", renameErr)
	}

	return nil
}

// LoadState reads dir/basename+codec.Extension() into state, which must be
// a pointer. A missing file is reported via the returned error; callers that
// want "tolerate missing state" semantics should check os.IsNotExist.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, openErr := os.Open(path)
	if openErr != nil {
		return fmt.Errorf("open state file: %w", openErr)
	}
	defer file.Close()

	decodeErr := codec.Decode(file, state)
	if decodeErr != nil {
		return fmt.Errorf("decode state: %w", decodeErr)
	}

	return nil
}

// Quarantine renames a corrupt state file out of the way with a
// ".corrupt.<timestamp>" suffix so the caller can continue with an empty
// store, per the StorageCorruption policy.
func Quarantine(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return nil
	}

	quarantined := fmt.Sprintf("%s.corrupt.%d", path, time.Now().UTC().Unix())

	renameErr := os.Rename(path, quarantined)
	if renameErr != nil {
		return fmt.Errorf("quarantine %s: %w", path, renameErr)
	}

	return nil
}

// Lock creates an advisory lock file at <stateRoot>/merge.lock, failing fast
// if one already exists (per spec: "implementations must use atomic rename
// and may add an advisory lock file ... fail fast if present").
func Lock(stateRoot string) (*Unlocker, error) {
	mkdirErr := os.MkdirAll(stateRoot, dirPerm)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create state root: %w", mkdirErr)
	}

	lockPath := filepath.Join(stateRoot, "merge.lock")

	file, openErr := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if openErr != nil {
		if os.IsExist(openErr) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("create lock file: %w", openErr)
	}

	fmt.Fprintf(file, "pid=%d locked_at=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	file.Close()

	return &Unlocker{path: lockPath}, nil
}

// Unlocker releases an advisory lock acquired via Lock.
type Unlocker struct {
	path string
}

// Release removes the lock file. Safe to call once; subsequent calls are no-ops.
func (u *Unlocker) Release() error {
	if u.path == "" {
		return nil
	}

	removeErr := os.Remove(u.path)

	u.path = ""

	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("release lock: %w", removeErr)
	}

	return nil
}
