package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"market-relay/src/helpers"
	"market-relay/src/models"
)

// Read loads a snapshot file. A file that is missing, unparseable or holds no
// bars is reported as a *helpers.SnapshotError.
func Read(path string) (Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Decoded{}, helpers.NewSnapshotError(fmt.Sprintf("cannot read %s", path), err)
	}

	decoded, err := Decode(data)
	if err != nil {
		return Decoded{}, helpers.NewSnapshotError(fmt.Sprintf("cannot parse %s", path), err)
	}
	if len(decoded.Snapshot) == 0 {
		return decoded, helpers.NewSnapshotError(fmt.Sprintf("%s holds no bars", path), nil)
	}
	return decoded, nil
}

// -----------------------------------------------------------------------------

// Writer persists snapshots to one target file.
type Writer struct {
	Path string
}

func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Write replaces the target file with snap and returns the bytes written.
func (w *Writer) Write(snap models.MSnapshot) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := WriteFileAtomic(w.Path, data, 0644); err != nil {
		return 0, err
	}
	return len(data), nil
}

// -----------------------------------------------------------------------------

// WriteFileAtomic writes data to a temporary file next to path and renames it
// over path, so readers see either the old file or the complete new one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in '%s': %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace '%s': %w", path, err)
	}
	committed = true
	return nil
}
