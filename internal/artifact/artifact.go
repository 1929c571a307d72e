// Package artifact persists rendered reports.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/axlan/dice-logger/internal/logging"
)

// Store saves a named artifact.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
}

// FileStore writes artifacts into a directory. Writes go to a temp file
// that is renamed into place, so concurrent writers of the same name
// never leave a torn file; the last rename wins.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the output directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// Path returns where name is stored.
func (f *FileStore) Path(name string) string {
	return filepath.Join(f.dir, name)
}

// Put atomically writes data to dir/name.
func (f *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid artifact name %q", name)
	}

	tmp, err := os.CreateTemp(f.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path(name)); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Mirrored writes to a primary store and copies to mirrors. Mirror
// failures are logged, never returned.
type Mirrored struct {
	primary Store
	mirrors []Store
}

// NewMirrored wraps primary with best-effort mirrors.
func NewMirrored(primary Store, mirrors ...Store) *Mirrored {
	return &Mirrored{primary: primary, mirrors: mirrors}
}

// Put writes to the primary store, then each mirror.
func (m *Mirrored) Put(ctx context.Context, name string, data []byte) error {
	if err := m.primary.Put(ctx, name, data); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Put(ctx, name, data); err != nil {
			logging.Component("artifact").Warn().Err(err).Str("name", name).Msg("mirror upload failed")
		}
	}
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Mirrored)(nil)
)
