package artifacts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/errors"
)

// FileSink writes artifacts under a root directory. Each file is written
// to a temporary name and renamed into place, so readers never observe a
// partial artifact.
type FileSink struct {
	root string
}

// NewFileSink creates a FileSink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{root: dir}
}

// Root returns the root directory
func (s *FileSink) Root() string {
	return s.root
}

// Location returns the file path of key
func (s *FileSink) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes data atomically
func (s *FileSink) Put(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := s.Location(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errors.Wrapf(err, "failed to move artifact into place at %s", dst)
	}
	return nil
}
