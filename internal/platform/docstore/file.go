package docstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// File keeps the document in a single file on local disk. Writes go to a
// temporary file in the same directory which is then renamed over the
// target, so readers never observe a partially written document.
type File struct {
	path string
}

// NewFile returns a file backend for path. An empty path defaults to
// patients.json in the working directory.
func NewFile(path string) *File {
	if path == "" {
		path = "patients.json"
	}
	return &File{path: path}
}

func (f *File) Driver() string { return DriverFile }

// Path reports the file the document is stored in.
func (f *File) Path() string { return f.path }

func (f *File) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", f.path)
	}
	return data, nil
}

func (f *File) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "could not create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "could not create temp file in %s", dir)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(f.mode()); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "could not set mode on %s", tmp.Name())
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "could not write to %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "could not sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "could not replace %s", f.path)
	}
	return nil
}

// mode keeps the permissions of an existing document; new documents get 0644.
func (f *File) mode() os.FileMode {
	if info, err := os.Stat(f.path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

// Ping checks that the directory holding the document is reachable.
func (f *File) Ping(_ context.Context) error {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "could not stat %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (f *File) Close() error { return nil }
