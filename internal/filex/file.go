// Package filex creates local files for downloads without ever replacing an
// existing one.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrExists is returned when the target path is already taken.
var ErrExists = errors.New("file already exists")

const maxNameAttempts = 100

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// CheckFree returns ErrExists when path exists.
func CheckFree(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s: %w", path, ErrExists)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

// CreateNew creates path for writing and fails with ErrExists if it exists.
func CreateNew(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrExists)
	}
	return f, err
}

// CreateUnique creates a new file in dir named after name. When the name is
// taken it tries "base (1).ext", "base (2).ext" and so on.
func CreateUnique(dir, name string) (*os.File, error) {
	name = SafeName(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		f, err := CreateNew(filepath.Join(dir, candidate))
		if errors.Is(err, ErrExists) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("%s: %w", filepath.Join(dir, name), ErrExists)
}

// SafeName reduces a server-supplied filename to a plain base name.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "download"
	}
	return name
}
