// Package scripts enumerates, resolves and describes builder scripts kept in
// a single directory.
package scripts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

var (
	// ErrInvalidName is returned for names that are not a plain file name.
	ErrInvalidName = errors.New("invalid script name")
	// ErrNotExecutable is returned when the script exists but has no exec bit.
	ErrNotExecutable = errors.New("script is not executable")
	// ErrUntrusted is returned when a script resolves outside the directory.
	ErrUntrusted = errors.New("script resolves outside scripts directory")
)

// Dir is a directory of executable builder scripts. Each regular executable
// file directly inside it is one builder, named by its file name.
type Dir struct {
	root string
}

// Open resolves root to an absolute, symlink-free directory path.
func Open(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("scripts dir is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scripts dir %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve scripts dir %q: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat scripts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scripts dir is not a directory: %s", resolved)
	}
	return &Dir{root: resolved}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string { return d.root }

// List returns the sorted names of every executable regular file in the
// directory. Dotfiles and subdirectories are skipped.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.IsDir() {
			continue
		}
		if _, err := d.Resolve(e.Name()); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Resolve returns the absolute path of the script called name after the trust
// checks: plain file name, resolved target inside the directory, regular file,
// executable. A missing script yields an error wrapping fs.ErrNotExist.
func (d *Dir) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	path := filepath.Join(d.root, name)
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("script %q: %w", name, fs.ErrNotExist)
		}
		return "", fmt.Errorf("resolve script %q: %w", name, err)
	}
	if !strings.HasPrefix(resolved, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUntrusted, resolved)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat script %q: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("script %q: not a regular file: %w", name, fs.ErrNotExist)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotExecutable, resolved)
	}
	return path, nil
}

// Fingerprint returns the BLAKE3 hex digest of the script's contents.
func (d *Dir) Fingerprint(name string) (string, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script %q: %w", name, err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
