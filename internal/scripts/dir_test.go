package scripts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	return path
}

func TestList(t *testing.T) {
	tests := []struct {
		name    string
		setupFn func(t *testing.T, dir string)
		want    []string
	}{
		{
			name: "executables listed sorted",
			setupFn: func(t *testing.T, dir string) {
				writeScript(t, dir, "npm.sh", "#!/bin/sh\n", 0o755)
				writeScript(t, dir, "cargo.sh", "#!/bin/sh\n", 0o755)
			},
			want: []string{"cargo.sh", "npm.sh"},
		},
		{
			name: "non-executable skipped",
			setupFn: func(t *testing.T, dir string) {
				writeScript(t, dir, "notes.txt", "hello", 0o644)
				writeScript(t, dir, "run.sh", "#!/bin/sh\n", 0o755)
			},
			want: []string{"run.sh"},
		},
		{
			name: "dotfiles and directories skipped",
			setupFn: func(t *testing.T, dir string) {
				writeScript(t, dir, ".hidden", "#!/bin/sh\n", 0o755)
				require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
			},
			want: []string{},
		},
		{
			name: "symlink escaping the directory skipped",
			setupFn: func(t *testing.T, dir string) {
				outside := t.TempDir()
				target := writeScript(t, outside, "evil.sh", "#!/bin/sh\n", 0o755)
				require.NoError(t, os.Symlink(target, filepath.Join(dir, "evil.sh")))
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setupFn(t, root)

			d, err := Open(root)
			require.NoError(t, err)

			got, err := d.List()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "ok.sh", "#!/bin/sh\n", 0o755)
	writeScript(t, root, "noexec.sh", "#!/bin/sh\n", 0o644)

	d, err := Open(root)
	require.NoError(t, err)

	path, err := d.Resolve("ok.sh")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Root(), "ok.sh"), path)

	_, err = d.Resolve("missing.sh")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "missing script should wrap fs.ErrNotExist, got %v", err)

	_, err = d.Resolve("noexec.sh")
	assert.ErrorIs(t, err, ErrNotExecutable)

	for _, bad := range []string{"", "..", "../etc/passwd", "a/b"} {
		_, err = d.Resolve(bad)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
}

func TestResolveAllowsDotsInsideName(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "v1..2.sh", "#!/bin/sh\n", 0o755)

	d, err := Open(root)
	require.NoError(t, err)

	path, err := d.Resolve("v1..2.sh")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Root(), "v1..2.sh"), path)

	names, err := d.List()
	require.NoError(t, err)
	assert.Contains(t, names, "v1..2.sh")
}

func TestOpenRejectsFile(t *testing.T) {
	f := writeScript(t, t.TempDir(), "file", "", 0o644)
	_, err := Open(f)
	assert.Error(t, err)

	_, err = Open("")
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "a.sh", "#!/bin/sh\necho a\n", 0o755)
	writeScript(t, root, "b.sh", "#!/bin/sh\necho b\n", 0o755)

	d, err := Open(root)
	require.NoError(t, err)

	fa, err := d.Fingerprint("a.sh")
	require.NoError(t, err)
	fb, err := d.Fingerprint("b.sh")
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.NotEqual(t, fa, fb)

	again, err := d.Fingerprint("a.sh")
	require.NoError(t, err)
	assert.Equal(t, fa, again)
}

func TestWatchReportsAddedScript(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 16)
	require.NoError(t, d.Watch(ctx, func(c Change) { changes <- c }))

	writeScript(t, root, "new.sh", "#!/bin/sh\n", 0o755)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Name == "new.sh" && c.Kind == ChangeAdded {
				return
			}
		case <-deadline:
			t.Fatal("no added change observed for new.sh")
		}
	}
}
