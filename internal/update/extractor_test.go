package update

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name    string
	content string
	dir     bool
}

// writeZip builds an archive with stored (uncompressed) entries so tests can
// corrupt payload bytes at known positions.
func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.dir {
			_, err := zw.Create(e.name + "/")
			require.NoError(t, err)
			continue
		}
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Store}
		hdr.SetMode(0644)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	archive := filepath.Join(dir, "update.zip")
	writeZip(t, archive, []zipEntry{
		{name: "assets", dir: true},
		{name: "launcher", content: "new launcher"},
		{name: "assets/logo.png", content: "new logo"},
		{name: "assets/new/extra.txt", content: "extra"},
	})

	require.NoError(t, os.MkdirAll(installDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "launcher"), []byte("old launcher"), 0755))

	var reports []int
	n, err := NewExtractor(installDir).Extract(context.Background(), archive, func(p int) {
		reports = append(reports, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for name, want := range map[string]string{
		"launcher":             "new launcher",
		"assets/logo.png":      "new logo",
		"assets/new/extra.txt": "extra",
	} {
		got, err := os.ReadFile(filepath.Join(installDir, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}

	assert.Equal(t, []int{25, 50, 75, 100}, reports)

	// No temporary siblings left behind.
	entries, err := os.ReadDir(installDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".new")
	}
}

func TestExtractor_ProgressOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "update.zip")

	var entries []zipEntry
	for i := 0; i < 250; i++ {
		entries = append(entries, zipEntry{name: fmt.Sprintf("data/file-%03d.txt", i), content: "x"})
	}
	writeZip(t, archive, entries)

	var reports []int
	_, err := NewExtractor(filepath.Join(dir, "install")).Extract(context.Background(), archive, func(p int) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
	assert.Equal(t, 100, reports[len(reports)-1])
}

func TestExtractor_EmptyArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "update.zip")
	writeZip(t, archive, nil)

	var reports []int
	n, err := NewExtractor(dir).Extract(context.Background(), archive, func(p int) {
		reports = append(reports, p)
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int{100}, reports)
}

func TestExtractor_PathTraversal(t *testing.T) {
	tests := []string{
		"../escape.txt",
		"assets/../../escape.txt",
		"/etc/escape.txt",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			installDir := filepath.Join(dir, "install")
			archive := filepath.Join(dir, "update.zip")
			writeZip(t, archive, []zipEntry{{name: name, content: "evil"}})

			_, err := NewExtractor(installDir).Extract(context.Background(), archive, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrArchive)

			_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
			assert.True(t, os.IsNotExist(statErr), "file must not be written outside the installation")
		})
	}
}

func TestExtractor_SkipsManagedPaths(t *testing.T) {
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	archive := filepath.Join(dir, "update.zip")
	writeZip(t, archive, []zipEntry{
		{name: "backup", dir: true},
		{name: "backup/launcher", content: "PACKAGED-SNAPSHOT"},
		{name: "temp_updates/launcher_update.zip", content: "nested"},
		{name: "./last_check.txt", content: "garbage"},
		{name: "launcher", content: "new launcher"},
		{name: "backups/notes.txt", content: "kept"},
	})

	require.NoError(t, os.MkdirAll(filepath.Join(installDir, "backup"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "backup", "launcher"), []byte("old launcher"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "last_check.txt"), []byte("1700000000\n"), 0644))

	var reports []int
	x := NewExtractor(installDir, "temp_updates", "backup", "last_check.txt", "update_info.json")
	n, err := x.Extract(context.Background(), archive, func(p int) {
		reports = append(reports, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 100, reports[len(reports)-1])

	assert.Equal(t, "old launcher", readInstallFile(t, installDir, "backup/launcher"))
	assert.Equal(t, "1700000000\n", readInstallFile(t, installDir, "last_check.txt"))
	assert.NoDirExists(t, filepath.Join(installDir, "temp_updates"))
	assert.Equal(t, "new launcher", readInstallFile(t, installDir, "launcher"))
	assert.Equal(t, "kept", readInstallFile(t, installDir, "backups/notes.txt"))
}

func TestExtractor_NotAZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "update.zip")
	require.NoError(t, os.WriteFile(archive, []byte("<html>404</html>"), 0644))

	_, err := NewExtractor(dir).Extract(context.Background(), archive, nil)
	assert.ErrorIs(t, err, ErrArchive)
}

func TestExtractor_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	_, err := NewExtractor(dir).Extract(context.Background(), filepath.Join(dir, "missing.zip"), nil)
	assert.ErrorIs(t, err, ErrArchive)
}

func TestExtractor_CorruptEntryMidway(t *testing.T) {
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	archive := filepath.Join(dir, "update.zip")
	writeZip(t, archive, []zipEntry{
		{name: "first.txt", content: "FIRST-ENTRY-PAYLOAD"},
		{name: "second.txt", content: "SECOND-ENTRY-PAYLOAD"},
	})

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	idx := bytes.Index(data, []byte("SECOND-ENTRY-PAYLOAD"))
	require.GreaterOrEqual(t, idx, 0)
	data[idx] = 'X'
	require.NoError(t, os.WriteFile(archive, data, 0644))

	n, err := NewExtractor(installDir).Extract(context.Background(), archive, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchive)
	assert.Equal(t, 1, n)

	_, statErr := os.Stat(filepath.Join(installDir, "second.txt"))
	assert.True(t, os.IsNotExist(statErr), "corrupt entry must not be moved into place")
}

func TestExtractor_ContextDeadline(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "update.zip")
	writeZip(t, archive, []zipEntry{{name: "a.txt", content: "a"}})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := NewExtractor(filepath.Join(dir, "install")).Extract(ctx, archive, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"launcher", filepath.Join(root, "launcher"), false},
		{"assets/logo.png", filepath.Join(root, "assets", "logo.png"), false},
		{"assets/./logo.png", filepath.Join(root, "assets", "logo.png"), false},
		{"..", "", true},
		{"../sibling", "", true},
		{"a/../../b", "", true},
		{"/abs", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeJoin(root, tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
