package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plxgio/sakura-launcher/internal/backup"
	"github.com/plxgio/sakura-launcher/internal/config"
	"github.com/plxgio/sakura-launcher/internal/feed"
	"github.com/plxgio/sakura-launcher/internal/release"
	"github.com/plxgio/sakura-launcher/internal/update"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newInstallation publishes version 2.0.0 on a local feed and returns the
// config of a 1.0.0 installation pointed at it.
func newInstallation(t *testing.T) *config.Config {
	t.Helper()

	out := t.TempDir()
	srv, err := feed.NewServer(feed.Options{Dir: out})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	src := t.TempDir()
	writeFiles(t, src, map[string]string{
		"launcher":        "V2",
		"assets/logo.png": "LOGO2",
	})
	_, err = release.Build(context.Background(), release.Options{
		SrcDir:    src,
		Version:   "2.0.0",
		Changelog: "Shiny new logo",
		OutDir:    out,
		BaseURL:   ts.URL + feed.DefaultPrefix,
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.InstallDir = t.TempDir()
	cfg.ManifestBaseURL = ts.URL + feed.DefaultPrefix + "/"
	cfg.BackupFiles = []string{"launcher", "assets/logo.png"}
	cfg.DownloadRetries = 0
	require.NoError(t, config.Validate(cfg))

	writeFiles(t, cfg.InstallDir, map[string]string{
		"launcher":        "V1",
		"assets/logo.png": "LOGO1",
	})
	return cfg
}

func TestServiceStatusFreshInstall(t *testing.T) {
	cfg := newInstallation(t)
	svc, err := NewLauncherService(cfg, "", "1.0.0", "none", update.NopObserver{})
	require.NoError(t, err)

	report := svc.Status()
	assert.Equal(t, "1.0.0", report.Version)
	assert.Empty(t, report.Commit)
	assert.Equal(t, cfg.InstallDir, report.InstallDir)
	assert.Equal(t, cfg.ManifestURL(), report.ManifestURL)
	assert.Nil(t, report.LastCheck)
	assert.Nil(t, report.Pending)
	assert.Nil(t, report.Backup)
}

func TestServiceCheck(t *testing.T) {
	cfg := newInstallation(t)
	svc, err := NewLauncherService(cfg, "launcher.yaml", "1.0.0", "abc123", update.NopObserver{})
	require.NoError(t, err)

	report, err := svc.Check(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.Available)
	assert.False(t, report.Skipped)
	assert.Equal(t, "2.0.0", report.RemoteVersion)
	assert.Equal(t, "Shiny new logo", report.Changelog)

	// inside the interval the recorded update is still reported
	report, err = svc.Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.True(t, report.Available)
	assert.Equal(t, "2.0.0", report.RemoteVersion)

	status := svc.Status()
	assert.Equal(t, "abc123", status.Commit)
	assert.Equal(t, "launcher.yaml", status.ConfigFile)
	require.NotNil(t, status.LastCheck)
	require.NotNil(t, status.NextCheck)
	assert.Equal(t, cfg.CheckIntervalDuration(), status.NextCheck.Sub(*status.LastCheck))
	require.NotNil(t, status.Pending)
	assert.Equal(t, "2.0.0", status.Pending.Version)
}

func TestServiceCheckUpToDate(t *testing.T) {
	cfg := newInstallation(t)
	svc, err := NewLauncherService(cfg, "", "2.0.0", "none", update.NopObserver{})
	require.NoError(t, err)

	report, err := svc.Check(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, report.Available)
	assert.Equal(t, "2.0.0", report.RemoteVersion)
	assert.Nil(t, svc.Status().Pending)
}

func TestServiceApplyAndRestore(t *testing.T) {
	cfg := newInstallation(t)
	svc, err := NewLauncherService(cfg, "", "1.0.0", "none", update.NopObserver{})
	require.NoError(t, err)

	_, err = svc.Check(context.Background(), true)
	require.NoError(t, err)
	version, err := svc.Orchestrator().Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", version)
	assert.Equal(t, "V2", readFile(t, filepath.Join(cfg.InstallDir, "launcher")))

	status := svc.Status()
	assert.Nil(t, status.Pending)
	require.NotNil(t, status.Backup)
	assert.ElementsMatch(t, []string{"launcher", "assets/logo.png"}, status.Backup.Files)
	assert.Equal(t, "1.0.0", status.Backup.LauncherVersion)

	require.NoError(t, svc.Restore(context.Background()))
	assert.Equal(t, "V1", readFile(t, filepath.Join(cfg.InstallDir, "launcher")))
	assert.Equal(t, "LOGO1", readFile(t, filepath.Join(cfg.InstallDir, "assets", "logo.png")))
}

func TestServiceRestoreWithoutBackup(t *testing.T) {
	cfg := newInstallation(t)
	svc, err := NewLauncherService(cfg, "", "1.0.0", "none", update.NopObserver{})
	require.NoError(t, err)

	_, err = svc.Snapshot()
	assert.ErrorIs(t, err, backup.ErrNoBackup)
	assert.ErrorIs(t, svc.Restore(context.Background()), backup.ErrNoBackup)
}
