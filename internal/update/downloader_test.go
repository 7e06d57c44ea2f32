package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewHTTPDownloader(t *testing.T) {
	downloader := NewHTTPDownloader("0.0.7")

	if downloader.client == nil {
		t.Error("HTTP client should not be nil")
	}
	if downloader.userAgent != "sakura-launcher/0.0.7" {
		t.Errorf("userAgent = %q, want sakura-launcher/0.0.7", downloader.userAgent)
	}
}

func TestHTTPDownloaderDownload_Success(t *testing.T) {
	testContent := []byte("test archive content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	dstPath := filepath.Join(tmpDir, "temp_updates", "launcher_update.zip")

	got, err := NewHTTPDownloader("0.0.7").Download(context.Background(), server.URL, dstPath, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got != dstPath {
		t.Errorf("Download() path = %s, want %s", got, dstPath)
	}

	content, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != string(testContent) {
		t.Errorf("Downloaded content = %q, want %q", content, testContent)
	}

	if _, err := os.Stat(dstPath + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should not remain after a successful download")
	}
}

func TestHTTPDownloaderDownload_ClearsStaleFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	tmpDir := filepath.Join(t.TempDir(), "temp_updates")
	if err := os.MkdirAll(filepath.Join(tmpDir, "leftover"), 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(tmpDir, "old_update.zip")
	if err := os.WriteFile(stale, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	dstPath := filepath.Join(tmpDir, "launcher_update.zip")
	if _, err := NewHTTPDownloader("0.0.7").Download(context.Background(), server.URL, dstPath, nil); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "launcher_update.zip" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp dir contents = %v, want only launcher_update.zip", names)
	}
}

func TestHTTPDownloaderDownload_Progress(t *testing.T) {
	chunk := make([]byte, 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(chunk)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		_, _ = w.Write(chunk)
	}))
	defer server.Close()

	var reports []int
	dstPath := filepath.Join(t.TempDir(), "dl", "archive.zip")
	_, err := NewHTTPDownloader("0.0.7").Download(context.Background(), server.URL, dstPath, func(p int) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(reports) == 0 {
		t.Fatal("expected progress reports")
	}
	for i, p := range reports {
		if p < 0 || p > 100 {
			t.Errorf("report %d out of range: %d", i, p)
		}
		if i > 0 && p <= reports[i-1] {
			t.Errorf("reports not strictly increasing: %v", reports)
			break
		}
	}
	if last := reports[len(reports)-1]; last != 100 {
		t.Errorf("last report = %d, want 100", last)
	}
}

func TestHTTPDownloaderDownload_UnknownSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body forces chunked encoding, so no Content-Length.
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	var reports []int
	dstPath := filepath.Join(t.TempDir(), "dl", "archive.zip")
	_, err := NewHTTPDownloader("0.0.7").Download(context.Background(), server.URL, dstPath, func(p int) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(reports) != 1 || reports[0] != 100 {
		t.Errorf("reports = %v, want [100]", reports)
	}
}

func TestHTTPDownloaderDownload_HTTPError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "dl", "archive.zip")
	_, err := NewHTTPDownloader("0.0.7").
		WithRetries(3, time.Millisecond).
		Download(context.Background(), server.URL, dstPath, nil)
	if err == nil {
		t.Fatal("Download() should fail on 404")
	}
	if !errors.Is(err, ErrDownload) {
		t.Errorf("error = %v, want ErrDownload", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (4xx is not retried)", hits.Load())
	}
	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Error("no file should exist at the destination after a failed download")
	}
}

func TestHTTPDownloaderDownload_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "dl", "archive.zip")
	_, err := NewHTTPDownloader("0.0.7").
		WithRetries(2, time.Millisecond).
		Download(context.Background(), server.URL, dstPath, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestHTTPDownloaderDownload_ShortBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(1000))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 100))
		// Returning early closes the connection mid-body.
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "dl", "archive.zip")
	_, err := NewHTTPDownloader("0.0.7").Download(context.Background(), server.URL, dstPath, nil)
	if err == nil {
		t.Fatal("Download() should fail on a truncated body")
	}
	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Error("truncated download must not be moved into place")
	}
	if _, err := os.Stat(dstPath + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should be removed")
	}
}

func TestHTTPDownloaderDownload_EmptyURL(t *testing.T) {
	_, err := NewHTTPDownloader("0.0.7").Download(context.Background(), "", filepath.Join(t.TempDir(), "a.zip"), nil)
	if !errors.Is(err, ErrDownload) {
		t.Errorf("error = %v, want ErrDownload", err)
	}
}

func TestHTTPDownloaderDownload_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPDownloader("0.0.7").Download(ctx, server.URL, filepath.Join(t.TempDir(), "dl", "a.zip"), nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "archive.zip")
	testContent := []byte("test content for checksum")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	hash := sha256.Sum256(testContent)
	expected := hex.EncodeToString(hash[:])

	tests := []struct {
		name     string
		checksum string
		wantErr  error
	}{
		{"bare hex", expected, nil},
		{"prefixed", "sha256:" + expected, nil},
		{"uppercase", "SHA256:" + hex.EncodeToString(hash[:]), nil},
		{"mismatch", "0000000000000000000000000000000000000000000000000000000000000000", ErrDownload},
		{"malformed", "not-a-digest", ErrFormat},
	}

	downloader := NewHTTPDownloader("0.0.7")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := downloader.VerifyChecksum(testFile, tt.checksum)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("VerifyChecksum() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyChecksum() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyChecksum_MissingFile(t *testing.T) {
	err := VerifyChecksum(filepath.Join(t.TempDir(), "missing.zip"), "sha256:"+hex.EncodeToString(make([]byte, 32)))
	if !errors.Is(err, ErrFilesystem) {
		t.Errorf("error = %v, want ErrFilesystem", err)
	}
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest() error = %v", err)
	}
	hash := sha256.Sum256([]byte("abc"))
	if d.Encoded() != hex.EncodeToString(hash[:]) {
		t.Errorf("FileDigest() = %s", d)
	}
}
