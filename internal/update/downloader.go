package update

import (
	"context"
	_ "crypto/sha256" // registers sha256 for go-digest
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

const (
	userAgentFormat   = "sakura-launcher/%s"
	DefaultRetryDelay = 3 * time.Second
)

// HTTPDownloader downloads update archives over HTTP
type HTTPDownloader struct {
	client     *http.Client
	userAgent  string
	retries    uint64
	retryDelay time.Duration
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader(currentVersion string) *HTTPDownloader {
	return &HTTPDownloader{
		client:     &http.Client{},
		userAgent:  fmt.Sprintf(userAgentFormat, currentVersion),
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetries sets how many times a transient failure is retried.
func (d *HTTPDownloader) WithRetries(retries int, delay time.Duration) *HTTPDownloader {
	if retries < 0 {
		retries = 0
	}
	d.retries = uint64(retries)
	d.retryDelay = delay
	return d
}

// WithClient replaces the HTTP client (for testing)
func (d *HTTPDownloader) WithClient(client *http.Client) *HTTPDownloader {
	d.client = client
	return d
}

// Download streams url to dst, clearing dst's directory first.
// onProgress receives percentages in 0..100 and may be nil.
// The file at dst only exists after a complete transfer.
func (d *HTTPDownloader) Download(ctx context.Context, url, dst string, onProgress func(percent int)) (string, error) {
	if url == "" {
		return "", newError(KindDownload, "download", fmt.Errorf("no download URL available"))
	}

	if err := resetDir(filepath.Dir(dst)); err != nil {
		return "", newError(KindFilesystem, "prepare download directory", err)
	}

	report := func(int) {}
	if onProgress != nil {
		report = onProgress
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := d.downloadOnce(ctx, url, dst, report)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(d.retryDelay)
	policy = backoff.WithMaxRetries(policy, d.retries)
	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.Warnf("download attempt %d failed, retrying in %v: %v", attempt, wait, err)
	})
	if err != nil {
		return "", classify(ctx, KindDownload, "download", err)
	}

	return dst, nil
}

// httpStatusError is a non-200 response.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %d", e.code)
}

// isTransient reports whether a failed attempt is worth retrying.
func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500 || statusErr.code == http.StatusTooManyRequests
	}
	var fsErr *os.PathError
	return !errors.As(err, &fsErr)
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url, dst string, report func(int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode}
	}

	partial := dst + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", partial, err)
	}

	counter := &progressWriter{total: resp.ContentLength, report: report, last: -1}
	_, copyErr := io.Copy(out, io.TeeReader(resp.Body, counter))
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)
		if copyErr != nil {
			return fmt.Errorf("failed to write response body to file: %w", copyErr)
		}
		return fmt.Errorf("failed to close %q: %w", partial, closeErr)
	}

	if resp.ContentLength > 0 && counter.written != resp.ContentLength {
		_ = os.Remove(partial)
		return fmt.Errorf("short download: got %d of %d bytes", counter.written, resp.ContentLength)
	}

	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	counter.finish()
	log.WithField("url", url).Infof("downloaded %s to %s", humanize.Bytes(uint64(counter.written)), dst)
	return nil
}

// progressWriter counts bytes and reports floor(written*100/total), clamped
// to 100, whenever the value changes.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		p.emit(int(p.written * 100 / p.total))
	}
	return len(b), nil
}

// finish reports completion when the size was unknown.
func (p *progressWriter) finish() {
	p.emit(100)
}

func (p *progressWriter) emit(percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent == p.last {
		return
	}
	p.last = percent
	p.report(percent)
}

// VerifyChecksum compares the file's sha256 digest against expected,
// given either as bare hex or as "sha256:<hex>".
func (d *HTTPDownloader) VerifyChecksum(path, expected string) error {
	return VerifyChecksum(path, expected)
}

// VerifyChecksum is the free-standing form of HTTPDownloader.VerifyChecksum.
func VerifyChecksum(path, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if !strings.Contains(expected, ":") {
		expected = digest.SHA256.String() + ":" + expected
	}

	want, err := digest.Parse(expected)
	if err != nil {
		return newError(KindFormat, "verify checksum", fmt.Errorf("invalid checksum %q: %w", expected, err))
	}

	f, err := os.Open(path)
	if err != nil {
		return newError(KindFilesystem, "verify checksum", err)
	}
	defer func() { _ = f.Close() }()

	verifier := want.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return newError(KindFilesystem, "verify checksum", err)
	}
	if !verifier.Verified() {
		return newError(KindDownload, "verify checksum", fmt.Errorf("checksum mismatch for %s", filepath.Base(path)))
	}

	return nil
}

// FileDigest returns the sha256 digest of the file at path.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return digest.SHA256.FromReader(f)
}

// resetDir empties dir, creating it if needed.
func resetDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove stale download %s: %w", entry.Name(), err)
		}
	}
	return os.MkdirAll(dir, 0755)
}
