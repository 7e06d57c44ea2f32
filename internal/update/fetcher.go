package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultVersion = "0.0.0"
	// maxManifestSize bounds the manifest body; anything larger is not a manifest.
	maxManifestSize = 1 << 20
)

// HTTPFetcher fetches the update manifest over HTTP(S).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// rawManifest keeps optional fields nil-able so defaults can be applied.
type rawManifest struct {
	Version     *string  `json:"version"`
	Changelog   *string  `json:"changelog"`
	DownloadURL *string  `json:"download_url"`
	Files       []string `json:"files"`
	SHA256      string   `json:"sha256"`
}

// NewHTTPFetcher creates a new manifest fetcher
func NewHTTPFetcher(currentVersion string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: fmt.Sprintf(userAgentFormat, currentVersion),
	}
}

// WithClient replaces the HTTP client (for testing)
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

// Fetch downloads and decodes the manifest at url.
// A zero timeout means the context alone bounds the request.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*Manifest, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(KindConnectivity, "fetch manifest", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newError(KindConnectivity, "fetch manifest", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing manifest response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindConnectivity, "fetch manifest", fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, newError(KindConnectivity, "fetch manifest", fmt.Errorf("failed to read response: %w", err))
	}

	manifest, err := DecodeManifest(body)
	if err != nil {
		return nil, err
	}

	log.WithField("url", url).Debugf("fetched manifest for version %s", manifest.Version)
	return manifest, nil
}

// DecodeManifest parses a manifest document, applying defaults for absent fields.
func DecodeManifest(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newError(KindFormat, "decode manifest", err)
	}

	m := &Manifest{
		Version: defaultVersion,
		Files:   []string{},
		SHA256:  raw.SHA256,
	}
	if raw.Version != nil && *raw.Version != "" {
		m.Version = *raw.Version
	}
	if raw.Changelog != nil {
		m.Changelog = *raw.Changelog
	}
	if raw.DownloadURL != nil {
		m.DownloadURL = *raw.DownloadURL
	}
	if raw.Files != nil {
		m.Files = raw.Files
	}

	return m, nil
}
