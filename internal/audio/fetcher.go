package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/retry"
)

// Fetcher resolves a recording link to a local audio file. Downloads are
// idempotent per destination name and retried on transient failure.
type Fetcher struct {
	TempDir string
	Client  *http.Client

	// Overridable in tests; defaults point at the drive host.
	BaseURL        string
	UserContentURL string
}

var downloadPolicy = retry.Policy{Attempts: 3, BaseDelay: time.Second}

var fileIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`),
}

func NewFetcher(tempDir string) *Fetcher {
	return &Fetcher{
		TempDir:        tempDir,
		Client:         &http.Client{Timeout: 2 * time.Minute},
		BaseURL:        "https://drive.google.com",
		UserContentURL: "https://drive.usercontent.google.com",
	}
}

// FileIDFromLink extracts the opaque file id from the recording link.
func FileIDFromLink(link string) (string, error) {
	for _, re := range fileIDPatterns {
		if m := re.FindStringSubmatch(link); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("cannot extract file id from link %q", link)
}

// DownloadAudio fetches the recording behind link into TempDir/destName
// and returns the local path. If the destination already exists it is
// returned as-is without network I/O.
func (f *Fetcher) DownloadAudio(ctx context.Context, link, destName string) (string, error) {
	log := logger.Component("audio").WithField("dest", destName)

	fileID, err := FileIDFromLink(link)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.TempDir, destName)
	if _, err := os.Stat(dest); err == nil {
		log.Debug("audio already downloaded, skipping fetch")
		return dest, nil
	}

	if err := os.MkdirAll(f.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	op := func() error {
		if err := f.fetchOnce(ctx, fileID, dest); err != nil {
			os.Remove(dest)
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("audio download failed, retrying")
	}
	if err := downloadPolicy.DoNotify(ctx, op, notify); err != nil {
		return "", fmt.Errorf("download audio %s: %w", link, err)
	}
	return dest, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, fileID, dest string) error {
	directURL := fmt.Sprintf("%s/uc?export=download&id=%s", strings.TrimRight(f.BaseURL, "/"), url.QueryEscape(fileID))
	resp, err := f.get(ctx, directURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// An HTML body is the confirmation page served for large files; the
	// usercontent endpoint skips it.
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		resp.Body.Close()
		confirmURL := fmt.Sprintf("%s/download?id=%s&export=download&confirm=t",
			strings.TrimRight(f.UserContentURL, "/"), url.QueryEscape(fileID))
		resp, err = f.get(ctx, confirmURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}
