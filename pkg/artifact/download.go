package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/peachmeow/peachmeow/pkg/utils"
	log "github.com/sirupsen/logrus"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second

	// MinSize is the size a download must exceed to count as complete.
	// Error pages and truncated transfers are smaller than any real artefact.
	MinSize = 10_000

	downloadTimeout = 10 * time.Minute
)

// Downloader fetches artefacts over HTTP with a fixed retry policy.
type Downloader struct {
	HTTP     *http.Client
	Attempts uint64
	Delay    time.Duration
	MinSize  int64
}

// NewDownloader returns a downloader making three attempts two seconds apart.
func NewDownloader() *Downloader {
	return &Downloader{
		HTTP:     &http.Client{Timeout: downloadTimeout},
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MinSize:  MinSize,
	}
}

// Fetch downloads url to dest, creating parent directories as needed.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	attempts := d.Attempts
	if attempts == 0 {
		attempts = 1
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(d.Delay)
	b = backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := d.fetchOnce(ctx, url, dest)
		if err != nil {
			log.Debugf("Download %s attempt %d/%d failed: %v", url, attempt, attempts, err)
		}
		return err
	}, b)
	if err != nil {
		os.Remove(dest)
		return &types.DownloadError{URL: url, Err: err}
	}
	log.Debugf("Downloaded %s to %s", url, dest)
	return nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if !utils.FileLargerThan(tmp, d.MinSize) {
		os.Remove(tmp)
		return fmt.Errorf("file is not larger than %d bytes", d.MinSize)
	}
	return os.Rename(tmp, dest)
}
