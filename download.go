package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// Downloader fetches extracts into a local directory.
type Downloader struct {
	Client    *http.Client
	Locator   *Locator
	UserAgent string
	Logger    *slog.Logger

	// Force re-downloads extracts that already exist on disk.
	Force bool
}

// Download stores the extract covering code in outDir and returns its path.
// Existing files are kept unless Force is set.
func (d *Downloader) Download(ctx context.Context, code, outDir string) (string, error) {
	t, err := d.Locator.Locate(code)
	if err != nil {
		return "", err
	}
	return d.downloadTarget(ctx, t, outDir)
}

// DownloadAll downloads every distinct extract covering codes, one at a time.
// It returns the paths that were written or already present.
func (d *Downloader) DownloadAll(ctx context.Context, codes []string, outDir string) ([]string, error) {
	var errs *multierror.Error

	targets, unknown := d.Locator.UniqueTargets(codes)
	for _, code := range unknown {
		errs = multierror.Append(errs, fmt.Errorf("%q : %w", code, ErrUnknownCode))
	}

	paths := []string{}
	for _, t := range targets {
		path, err := d.downloadTarget(ctx, t, outDir)
		if err != nil {
			errs = multierror.Append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs.ErrorOrNil()
}

func (d *Downloader) downloadTarget(ctx context.Context, t Target, outDir string) (string, error) {
	logger := d.logger().With("url", t.URL)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create output directory : %w", err)
	}

	path := filepath.Join(outDir, t.Filename())
	if !d.Force {
		if _, err := os.Stat(path); err == nil {
			logger.Info("skipping download, file exists", "path", path)
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return "", fmt.Errorf("Error creating new request : %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	logger.Info("downloading extract", "codes", t.Codes)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Error sending request : %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		logger.Warn("rate limited by mirror, increase --delay")
		return "", fmt.Errorf("%s : %w", t.URL, ErrRateLimited)
	default:
		return "", &StatusError{URL: t.URL, Status: resp.StatusCode}
	}

	n, err := writeFile(path, resp.Body)
	if err != nil {
		return "", err
	}

	logger.Info("extract saved", "path", path, "bytes", n)
	return path, nil
}

func (d *Downloader) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// writeFile streams r into path through a temporary ".part" file, so path
// only ever holds a complete extract.
func writeFile(path string, r io.Reader) (int64, error) {
	tmp := path + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("Error writing %s : %w", path, err)
	}
	return n, nil
}
