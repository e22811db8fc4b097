package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcmm/internal/domain"
	"mcmm/internal/source"
)

// PartialSuffix marks a file that is still being downloaded
const PartialSuffix = ".part"

const (
	defaultMaxAttempts = 3
	retryBackoff       = 200 * time.Millisecond
)

// retryableError marks a failure worth another attempt
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// DownloadProgress represents the current state of a download
type DownloadProgress struct {
	TotalBytes int64   // Total size in bytes (0 if unknown)
	Downloaded int64   // Bytes downloaded so far
	Percentage float64 // Completion percentage (0-100)
}

// ProgressFunc is called periodically during download with progress updates
type ProgressFunc func(DownloadProgress)

// DownloadResult contains the outcome of a download
type DownloadResult struct {
	Path     string // Final file path
	Size     int64  // Bytes downloaded
	Checksum string // SHA-1 of the downloaded file
}

// Downloader handles HTTP file downloads with progress tracking
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader creates a new Downloader with the given HTTP client
// If httpClient is nil, http.DefaultClient is used
func NewDownloader(httpClient *http.Client) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{
		httpClient: httpClient,
	}
}

// Download fetches data.URL into destPath. The body is written to
// destPath+PartialSuffix and renamed once complete and verified against
// data.SHA1 when one is known. Server errors and dropped connections are
// retried.
func (d *Downloader) Download(ctx context.Context, data *domain.DownloadData, destPath string, progressFn ProgressFunc) (*DownloadResult, error) {
	if data.URL == "" {
		return nil, fmt.Errorf("no download URL for %s", data.Filename())
	}

	var lastErr error
	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		result, err := d.fetch(ctx, data, destPath, progressFn)
		if err == nil {
			return result, nil
		}
		var retry *retryableError
		if !errors.As(err, &retry) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = retry.err
		if attempt < defaultMaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
	}
	return nil, lastErr
}

func (d *Downloader) fetch(ctx context.Context, data *domain.DownloadData, destPath string, progressFn ProgressFunc) (result *DownloadResult, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, data.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("%w: executing request: %w", domain.ErrNetwork, err)}
	}
	defer resp.Body.Close()

	if rlErr := source.CheckRateLimit(data.Source.Platform, resp); rlErr != nil {
		return nil, rlErr
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &retryableError{fmt.Errorf("%w: HTTP error: %s", domain.ErrNetwork, resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP error: %s", domain.ErrNetwork, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	tempPath := destPath + PartialSuffix
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		file.Close()
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	totalBytes := resp.ContentLength
	if totalBytes <= 0 {
		totalBytes = data.Length
	}

	hasher := sha1.New()
	reader := &progressReader{
		reader:     resp.Body,
		totalBytes: totalBytes,
		progressFn: progressFn,
	}

	written, err := io.Copy(file, io.TeeReader(reader, hasher))
	if err != nil {
		return nil, &retryableError{fmt.Errorf("%w: downloading file: %w", domain.ErrNetwork, err)}
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing file: %w", err)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	if data.SHA1 != "" && !strings.EqualFold(data.SHA1, checksum) {
		return nil, fmt.Errorf("%w: %s: expected %s, got %s", domain.ErrChecksumMismatch, data.Filename(), data.SHA1, checksum)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return nil, fmt.Errorf("renaming file: %w", err)
	}

	return &DownloadResult{
		Path:     destPath,
		Size:     written,
		Checksum: checksum,
	}, nil
}

// progressReader wraps an io.Reader to track download progress
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	downloaded int64
	progressFn ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.downloaded += int64(n)
		if r.progressFn != nil {
			progress := DownloadProgress{
				TotalBytes: r.totalBytes,
				Downloaded: r.downloaded,
			}
			if r.totalBytes > 0 {
				progress.Percentage = float64(r.downloaded) / float64(r.totalBytes) * 100
			}
			r.progressFn(progress)
		}
	}
	return n, err
}
