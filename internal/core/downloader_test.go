package core_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"mcmm/internal/core"
	"mcmm/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact(url, output string) *domain.DownloadData {
	return &domain.DownloadData{
		Source: domain.ModrinthID("test"),
		URL:    url,
		Output: output,
	}
}

func TestDownloader_Download_ReturnsChecksum(t *testing.T) {
	content := []byte("test file content for checksum")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	result, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.NoError(t, err)

	assert.Equal(t, destPath, result.Path)
	assert.Equal(t, int64(len(content)), result.Size)
	assert.Len(t, result.Checksum, 40) // SHA-1 produces 40 hex chars
}

func TestDownloader_Download_VerifiesSHA1(t *testing.T) {
	content := []byte("abc")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	dir := t.TempDir()

	good := artifact(server.URL, "mods/good.jar")
	good.SHA1 = "A9993E364706816ABA3E25717850C26C9CD0D89D"
	result, err := downloader.Download(context.Background(), good, filepath.Join(dir, "good.jar"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", result.Checksum)

	bad := artifact(server.URL, "mods/bad.jar")
	bad.SHA1 = "0000000000000000000000000000000000000000"
	_, err = downloader.Download(context.Background(), bad, filepath.Join(dir, "bad.jar"), nil)
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)

	assert.NoFileExists(t, filepath.Join(dir, "bad.jar"))
	assert.NoFileExists(t, filepath.Join(dir, "bad.jar"+core.PartialSuffix))
}

func TestDownloader_Download(t *testing.T) {
	content := []byte("test file content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "17")
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	var progressCalls []core.DownloadProgress
	progressFn := func(p core.DownloadProgress) {
		progressCalls = append(progressCalls, p)
	}

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, progressFn)
	require.NoError(t, err)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.NoFileExists(t, destPath+core.PartialSuffix)

	assert.NotEmpty(t, progressCalls)
	lastProgress := progressCalls[len(progressCalls)-1]
	assert.Equal(t, int64(17), lastProgress.Downloaded)
}

func TestDownloader_Download_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		for i := 0; i < 1000; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
				w.Write(make([]byte, 1000))
				w.(http.Flusher).Flush()
			}
		}
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := downloader.Download(ctx, artifact(server.URL, "mods/test.jar"), destPath, nil)
	assert.Error(t, err)
	assert.NoFileExists(t, destPath)
}

func TestDownloader_Download_NotFound(t *testing.T) {
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, 1, attempt, "client errors are not retried")
}

func TestDownloader_Download_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), filepath.Join(t.TempDir(), "test.jar"), nil)

	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, domain.PlatformModrinth, rl.Platform)
}

func TestDownloader_Download_RetriesOnTransientError(t *testing.T) {
	content := []byte("ok after retries")
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	result, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.NoError(t, err)
	assert.Equal(t, destPath, result.Path)
	assert.Equal(t, int64(len(content)), result.Size)
	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, 3, attempt)
}

func TestDownloader_Download_RetriesExhausted(t *testing.T) {
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, 3, attempt)
}

func TestDownloader_Download_CreatesDirectories(t *testing.T) {
	content := []byte("test content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "nested", "dir", "test.jar")

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestDownloader_Download_ProgressTracking(t *testing.T) {
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 256)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(content)
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.bin")

	var lastProgress core.DownloadProgress
	progressFn := func(p core.DownloadProgress) {
		lastProgress = p
	}

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.bin"), destPath, progressFn)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), lastProgress.TotalBytes)
	assert.Equal(t, int64(1000), lastProgress.Downloaded)
	assert.InDelta(t, 100.0, lastProgress.Percentage, 0.1)
}

func TestDownloader_Download_FallsBackToDeclaredLength(t *testing.T) {
	content := []byte("test content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	downloader := core.NewDownloader(nil)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	data := artifact(server.URL, "mods/test.jar")
	data.Length = int64(len(content))

	var lastProgress core.DownloadProgress
	_, err := downloader.Download(context.Background(), data, destPath, func(p core.DownloadProgress) {
		lastProgress = p
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), lastProgress.TotalBytes)
}

func TestDownloader_Download_NoURL(t *testing.T) {
	downloader := core.NewDownloader(nil)
	_, err := downloader.Download(context.Background(), artifact("", "mods/test.jar"), filepath.Join(t.TempDir(), "x"), nil)
	assert.ErrorContains(t, err, "no download URL for test.jar")
}

func TestDownloader_Download_CustomHTTPClient(t *testing.T) {
	content := []byte("custom client test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent", r.Header.Get("User-Agent"))
		w.Write(content)
	}))
	defer server.Close()

	customClient := &http.Client{
		Transport: &testRoundTripper{
			header: "TestAgent",
			rt:     http.DefaultTransport,
		},
	}

	downloader := core.NewDownloader(customClient)
	destPath := filepath.Join(t.TempDir(), "test.jar")

	_, err := downloader.Download(context.Background(), artifact(server.URL, "mods/test.jar"), destPath, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

type testRoundTripper struct {
	header string
	rt     http.RoundTripper
}

func (t *testRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.header)
	return t.rt.RoundTrip(req)
}
