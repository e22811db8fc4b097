package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"mcmm/internal/domain"
	"mcmm/internal/linker"
	"mcmm/internal/logging"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ExecutorConfig holds the collaborators of an Executor
type ExecutorConfig struct {
	Downloader *Downloader
	Linker     linker.Linker       // Copy if nil
	Permits    *semaphore.Weighted // Shared with the resolver; DefaultParallelTasks if nil
	Observer   Observer
	Logger     *zerolog.Logger
}

// ExecutionReport accounts for every download and install of one run
type ExecutionReport struct {
	Downloaded []*domain.DownloadData
	Installed  []*domain.InstallData
	Failed     map[string]error // Keyed by instance-relative output path
	Skipped    int              // Downloads never started because the run stopped
	Bytes      int64
}

// Executor fetches downloads and places installs inside an instance directory
type Executor struct {
	downloader *Downloader
	linker     linker.Linker
	permits    *semaphore.Weighted
	observer   Observer
	log        zerolog.Logger
}

// NewExecutor creates an executor
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		downloader: cfg.Downloader,
		linker:     cfg.Linker,
		permits:    cfg.Permits,
		observer:   cfg.Observer,
		log:        logging.Get("executor"),
	}
	if e.downloader == nil {
		e.downloader = NewDownloader(nil)
	}
	if e.linker == nil {
		e.linker = linker.NewCopy()
	}
	if e.permits == nil {
		e.permits = semaphore.NewWeighted(DefaultParallelTasks)
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if cfg.Logger != nil {
		e.log = *cfg.Logger
	}
	return e
}

// Execute downloads every artifact into root, then places every install.
// A failed task does not stop its siblings; all failures are joined into the
// returned error once every task has finished. A rate limit stops new
// downloads from starting and skips the installs; the error then wraps
// domain.ErrRateLimited.
func (e *Executor) Execute(ctx context.Context, root string, downloads []*domain.DownloadData, installs []*domain.InstallData) (*ExecutionReport, error) {
	defer logging.Timed(e.log, "execute")()

	report := &ExecutionReport{Failed: make(map[string]error)}
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		stopped atomic.Bool
		errs    []error
	)

	fail := func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Failed[key] = err
		errs = append(errs, fmt.Errorf("%s: %w", key, err))
	}

	for i, data := range downloads {
		if err := e.permits.Acquire(ctx, 1); err != nil {
			for _, rest := range downloads[i:] {
				fail(rest.Output, err)
			}
			break
		}
		if stopped.Load() {
			e.permits.Release(1)
			mu.Lock()
			report.Skipped = len(downloads) - i
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.permits.Release(1)

			e.observer.DownloadStarted(data)
			dest := filepath.Join(root, filepath.FromSlash(data.Output))
			result, err := e.downloader.Download(ctx, data, dest, func(p DownloadProgress) {
				e.observer.DownloadProgress(data, p.Downloaded, p.TotalBytes)
			})
			e.observer.DownloadFinished(data, err)

			if err != nil {
				if errors.Is(err, domain.ErrRateLimited) {
					stopped.Store(true)
				}
				e.log.Debug().Err(err).Str("output", data.Output).Msg("download failed")
				fail(data.Output, err)
				return
			}

			mu.Lock()
			report.Downloaded = append(report.Downloaded, data)
			report.Bytes += result.Size
			mu.Unlock()
		}()
	}
	wg.Wait()

	if stopped.Load() {
		e.log.Warn().Int("skipped", report.Skipped).Msg("rate limited, stopped downloading")
		return report, fmt.Errorf("execution stopped: %w", errors.Join(errs...))
	}

	for _, inst := range installs {
		err := e.install(root, inst)
		e.observer.Installed(inst, err)
		if err != nil {
			fail(inst.Dest, err)
			continue
		}
		report.Installed = append(report.Installed, inst)
	}

	e.log.Info().
		Int("downloaded", len(report.Downloaded)).
		Int("installed", len(report.Installed)).
		Int("failed", len(report.Failed)).
		Int64("bytes", report.Bytes).
		Msg("execution finished")

	if len(errs) > 0 {
		return report, fmt.Errorf("%d task(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return report, nil
}

func (e *Executor) install(root string, inst *domain.InstallData) error {
	info, err := os.Stat(inst.SourcePath)
	if err != nil {
		return fmt.Errorf("reading install source: %w", err)
	}

	dest := inst.Target(root)
	switch {
	case info.Mode().IsRegular():
		return e.linker.PlaceFile(inst.SourcePath, dest)
	case info.IsDir():
		return linker.PlaceDir(e.linker, inst.SourcePath, dest)
	default:
		return fmt.Errorf("install source %s is neither a file nor a directory", inst.SourcePath)
	}
}
