package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mcmm/internal/domain"
	"mcmm/internal/linker"
	"mcmm/internal/logging"
	"mcmm/internal/source"
	"mcmm/internal/storage/cache"
	"mcmm/internal/storage/config"
	"mcmm/internal/storage/db"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// historyLimit is how many runs are kept per profile
const historyLimit = 100

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	ConfigDir  string       // Directory for configuration files
	DataDir    string       // Directory for database and persistent data
	CacheDir   string       // Directory for modpack archives; config cache_path wins
	HTTPClient *http.Client // Shared by platforms and downloads; built from config if nil
}

// Service is the main orchestrator for profile upgrades
type Service struct {
	config     *config.Config
	db         *db.DB
	cache      *cache.Cache
	registry   *source.Registry
	permits    *semaphore.Weighted
	httpClient *http.Client
	linker     linker.Linker
	profiles   *ProfileManager
	log        zerolog.Logger

	configDir string
}

// NewService creates a new core service instance
func NewService(cfg ServiceConfig) (*Service, error) {
	appConfig, err := config.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	method, err := linker.ParseMethod(appConfig.InstallMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	database, err := db.New(filepath.Join(cfg.DataDir, "mcmm.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cacheDir := cfg.CacheDir
	if appConfig.CachePath != "" {
		cacheDir = appConfig.CachePath
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = source.NewHTTPClient(appConfig.UserAgent, 0)
	}

	return &Service{
		config:     appConfig,
		db:         database,
		cache:      cache.New(cacheDir),
		registry:   source.NewRegistry(),
		permits:    semaphore.NewWeighted(int64(appConfig.ParallelTasks)),
		httpClient: httpClient,
		linker:     linker.New(method),
		profiles:   NewProfileManager(cfg.ConfigDir, appConfig),
		log:        logging.Get("service"),
		configDir:  cfg.ConfigDir,
	}, nil
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RegisterPlatform adds a platform client to the registry
func (s *Service) RegisterPlatform(p source.Platform) {
	s.registry.Register(p)
}

// Registry returns the platform registry
func (s *Service) Registry() *source.Registry {
	return s.registry
}

// HTTPClient returns the client platforms should use
func (s *Service) HTTPClient() *http.Client {
	return s.httpClient
}

// Config returns the loaded application config
func (s *Service) Config() *config.Config {
	return s.config
}

// SaveConfig writes the application config back to disk
func (s *Service) SaveConfig() error {
	return s.config.Save(s.configDir)
}

// ConfigDir returns the configuration directory
func (s *Service) ConfigDir() string {
	return s.configDir
}

// Cache returns the modpack cache
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// DB returns the database
func (s *Service) DB() *db.DB {
	return s.db
}

// SaveToken saves an API token for a platform
func (s *Service) SaveToken(platform domain.Platform, apiKey string) error {
	return s.db.SaveToken(platform, apiKey)
}

// GetToken retrieves the API token of a platform
func (s *Service) GetToken(platform domain.Platform) (*db.StoredToken, error) {
	return s.db.GetToken(platform)
}

// DeleteToken removes the API token of a platform
func (s *Service) DeleteToken(platform domain.Platform) error {
	return s.db.DeleteToken(platform)
}

// IsAuthenticated checks if a platform has a stored API token
func (s *Service) IsAuthenticated(platform domain.Platform) bool {
	has, err := s.db.HasToken(platform)
	if err != nil {
		return false
	}
	return has
}

// Profiles returns the manager of registered profiles
func (s *Service) Profiles() *ProfileManager {
	return s.profiles
}

// History lists recorded upgrades of a profile, newest first
func (s *Service) History(profile string, limit int) ([]db.Run, error) {
	return s.db.ListRuns(profile, limit)
}

// Check resolves one source against a profile's baseline filters without
// fetching anything
func (s *Service) Check(ctx context.Context, kind domain.SourceKind, src domain.Source, baseline domain.Filters) (*domain.DownloadData, error) {
	baseline, _ = filtersFor(kind, baseline, nil)
	return s.registry.Resolve(ctx, src.ID, src.EffectiveFilters(baseline, nil))
}

// UpgradeStatus summarises how an upgrade ended
type UpgradeStatus int

const (
	StatusSucceeded UpgradeStatus = iota
	StatusPartial                 // Finished with some sources or tasks failed
	StatusAborted                 // Stopped by a rate limit
	StatusFailed                  // Stopped by a filesystem or configuration error
)

func (s UpgradeStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusPartial:
		return "partial"
	case StatusAborted:
		return "aborted"
	default:
		return "failed"
	}
}

// UpgradeOptions selects what to upgrade
type UpgradeOptions struct {
	Name        string // Profile name recorded in history
	Profile     *domain.Profile
	InstanceDir string
	Extra       *domain.Filters // Ad-hoc filters ANDed with the profile's
	Observer    Observer
}

// UpgradeResult describes one upgrade run
type UpgradeResult struct {
	Status     UpgradeStatus
	Resolution *Resolution
	Reconciled []*Reconciliation
	Report     *ExecutionReport // Nil when nothing had to be fetched or placed
	UpToDate   bool
	Warnings   []string
	Err        error // Aggregated task failures of a partial run
}

// Upgrade resolves the profile, reconciles the instance's managed
// directories and fetches whatever is missing. A partial run returns a nil
// error with result.Err set; an aborted or failed run returns the error.
func (s *Service) Upgrade(ctx context.Context, opts UpgradeOptions) (*UpgradeResult, error) {
	started := time.Now()
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	result := &UpgradeResult{}
	warn := func(msg string) {
		result.Warnings = append(result.Warnings, msg)
		observer.Warn(msg)
	}

	for _, w := range opts.Profile.Filters.Warnings() {
		warn(w)
	}

	resolver := NewResolver(ResolverConfig{
		Platforms: s.registry,
		Permits:   s.permits,
		Modpacks:  NewModpackExpander(NewDownloader(s.httpClient), s.cache, s.permits, logging.Get("modpack")),
		Observer:  observer,
	})
	resolution, err := resolver.Resolve(ctx, opts.Profile, opts.Extra)
	if err != nil {
		return s.finish(opts.Name, started, result, err)
	}
	result.Resolution = resolution

	var (
		downloads []*domain.DownloadData
		installs  []*domain.InstallData
	)
	reconciler := NewReconciler(s.log)
	for _, kind := range domain.SourceKinds {
		if kind.Directory() == "" {
			continue
		}
		rec, err := reconciler.Reconcile(opts.InstanceDir, kind.Directory(), resolution.Downloads, resolution.Installs, kind.BacksUp())
		if err != nil {
			return s.finish(opts.Name, started, result, fmt.Errorf("reconciling %s: %w", kind.Directory(), err))
		}
		if w := rec.DuplicateWarning(); w != "" {
			warn(w)
		}
		result.Reconciled = append(result.Reconciled, rec)
		downloads = append(downloads, rec.Downloads...)
		installs = append(installs, rec.Installs...)
	}
	for _, d := range resolution.Downloads {
		if !isManagedDir(d.Dir()) && !exists(filepath.Join(opts.InstanceDir, filepath.FromSlash(d.Output))) {
			downloads = append(downloads, d)
		}
	}
	for _, inst := range resolution.Installs {
		if !isManagedDir(inst.Dir()) {
			installs = append(installs, inst)
		}
	}

	if len(downloads) == 0 && len(installs) == 0 {
		result.UpToDate = true
		s.log.Info().Str("profile", opts.Name).Msg("all up to date")
		return s.finish(opts.Name, started, result, nil)
	}

	executor := NewExecutor(ExecutorConfig{
		Downloader: NewDownloader(s.httpClient),
		Linker:     s.linker,
		Permits:    s.permits,
		Observer:   observer,
	})
	report, err := executor.Execute(ctx, opts.InstanceDir, downloads, installs)
	result.Report = report
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		return s.finish(opts.Name, started, result, err)
	}
	result.Err = err
	return s.finish(opts.Name, started, result, nil)
}

// finish sets the status, records the run and returns the outcome of Upgrade
func (s *Service) finish(name string, started time.Time, result *UpgradeResult, err error) (*UpgradeResult, error) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		result.Status = StatusAborted
	case err != nil:
		result.Status = StatusFailed
	case result.Err != nil || (result.Resolution != nil && result.Resolution.Failed()):
		result.Status = StatusPartial
	default:
		result.Status = StatusSucceeded
	}

	run := &db.Run{
		Profile:    name,
		Status:     result.Status.String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if res := result.Resolution; res != nil {
		run.Failed = len(res.Failures())
		run.Resolved = len(res.Outcomes) - run.Failed
	}
	for _, rec := range result.Reconciled {
		run.Archived += len(rec.Archived)
		run.Deleted += len(rec.Deleted)
	}
	if rep := result.Report; rep != nil {
		run.Downloaded = len(rep.Downloaded)
		run.Installed = len(rep.Installed)
	}
	switch {
	case err != nil:
		run.Error = err.Error()
	case result.Err != nil:
		run.Error = result.Err.Error()
	}

	if name != "" {
		if recErr := s.db.RecordRun(run); recErr != nil {
			s.log.Warn().Err(recErr).Msg("could not record upgrade")
		} else if pruneErr := s.db.PruneRuns(name, historyLimit); pruneErr != nil {
			s.log.Warn().Err(pruneErr).Msg("could not prune upgrade history")
		}
	}

	s.log.Info().
		Str("profile", name).
		Stringer("status", result.Status).
		Dur("took", run.FinishedAt.Sub(started)).
		Msg("upgrade finished")

	return result, err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
