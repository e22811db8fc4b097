package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"mcmm/internal/domain"
	"mcmm/internal/logging"
	"mcmm/internal/source"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultParallelTasks bounds simultaneous network operations when no limit is configured
const DefaultParallelTasks = 50

// Outcome is the result of resolving one source or dependency
type Outcome struct {
	Kind   domain.SourceKind
	Name   string          // Profile name, or a name derived from Parent
	Source domain.SourceID // What was asked for
	Parent string          // Name of the entry that required this one
	Data   *domain.DownloadData
	Err    error
}

// Failure classifies the outcome's error
func (o Outcome) Failure() domain.FailureKind {
	return domain.Classify(o.Err)
}

// Resolution is everything a profile resolved to
type Resolution struct {
	Downloads []*domain.DownloadData
	Installs  []*domain.InstallData
	Outcomes  []Outcome
}

// Failed reports whether at least one entry could not be resolved
func (r *Resolution) Failed() bool {
	return slices.ContainsFunc(r.Outcomes, func(o Outcome) bool { return o.Err != nil })
}

// Failures returns the outcomes that carry an error
func (r *Resolution) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// ResolverConfig holds the collaborators of a Resolver
type ResolverConfig struct {
	Platforms source.Resolver
	Permits   *semaphore.Weighted // Shared with the executor; DefaultParallelTasks if nil
	Modpacks  *ModpackExpander    // Required when a profile lists modpacks
	Observer  Observer
	Logger    *zerolog.Logger
}

// Resolver turns a profile into concrete artifacts
type Resolver struct {
	platforms source.Resolver
	permits   *semaphore.Weighted
	modpacks  *ModpackExpander
	observer  Observer
	log       zerolog.Logger
}

// NewResolver creates a resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		platforms: cfg.Platforms,
		permits:   cfg.Permits,
		modpacks:  cfg.Modpacks,
		observer:  cfg.Observer,
		log:       logging.Get("resolver"),
	}
	if r.permits == nil {
		r.permits = semaphore.NewWeighted(DefaultParallelTasks)
	}
	if r.observer == nil {
		r.observer = NopObserver{}
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	}
	return r
}

type job struct {
	kind      domain.SourceKind
	name      string
	parent    string
	id        domain.SourceID
	filters   []*domain.Filters
	baseline  domain.Filters  // Inherited by dependencies
	extra     *domain.Filters // Inherited by dependencies
	deps      bool            // Follow the artifact's dependencies
	packEntry bool            // Route by file extension once resolved
}

// session is one resolution run. Workers spawn dependency jobs themselves,
// so wg covers every job started so far, including those started by workers.
type session struct {
	*Resolver

	wg      sync.WaitGroup
	stopped atomic.Bool

	mu       sync.Mutex
	seen     map[string]struct{}
	outcomes []Outcome
	fatal    error
}

// Resolve resolves every source in profile concurrently, follows declared
// dependencies and expands modpacks. Individual failures are recorded in
// the returned outcomes. A rate limit aborts the whole session: no further
// work is started and the error wraps domain.ErrRateLimited.
func (r *Resolver) Resolve(ctx context.Context, profile *domain.Profile, extra *domain.Filters) (*Resolution, error) {
	defer logging.Timed(r.log, "resolve")()

	s := &session{Resolver: r, seen: make(map[string]struct{})}

	for _, kind := range domain.SourceKinds {
		for _, name := range profile.Names(kind) {
			s.seen[dependencyKey(profile.Sources(kind)[name].ID)] = struct{}{}
		}
	}

	for _, kind := range domain.SourceKinds {
		baseline, adhoc := filtersFor(kind, profile.Filters, extra)
		for _, name := range profile.Names(kind) {
			src := profile.Sources(kind)[name]
			s.spawn(ctx, job{
				kind:     kind,
				name:     name,
				id:       src.ID,
				filters:  src.EffectiveFilters(baseline, adhoc),
				baseline: baseline,
				extra:    adhoc,
				deps:     kind != domain.KindModpacks,
			})
		}
	}
	s.wg.Wait()
	if err := s.abortErr(); err != nil {
		return nil, err
	}

	result := &Resolution{}
	var packs []int
	for i, o := range s.outcomes {
		switch {
		case o.Err != nil:
		case o.Kind == domain.KindModpacks:
			packs = append(packs, i)
		default:
			result.Downloads = append(result.Downloads, o.Data)
		}
	}

	if len(packs) > 0 {
		downloads, installs, err := s.expandModpacks(ctx, profile, packs)
		if err != nil {
			return nil, err
		}
		result.Downloads = append(result.Downloads, downloads...)
		result.Installs = installs
	}

	result.Outcomes = s.outcomes
	slices.SortStableFunc(result.Outcomes, func(a, b Outcome) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.Name, b.Name)
	})

	r.log.Info().
		Int("outcomes", len(result.Outcomes)).
		Int("downloads", len(result.Downloads)).
		Int("installs", len(result.Installs)).
		Bool("failed", result.Failed()).
		Msg("resolution finished")
	return result, nil
}

func (s *session) spawn(ctx context.Context, j job) {
	if s.stopped.Load() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, j)
	}()
}

func (s *session) run(ctx context.Context, j job) {
	if err := s.permits.Acquire(ctx, 1); err != nil {
		s.record(Outcome{Kind: j.kind, Name: j.name, Source: j.id, Parent: j.parent, Err: err})
		return
	}
	if s.stopped.Load() {
		s.permits.Release(1)
		return
	}
	data, err := s.platforms.Resolve(ctx, j.id, j.filters)
	limited := errors.Is(err, domain.ErrRateLimited)
	if limited {
		s.abort(err)
	}
	s.permits.Release(1)
	if limited {
		return
	}

	outcome := Outcome{Kind: j.kind, Name: j.name, Source: j.id, Parent: j.parent, Err: err}
	if err != nil {
		s.log.Debug().Err(err).Str("name", j.name).Stringer("source", j.id).Msg("resolution failed")
		s.record(outcome)
		return
	}

	dir := j.kind.Directory()
	if j.packEntry {
		outcome.Kind = packEntryKind(data.Filename())
		dir = outcome.Kind.Directory()
	}
	data.Place(dir, data.Filename())
	outcome.Data = data
	s.record(outcome)

	if !j.deps {
		return
	}
	for _, dep := range data.Dependencies {
		if !s.claim(dep) {
			continue
		}
		s.spawn(ctx, job{
			kind:     j.kind,
			name:     fmt.Sprintf("dependency of %s: %s", j.name, dep),
			parent:   j.name,
			id:       dep,
			filters:  domain.NewSource(dep).EffectiveFilters(j.baseline, j.extra),
			baseline: j.baseline,
			extra:    j.extra,
			deps:     true,
		})
	}
}

func (s *session) record(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	s.observer.Resolved(o)
}

// claim marks a dependency as scheduled and reports whether the caller
// should resolve it
func (s *session) claim(id domain.SourceID) bool {
	key := dependencyKey(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *session) abort(err error) {
	s.stopped.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
		s.log.Warn().Err(err).Msg("rate limited, aborting resolution")
	}
}

func (s *session) abortErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal != nil {
		return fmt.Errorf("resolution aborted: %w", s.fatal)
	}
	return nil
}

// expandModpacks fetches every resolved modpack and resolves the entries its
// manifest pins. Expansion failures are recorded on the modpack's outcome.
func (s *session) expandModpacks(ctx context.Context, profile *domain.Profile, packs []int) ([]*domain.DownloadData, []*domain.InstallData, error) {
	expansions := make([]*Expansion, len(packs))

	// No workers run until the entry jobs below, so outcomes can be read here
	names := make([]string, len(packs))
	for i, idx := range packs {
		names[i] = s.outcomes[idx].Name
	}

	var g errgroup.Group
	for i, idx := range packs {
		o := s.outcomes[idx]
		g.Go(func() error {
			if s.modpacks == nil {
				s.outcomes[idx].Err = fmt.Errorf("modpack %s: no modpack expander configured", o.Name)
				return nil
			}
			_, src, _ := profile.Lookup(domain.KindModpacks, o.Name)
			exp, err := s.modpacks.Expand(ctx, o.Data, src.ShouldInstallOverrides())
			if errors.Is(err, domain.ErrRateLimited) {
				return err
			}
			if err != nil {
				s.outcomes[idx].Err = err
				s.observer.Warn(fmt.Sprintf("modpack %s: %v", o.Name, err))
				return nil
			}
			expansions[i] = exp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("resolution aborted: %w", err)
	}

	var (
		downloads []*domain.DownloadData
		installs  []*domain.InstallData
	)
	start := len(s.outcomes)
	for i, exp := range expansions {
		if exp == nil {
			continue
		}
		pack := names[i]
		downloads = append(downloads, exp.Downloads...)
		installs = append(installs, exp.Installs...)
		for _, id := range exp.Pinned {
			s.spawn(ctx, job{
				kind:      domain.KindMods,
				name:      fmt.Sprintf("%s: %s", pack, id),
				parent:    pack,
				id:        id,
				packEntry: true,
			})
		}
	}

	s.wg.Wait()
	if err := s.abortErr(); err != nil {
		return nil, nil, err
	}

	for _, o := range s.outcomes[start:] {
		if o.Data != nil {
			downloads = append(downloads, o.Data)
		}
	}
	return downloads, installs, nil
}

// filtersFor returns the baseline and ad-hoc filters for a category.
// Resource packs and shaders are not tied to a mod loader.
func filtersFor(kind domain.SourceKind, baseline domain.Filters, extra *domain.Filters) (domain.Filters, *domain.Filters) {
	if kind != domain.KindResourcePacks && kind != domain.KindShaders {
		return baseline, extra
	}
	baseline.ModLoaders = nil
	if extra != nil {
		e := *extra
		e.ModLoaders = nil
		extra = &e
	}
	return baseline, extra
}

// packEntryKind routes a file pinned by a CurseForge modpack manifest
func packEntryKind(filename string) domain.SourceKind {
	if strings.EqualFold(path.Ext(filename), ".zip") {
		return domain.KindResourcePacks
	}
	return domain.KindMods
}

// dependencyKey identifies a project regardless of which version was asked for
func dependencyKey(id domain.SourceID) string {
	return id.Unpinned().String()
}
