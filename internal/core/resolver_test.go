package core_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mcmm/internal/core"
	"mcmm/internal/domain"
	"mcmm/internal/storage/cache"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

type fakeResult struct {
	data *domain.DownloadData
	err  error
}

// fakePlatforms resolves source IDs from a fixed table
type fakePlatforms struct {
	mu      sync.Mutex
	results map[string]fakeResult
	calls   map[string]int
	filters map[string][]*domain.Filters
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakePlatforms() *fakePlatforms {
	return &fakePlatforms{
		results: make(map[string]fakeResult),
		calls:   make(map[string]int),
		filters: make(map[string][]*domain.Filters),
	}
}

func (f *fakePlatforms) add(id domain.SourceID, filename string, deps ...domain.SourceID) {
	f.results[id.String()] = fakeResult{data: &domain.DownloadData{
		Source:       id,
		URL:          "https://cdn.example/" + filename,
		Output:       filename,
		Dependencies: deps,
	}}
}

func (f *fakePlatforms) fail(id domain.SourceID, err error) {
	f.results[id.String()] = fakeResult{err: err}
}

func (f *fakePlatforms) Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls[id.String()]++
	f.filters[id.String()] = filters
	r, ok := f.results[id.String()]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if r.err != nil {
		return nil, r.err
	}
	data := *r.data
	return &data, nil
}

func (f *fakePlatforms) callCount(id domain.SourceID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id.String()]
}

func (f *fakePlatforms) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func newTestResolver(platforms *fakePlatforms, permits int64, modpacks *core.ModpackExpander) *core.Resolver {
	log := zerolog.Nop()
	return core.NewResolver(core.ResolverConfig{
		Platforms: platforms,
		Permits:   semaphore.NewWeighted(permits),
		Modpacks:  modpacks,
		Logger:    &log,
	})
}

func outputs(downloads []*domain.DownloadData) []string {
	out := make([]string, len(downloads))
	for i, d := range downloads {
		out[i] = d.Output
	}
	sort.Strings(out)
	return out
}

func outcomeNames(outcomes []core.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Name
	}
	return out
}

func TestResolver_Resolve_IndependentSources(t *testing.T) {
	platforms := newFakePlatforms()
	profile := domain.NewProfile(domain.Filters{GameVersions: []string{"1.20.1"}})
	for i := 0; i < 5; i++ {
		id := domain.ModrinthID(fmt.Sprintf("mod-%d", i))
		require.NoError(t, profile.Add(domain.KindMods, fmt.Sprintf("Mod %d", i), domain.NewSource(id)))
		if i != 3 {
			platforms.add(id, fmt.Sprintf("mod-%d.jar", i))
		}
	}

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 5)
	assert.Equal(t, []string{"mods/mod-0.jar", "mods/mod-1.jar", "mods/mod-2.jar", "mods/mod-4.jar"}, outputs(result.Downloads))
	assert.True(t, result.Failed())

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Mod 3", failures[0].Name)
	assert.Equal(t, domain.FailureNotFound, failures[0].Failure())
}

func TestResolver_Resolve_EmptyProfile(t *testing.T) {
	result, err := newTestResolver(newFakePlatforms(), 50, nil).Resolve(context.Background(), domain.NewProfile(domain.Filters{}), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, result.Downloads)
	assert.False(t, result.Failed())
}

func TestResolver_Resolve_FollowsDependencies(t *testing.T) {
	platforms := newFakePlatforms()
	a, b, c, d := domain.ModrinthID("a"), domain.ModrinthID("b"), domain.ModrinthID("c"), domain.ModrinthID("d")
	platforms.add(a, "a.jar", b, c)
	platforms.add(b, "b.jar", c, d)
	platforms.add(c, "c.jar")
	platforms.add(d, "d.jar", a)

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindMods, "A", domain.NewSource(a)))

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 4)
	assert.False(t, result.Failed())
	assert.Equal(t, []string{"mods/a.jar", "mods/b.jar", "mods/c.jar", "mods/d.jar"}, outputs(result.Downloads))
	for _, id := range []domain.SourceID{a, b, c, d} {
		assert.Equal(t, 1, platforms.callCount(id), id.String())
	}
	assert.Contains(t, outcomeNames(result.Outcomes), "dependency of A: modrinth:b")
}

func TestResolver_Resolve_DependencyAlreadyInProfile(t *testing.T) {
	platforms := newFakePlatforms()
	api := domain.ModrinthID("fabric-api")
	platforms.add(domain.ModrinthID("sodium"), "sodium.jar", api.Pinned("v1"))
	platforms.add(api, "fabric-api.jar")

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindMods, "Sodium", domain.NewSource(domain.ModrinthID("sodium"))))
	require.NoError(t, profile.Add(domain.KindMods, "Fabric API", domain.NewSource(api)))

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Fabric API", "Sodium"}, outcomeNames(result.Outcomes))
	assert.Equal(t, 0, platforms.callCount(api.Pinned("v1")))
}

func TestResolver_Resolve_DependencyFailureIsRecorded(t *testing.T) {
	platforms := newFakePlatforms()
	platforms.add(domain.ModrinthID("a"), "a.jar", domain.ModrinthID("gone"))

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindMods, "A", domain.NewSource(domain.ModrinthID("a"))))

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "A", failures[0].Parent)
	assert.Equal(t, domain.ModrinthID("gone"), failures[0].Source)
}

func TestResolver_Resolve_RateLimitAbortsSession(t *testing.T) {
	platforms := newFakePlatforms()
	profile := domain.NewProfile(domain.Filters{})
	for i := 0; i < 10; i++ {
		id := domain.CurseforgeID(1000 + i)
		platforms.fail(id, &domain.RateLimitError{Platform: domain.PlatformCurseforge})
		require.NoError(t, profile.Add(domain.KindMods, fmt.Sprintf("Mod %d", i), domain.NewSource(id)))
	}

	result, err := newTestResolver(platforms, 1, nil).Resolve(context.Background(), profile, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Nil(t, result)
	assert.Equal(t, 1, platforms.totalCalls())
}

func TestResolver_Resolve_RateLimitDiscardsSuccesses(t *testing.T) {
	platforms := newFakePlatforms()
	profile := domain.NewProfile(domain.Filters{})
	platforms.add(domain.ModrinthID("ok"), "ok.jar")
	platforms.fail(domain.ModrinthID("limited"), &domain.RateLimitError{Platform: domain.PlatformModrinth})
	require.NoError(t, profile.Add(domain.KindMods, "OK", domain.NewSource(domain.ModrinthID("ok"))))
	require.NoError(t, profile.Add(domain.KindMods, "Limited", domain.NewSource(domain.ModrinthID("limited"))))

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Nil(t, result)
}

func TestResolver_Resolve_RespectsPermits(t *testing.T) {
	platforms := newFakePlatforms()
	platforms.delay = 20 * time.Millisecond
	profile := domain.NewProfile(domain.Filters{})
	for i := 0; i < 8; i++ {
		id := domain.ModrinthID(fmt.Sprintf("mod-%d", i))
		platforms.add(id, id.Project+".jar")
		require.NoError(t, profile.Add(domain.KindMods, id.Project, domain.NewSource(id)))
	}

	result, err := newTestResolver(platforms, 2, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.Len(t, result.Downloads, 8)
	assert.LessOrEqual(t, platforms.maxInFlight.Load(), int32(2))
}

func TestResolver_Resolve_CategoryFilters(t *testing.T) {
	platforms := newFakePlatforms()
	platforms.add(domain.ModrinthID("sodium"), "sodium.jar")
	platforms.add(domain.ModrinthID("complementary"), "complementary.zip")
	platforms.add(domain.ModrinthID("faithful"), "faithful.zip")

	profile := domain.NewProfile(domain.Filters{
		GameVersions: []string{"1.20.1"},
		ModLoaders:   []domain.ModLoader{domain.LoaderFabric},
	})
	require.NoError(t, profile.Add(domain.KindMods, "Sodium", domain.NewSource(domain.ModrinthID("sodium"))))
	require.NoError(t, profile.Add(domain.KindShaders, "Complementary", domain.NewSource(domain.ModrinthID("complementary"))))
	require.NoError(t, profile.Add(domain.KindResourcePacks, "Faithful", domain.NewSource(domain.ModrinthID("faithful"))))

	extra := &domain.Filters{ReleaseChannels: []domain.ReleaseChannel{domain.ChannelRelease}, ModLoaders: []domain.ModLoader{domain.LoaderFabric}}
	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, extra)
	require.NoError(t, err)

	assert.Equal(t, []string{"mods/sodium.jar", "resourcepacks/faithful.zip", "shaderpacks/complementary.zip"}, outputs(result.Downloads))

	mods := platforms.filters["modrinth:sodium"]
	require.Len(t, mods, 2)
	assert.Equal(t, []domain.ModLoader{domain.LoaderFabric}, mods[0].ModLoaders)
	assert.Equal(t, []string{"1.20.1"}, mods[0].GameVersions)
	assert.Equal(t, []domain.ReleaseChannel{domain.ChannelRelease}, mods[1].ReleaseChannels)

	for _, key := range []string{"modrinth:complementary", "modrinth:faithful"} {
		filters := platforms.filters[key]
		require.Len(t, filters, 2, key)
		assert.Nil(t, filters[0].ModLoaders, key)
		assert.Equal(t, []string{"1.20.1"}, filters[0].GameVersions, key)
		assert.Nil(t, filters[1].ModLoaders, key)
	}
	assert.Equal(t, []domain.ModLoader{domain.LoaderFabric}, extra.ModLoaders)
}

func TestResolver_Resolve_DependenciesGetBaselineFilters(t *testing.T) {
	platforms := newFakePlatforms()
	platforms.add(domain.ModrinthID("a"), "a.jar", domain.ModrinthID("lib"))
	platforms.add(domain.ModrinthID("lib"), "lib.jar")

	profile := domain.NewProfile(domain.Filters{GameVersions: []string{"1.20.1"}})
	src := domain.NewSource(domain.ModrinthID("a"))
	src.Filters = domain.Filters{GameVersions: []string{"1.20"}, Filename: "special"}
	require.NoError(t, profile.Add(domain.KindMods, "A", src))

	_, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	own := platforms.filters["modrinth:a"]
	require.Len(t, own, 1)
	assert.Equal(t, "special", own[0].Filename)

	dep := platforms.filters["modrinth:lib"]
	require.Len(t, dep, 1)
	assert.Equal(t, []string{"1.20.1"}, dep[0].GameVersions)
	assert.Empty(t, dep[0].Filename)
}

func TestResolver_Resolve_ReportsToObserver(t *testing.T) {
	platforms := newFakePlatforms()
	platforms.add(domain.ModrinthID("a"), "a.jar", domain.ModrinthID("b"))
	platforms.add(domain.ModrinthID("b"), "b.jar")

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindMods, "A", domain.NewSource(domain.ModrinthID("a"))))

	obs := &recordingObserver{}
	log := zerolog.Nop()
	r := core.NewResolver(core.ResolverConfig{Platforms: platforms, Observer: obs, Logger: &log})
	_, err := r.Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Len(t, obs.resolved(), 2)
}

// serveDir serves the files of dir over HTTP
func serveDir(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)
	return server
}

func newTestExpander(t *testing.T, server *httptest.Server) *core.ModpackExpander {
	t.Helper()
	return core.NewModpackExpander(
		core.NewDownloader(server.Client()),
		cache.New(t.TempDir()),
		semaphore.NewWeighted(4),
		zerolog.Nop(),
	)
}

func TestResolver_Resolve_ExpandsModrinthModpack(t *testing.T) {
	files := t.TempDir()
	server := serveDir(t, files)

	index := fmt.Sprintf(`{
		"formatVersion": 1,
		"game": "minecraft",
		"versionId": "1.0.0",
		"name": "Test Pack",
		"files": [
			{"path": "mods/inner.jar", "hashes": {"sha1": ""}, "downloads": ["%[1]s/inner.jar"], "fileSize": 5},
			{"path": "mods/server-only.jar", "env": {"client": "unsupported", "server": "required"}, "downloads": ["%[1]s/server-only.jar"]}
		],
		"dependencies": {"minecraft": "1.20.1", "fabric-loader": "0.15.0"}
	}`, server.URL)
	createNamedZip(t, filepath.Join(files, "pack.mrpack"), map[string]string{
		"modrinth.index.json":          index,
		"overrides/mods/bundled.jar":   "bundled",
		"overrides/config/sodium.txt":  "config",
		"client-overrides/options.txt": "options",
	})

	pack := domain.ModrinthID("test-pack")
	platforms := newFakePlatforms()
	platforms.results[pack.String()] = fakeResult{data: &domain.DownloadData{
		Source: pack,
		URL:    server.URL + "/pack.mrpack",
		Output: "pack.mrpack",
	}}

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindModpacks, "Pack", domain.NewSource(pack)))

	result, err := newTestResolver(platforms, 50, newTestExpander(t, server)).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.False(t, result.Failed())
	assert.Equal(t, []string{"mods/inner.jar"}, outputs(result.Downloads))

	var dests []string
	for _, inst := range result.Installs {
		dests = append(dests, inst.Dest)
		assert.FileExists(t, inst.SourcePath)
	}
	assert.ElementsMatch(t, []string{"config", "mods/bundled.jar", "options.txt"}, dests)
}

func TestResolver_Resolve_ModpackWithoutOverrides(t *testing.T) {
	files := t.TempDir()
	server := serveDir(t, files)
	createNamedZip(t, filepath.Join(files, "pack.mrpack"), map[string]string{
		"modrinth.index.json":        `{"formatVersion": 1, "name": "Pack", "files": []}`,
		"overrides/mods/bundled.jar": "bundled",
	})

	pack := domain.ModrinthID("pack")
	platforms := newFakePlatforms()
	platforms.results[pack.String()] = fakeResult{data: &domain.DownloadData{Source: pack, URL: server.URL + "/pack.mrpack", Output: "pack.mrpack"}}

	off := false
	src := domain.NewSource(pack)
	src.InstallOverrides = &off
	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindModpacks, "Pack", src))

	result, err := newTestResolver(platforms, 50, newTestExpander(t, server)).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Installs)
	assert.Empty(t, result.Downloads)
}

func TestResolver_Resolve_ExpandsCurseforgeModpack(t *testing.T) {
	files := t.TempDir()
	server := serveDir(t, files)
	createNamedZip(t, filepath.Join(files, "pack.zip"), map[string]string{
		"manifest.json": `{
			"minecraft": {"version": "1.20.1", "modLoaders": [{"id": "forge-47.2.0", "primary": true}]},
			"manifestType": "minecraftModpack",
			"name": "CF Pack",
			"files": [
				{"projectID": 1, "fileID": 10, "required": true},
				{"projectID": 2, "fileID": 20, "required": true},
				{"projectID": 3, "fileID": 30, "required": true}
			],
			"overrides": "overrides"
		}`,
	})

	pack := domain.CurseforgeID(999)
	platforms := newFakePlatforms()
	platforms.results[pack.String()] = fakeResult{data: &domain.DownloadData{Source: pack, URL: server.URL + "/pack.zip", Output: "pack.zip"}}
	platforms.add(domain.CurseforgeID(1).Pinned("10"), "jei.jar", domain.CurseforgeID(50))
	platforms.add(domain.CurseforgeID(2).Pinned("20"), "textures.zip")
	platforms.fail(domain.CurseforgeID(3).Pinned("30"), &domain.DistributionDeniedError{Project: "3", FileID: "30"})

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindModpacks, "CF", domain.NewSource(pack)))

	result, err := newTestResolver(platforms, 50, newTestExpander(t, server)).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"mods/jei.jar", "resourcepacks/textures.zip"}, outputs(result.Downloads))
	assert.Equal(t, 0, platforms.callCount(domain.CurseforgeID(50)))

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, domain.FailureDistributionDenied, failures[0].Failure())
	assert.Equal(t, "CF", failures[0].Parent)

	kinds := make(map[string]domain.SourceKind)
	for _, o := range result.Outcomes {
		kinds[o.Name] = o.Kind
	}
	assert.Equal(t, domain.KindResourcePacks, kinds["CF: curseforge:2@20"])
	assert.Equal(t, domain.KindMods, kinds["CF: curseforge:1@10"])
	assert.Equal(t, domain.KindModpacks, kinds["CF"])
}

func TestResolver_Resolve_ExpandsManyModpacksConcurrently(t *testing.T) {
	const packs, entries = 20, 30

	files := t.TempDir()
	server := serveDir(t, files)
	platforms := newFakePlatforms()
	profile := domain.NewProfile(domain.Filters{})

	for p := range packs {
		var manifestFiles []string
		for e := range entries {
			project := 1000*(p+1) + e
			manifestFiles = append(manifestFiles, fmt.Sprintf(`{"projectID": %d, "fileID": %d, "required": true}`, project, project))
			platforms.add(domain.CurseforgeID(project).Pinned(fmt.Sprint(project)), fmt.Sprintf("mod-%d.jar", project))
		}
		archive := fmt.Sprintf("pack-%d.zip", p)
		createNamedZip(t, filepath.Join(files, archive), map[string]string{
			"manifest.json": `{"manifestType": "minecraftModpack", "files": [` + strings.Join(manifestFiles, ",") + `]}`,
		})

		pack := domain.CurseforgeID(p + 1)
		platforms.results[pack.String()] = fakeResult{data: &domain.DownloadData{Source: pack, URL: server.URL + "/" + archive, Output: archive}}
		require.NoError(t, profile.Add(domain.KindModpacks, fmt.Sprintf("Pack %d", p), domain.NewSource(pack)))
	}

	result, err := newTestResolver(platforms, 8, newTestExpander(t, server)).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.False(t, result.Failed())
	assert.Len(t, result.Downloads, packs*entries)
	assert.Len(t, result.Outcomes, packs+packs*entries)
	for _, o := range result.Outcomes {
		if o.Kind == domain.KindModpacks {
			continue
		}
		assert.True(t, strings.HasPrefix(o.Name, o.Parent+": "), o.Name)
	}
}

func TestResolver_Resolve_ModpackExpansionFailure(t *testing.T) {
	files := t.TempDir()
	server := serveDir(t, files)
	createNamedZip(t, filepath.Join(files, "broken.zip"), map[string]string{"readme.txt": "not a pack"})

	pack := domain.ModrinthID("broken")
	platforms := newFakePlatforms()
	platforms.results[pack.String()] = fakeResult{data: &domain.DownloadData{Source: pack, URL: server.URL + "/broken.zip", Output: "broken.zip"}}
	platforms.add(domain.ModrinthID("a"), "a.jar")

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindModpacks, "Broken", domain.NewSource(pack)))
	require.NoError(t, profile.Add(domain.KindMods, "A", domain.NewSource(domain.ModrinthID("a"))))

	result, err := newTestResolver(platforms, 50, newTestExpander(t, server)).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"mods/a.jar"}, outputs(result.Downloads))
	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Broken", failures[0].Name)
	assert.ErrorContains(t, failures[0].Err, "not a modpack")
}

func TestResolver_Resolve_ModpackWithoutExpander(t *testing.T) {
	pack := domain.ModrinthID("pack")
	platforms := newFakePlatforms()
	platforms.add(pack, "pack.mrpack")

	profile := domain.NewProfile(domain.Filters{})
	require.NoError(t, profile.Add(domain.KindModpacks, "Pack", domain.NewSource(pack)))

	result, err := newTestResolver(platforms, 50, nil).Resolve(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.True(t, result.Failed())
}
