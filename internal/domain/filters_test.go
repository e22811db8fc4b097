package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sodiumCandidate() Candidate {
	return Candidate{
		GameVersions: []string{"1.20", "1.20.1"},
		Loaders:      []ModLoader{LoaderFabric},
		Channel:      ChannelRelease,
		Filename:     "sodium-fabric-0.5.3+mc1.20.1.jar",
		Title:        "Sodium",
		Description:  "A modern rendering engine for Minecraft",
	}
}

func mustCompile(t *testing.T, f Filters) *Matcher {
	t.Helper()
	m, err := f.Compile()
	require.NoError(t, err)
	return m
}

func TestMatcher_Matches(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"empty filters match everything", Filters{}, true},
		{"version hit", Filters{GameVersions: []string{"1.19.4", "1.20.1"}}, true},
		{"version miss", Filters{GameVersions: []string{"1.19.4"}}, false},
		{"empty version list matches nothing", Filters{GameVersions: []string{}}, false},
		{"version range hit", Filters{GameVersions: []string{">=1.20, <1.21"}}, true},
		{"version range miss", Filters{GameVersions: []string{">=1.21"}}, false},
		{"loader hit", Filters{ModLoaders: []ModLoader{LoaderForge, LoaderFabric}}, true},
		{"loader miss", Filters{ModLoaders: []ModLoader{LoaderForge}}, false},
		{"quilt accepts fabric", Filters{ModLoaders: []ModLoader{LoaderQuilt}}, true},
		{"channel hit", Filters{ReleaseChannels: []ReleaseChannel{ChannelRelease, ChannelBeta}}, true},
		{"channel miss", Filters{ReleaseChannels: []ReleaseChannel{ChannelAlpha}}, false},
		{"filename search is unanchored", Filters{Filename: `fabric-0\.5`}, true},
		{"filename miss", Filters{Filename: `forge`}, false},
		{"title is case sensitive", Filters{Title: `sodium`}, false},
		{"title hit", Filters{Title: `^Sod`}, true},
		{"description hit", Filters{Description: `rendering`}, true},
		{
			"all fields must match",
			Filters{GameVersions: []string{"1.20.1"}, ModLoaders: []ModLoader{LoaderFabric}, Filename: `forge`},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustCompile(t, tt.filters).Matches(sodiumCandidate()))
		})
	}
}

func TestMatcher_FabricDoesNotAcceptQuilt(t *testing.T) {
	quiltOnly := Candidate{Loaders: []ModLoader{LoaderQuilt}}

	assert.False(t, mustCompile(t, Filters{ModLoaders: []ModLoader{LoaderFabric}}).Matches(quiltOnly))
	assert.True(t, mustCompile(t, Filters{ModLoaders: []ModLoader{LoaderQuilt}}).Matches(quiltOnly))
}

func TestFilters_CompileErrors(t *testing.T) {
	_, err := Filters{Filename: "("}.Compile()
	assert.Error(t, err)

	_, err = Filters{GameVersions: []string{">= banana"}}.Compile()
	assert.Error(t, err)
}

func TestConcat_RightBiased(t *testing.T) {
	base := Filters{
		GameVersions:    []string{"1.20.1"},
		ModLoaders:      []ModLoader{LoaderFabric},
		ReleaseChannels: []ReleaseChannel{ChannelRelease},
		Filename:        "base",
	}
	override := Filters{
		ModLoaders: []ModLoader{LoaderQuilt, LoaderFabric},
		Title:      "override",
	}

	got := Concat(base, override)

	assert.Equal(t, []string{"1.20.1"}, got.GameVersions)
	assert.Equal(t, []ModLoader{LoaderQuilt, LoaderFabric}, got.ModLoaders)
	assert.Equal(t, []ReleaseChannel{ChannelRelease}, got.ReleaseChannels)
	assert.Equal(t, "base", got.Filename)
	assert.Equal(t, "override", got.Title)
	assert.Empty(t, got.Description)
}

func TestConcat_DoesNotAlias(t *testing.T) {
	base := Filters{GameVersions: []string{"1.20.1"}}
	got := Concat(base, Filters{})
	got.GameVersions[0] = "changed"

	assert.Equal(t, "1.20.1", base.GameVersions[0])
}

func TestMatchers_AND(t *testing.T) {
	a := Filters{GameVersions: []string{"1.20.1"}}
	b := Filters{ModLoaders: []ModLoader{LoaderForge}}

	ms, err := CompileAll([]*Filters{&a, nil, &b})
	require.NoError(t, err)
	require.Len(t, ms, 2)

	assert.False(t, ms.Matches(sodiumCandidate()))

	b.ModLoaders = []ModLoader{LoaderFabric}
	ms, err = CompileAll([]*Filters{&a, &b})
	require.NoError(t, err)
	assert.True(t, ms.Matches(sodiumCandidate()))
}

func TestFilters_Warnings(t *testing.T) {
	assert.Empty(t, Filters{}.Warnings())
	assert.Empty(t, Filters{GameVersions: []string{"1.20.1"}, ModLoaders: []ModLoader{LoaderQuilt, LoaderFabric}}.Warnings())
	assert.Equal(t, []string{"potentially lax version requirements"}, Filters{GameVersions: []string{"1.20"}}.Warnings())
	assert.Equal(t, []string{"potentially lax version requirements"}, Filters{GameVersions: []string{">=1.20"}}.Warnings())
	assert.Empty(t, Filters{GameVersions: []string{"=1.20.1"}}.Warnings())
	assert.Equal(t,
		[]string{"specified multiple possible mod loaders"},
		Filters{ModLoaders: []ModLoader{LoaderFabric, LoaderForge}}.Warnings())
}

func TestParseModLoader(t *testing.T) {
	l, err := ParseModLoader("  NeoForge ")
	require.NoError(t, err)
	assert.Equal(t, LoaderNeoForge, l)

	_, err = ParseModLoader("rift")
	assert.Error(t, err)
}

func TestLatestGameVersion(t *testing.T) {
	assert.Equal(t, "1.20.10", LatestGameVersion([]string{"1.20.2", "1.20.10", "1.19.4"}))
	assert.Equal(t, "", LatestGameVersion(nil))
	assert.Equal(t, -1, CompareGameVersions("1.9", "1.10"))
	assert.Equal(t, 0, CompareGameVersions("1.20.1", "1.20.1"))
}
