package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceID(t *testing.T) {
	tests := []struct {
		in      string
		want    SourceID
		wantErr bool
	}{
		{in: "curseforge:238222", want: CurseforgeID(238222)},
		{in: "cf:238222@4712345", want: CurseforgeID(238222).Pinned("4712345")},
		{in: "modrinth:sodium", want: ModrinthID("sodium")},
		{in: "modrinth:AANobbMI@rAfhHfow", want: ModrinthID("AANobbMI").Pinned("rAfhHfow")},
		{in: "github:CaffeineMC/sodium", want: GithubID("CaffeineMC", "sodium")},
		{in: "gh:owner/repo@99", want: GithubID("owner", "repo").Pinned("99")},
		{in: "curseforge:jei", wantErr: true},
		{in: "github:onlyowner", wantErr: true},
		{in: "nexus:123", wantErr: true},
		{in: "modrinth:", wantErr: true},
		{in: "sodium", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ParseSourceID(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestSourceID_Accessors(t *testing.T) {
	id := GithubID("CaffeineMC", "sodium").Pinned("12")
	assert.True(t, id.IsPinned())
	assert.False(t, id.Unpinned().IsPinned())

	owner, repo, err := id.GithubRepo()
	require.NoError(t, err)
	assert.Equal(t, "CaffeineMC", owner)
	assert.Equal(t, "sodium", repo)

	n, err := CurseforgeID(306612).CurseforgeProject()
	require.NoError(t, err)
	assert.Equal(t, 306612, n)
}

func TestSourceKind_Directory(t *testing.T) {
	assert.Equal(t, "mods", KindMods.Directory())
	assert.Equal(t, "resourcepacks", KindResourcePacks.Directory())
	assert.Equal(t, "shaderpacks", KindShaders.Directory())
	assert.Equal(t, "", KindModpacks.Directory())
	assert.True(t, KindMods.BacksUp())
	assert.False(t, KindShaders.BacksUp())
}

func TestSource_EffectiveFilters(t *testing.T) {
	baseline := Filters{GameVersions: []string{"1.20.1"}, ModLoaders: []ModLoader{LoaderFabric}}
	own := Filters{ModLoaders: []ModLoader{LoaderForge}}

	replaced := Source{ID: ModrinthID("x"), Filters: own}.EffectiveFilters(baseline, nil)
	require.Len(t, replaced, 1)
	assert.Equal(t, []string{"1.20.1"}, replaced[0].GameVersions)
	assert.Equal(t, []ModLoader{LoaderForge}, replaced[0].ModLoaders)

	stacked := Source{ID: ModrinthID("x"), Filters: own, StackFilters: true}.EffectiveFilters(baseline, nil)
	require.Len(t, stacked, 2)
	assert.Equal(t, []ModLoader{LoaderFabric}, stacked[0].ModLoaders)
	assert.Equal(t, []ModLoader{LoaderForge}, stacked[1].ModLoaders)

	extra := &Filters{ReleaseChannels: []ReleaseChannel{ChannelRelease}}
	withExtra := NewSource(ModrinthID("x")).EffectiveFilters(baseline, extra)
	require.Len(t, withExtra, 2)
	assert.Equal(t, extra.ReleaseChannels, withExtra[1].ReleaseChannels)

	assert.Len(t, NewSource(ModrinthID("x")).EffectiveFilters(baseline, &Filters{}), 1)
}

func TestSource_ShouldInstallOverrides(t *testing.T) {
	no := false
	assert.True(t, NewSource(ModrinthID("pack")).ShouldInstallOverrides())
	assert.False(t, Source{ID: ModrinthID("pack"), InstallOverrides: &no}.ShouldInstallOverrides())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{fmt.Errorf("wrapped: %w", ErrNoCompatibleVersion), FailureNoCompatibleVersion},
		{fmt.Errorf("wrapped: %w", ErrNotFound), FailureNotFound},
		{&DistributionDeniedError{Project: "Optifine"}, FailureDistributionDenied},
		{fmt.Errorf("outer: %w", &RateLimitError{Platform: PlatformModrinth}), FailureRateLimited},
		{errors.New("connection reset"), FailureNetwork},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err))
	}
}
