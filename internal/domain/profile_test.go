package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_AddCaseInsensitiveUnique(t *testing.T) {
	p := NewProfile(Filters{})

	require.NoError(t, p.Add(KindMods, "Sodium", NewSource(ModrinthID("sodium"))))
	err := p.Add(KindMods, "sodium", NewSource(ModrinthID("sodium")))
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Same name in a different category is fine
	require.NoError(t, p.Add(KindShaders, "sodium", NewSource(ModrinthID("sodium"))))

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"Sodium"}, p.Names(KindMods))
}

func TestProfile_LookupAndRemove(t *testing.T) {
	p := NewProfile(Filters{})
	require.NoError(t, p.Add(KindResourcePacks, "Faithful", NewSource(CurseforgeID(236821))))

	name, src, ok := p.Lookup(KindResourcePacks, "FAITHFUL")
	require.True(t, ok)
	assert.Equal(t, "Faithful", name)
	assert.Equal(t, CurseforgeID(236821), src.ID)

	removed, err := p.Remove(KindResourcePacks, "faithful")
	require.NoError(t, err)
	assert.Equal(t, "Faithful", removed)
	assert.Empty(t, p.Sources(KindResourcePacks))

	_, err = p.Remove(KindResourcePacks, "faithful")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfile_AddRejectsEmptyName(t *testing.T) {
	p := NewProfile(Filters{})
	assert.Error(t, p.Add(KindMods, "  ", NewSource(ModrinthID("x"))))
}

func TestDownloadData_Paths(t *testing.T) {
	d := &DownloadData{}
	d.Place("mods", "sodium.jar")
	assert.Equal(t, "mods/sodium.jar", d.Output)
	assert.Equal(t, "sodium.jar", d.Filename())
	assert.Equal(t, "mods", d.Dir())

	i := &InstallData{SourcePath: "/tmp/x/config", Dest: "config"}
	assert.Equal(t, "config", i.Filename())
	assert.Equal(t, ".", i.Dir())
}
