package main

import (
	"fmt"
	"strings"

	"mcmm/internal/domain"

	"github.com/spf13/pflag"
)

// filterFlags collects filter options shared by several commands
type filterFlags struct {
	versions    []string
	loaders     []string
	channels    []string
	filename    string
	title       string
	description string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.versions, "game-version", nil, "game versions or ranges (e.g. 1.20.1, >=1.20 <1.21)")
	fs.StringSliceVar(&f.loaders, "loader", nil, "mod loaders (fabric, quilt, forge, neoforge)")
	fs.StringSliceVar(&f.channels, "channel", nil, "release channels (release, beta, alpha)")
	fs.StringVar(&f.filename, "filename", "", "regex the artifact filename must match")
	fs.StringVar(&f.title, "title", "", "regex the release title must match")
	fs.StringVar(&f.description, "description", "", "regex the release description must match")
}

// build converts the flags to Filters, validating every pattern
func (f *filterFlags) build() (domain.Filters, error) {
	filters := domain.Filters{
		Filename:    f.filename,
		Title:       f.title,
		Description: f.description,
	}
	for _, v := range f.versions {
		if v = strings.TrimSpace(v); v != "" {
			filters.GameVersions = append(filters.GameVersions, v)
		}
	}
	for _, s := range f.loaders {
		l, err := domain.ParseModLoader(s)
		if err != nil {
			return domain.Filters{}, err
		}
		filters.ModLoaders = append(filters.ModLoaders, l)
	}
	for _, s := range f.channels {
		c, err := domain.ParseReleaseChannel(s)
		if err != nil {
			return domain.Filters{}, err
		}
		filters.ReleaseChannels = append(filters.ReleaseChannels, c)
	}

	if _, err := filters.Compile(); err != nil {
		return domain.Filters{}, fmt.Errorf("invalid filters: %w", err)
	}
	return filters, nil
}

// describeFilters renders the set fields of f on one line
func describeFilters(f domain.Filters) string {
	var parts []string
	if len(f.GameVersions) > 0 {
		parts = append(parts, "versions="+strings.Join(f.GameVersions, ","))
	}
	if len(f.ModLoaders) > 0 {
		names := make([]string, len(f.ModLoaders))
		for i, l := range f.ModLoaders {
			names[i] = l.String()
		}
		parts = append(parts, "loaders="+strings.Join(names, ","))
	}
	if len(f.ReleaseChannels) > 0 {
		names := make([]string, len(f.ReleaseChannels))
		for i, c := range f.ReleaseChannels {
			names[i] = c.String()
		}
		parts = append(parts, "channels="+strings.Join(names, ","))
	}
	if f.Filename != "" {
		parts = append(parts, "filename="+f.Filename)
	}
	if f.Title != "" {
		parts = append(parts, "title="+f.Title)
	}
	if f.Description != "" {
		parts = append(parts, "description="+f.Description)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
