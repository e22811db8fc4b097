package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the modpack cache",
	Long: `Modpack archives and their extracted overrides are kept in the cache
so later upgrades do not download them again.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	Args:  cobra.NoArgs,
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached modpack",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	size, err := service.Cache().Size()
	if err != nil {
		return fmt.Errorf("measuring cache: %w", err)
	}
	fmt.Printf("Path: %s\n", service.Cache().Path())
	fmt.Printf("Size: %s\n", humanize.IBytes(uint64(size)))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	size, _ := service.Cache().Size()
	if err := service.Cache().Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Printf("Freed %s\n", humanize.IBytes(uint64(size)))
	return nil
}
