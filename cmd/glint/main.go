package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	internal "github.com/glint-search/glint/glint"
	"github.com/glint-search/glint/glint/config"
	"github.com/glint-search/glint/glint/db"
	"github.com/glint-search/glint/glint/engine"
	"github.com/glint-search/glint/glint/search"

	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	if err := Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(args []string) error {
	logger := internal.GetLogger()

	var configPath string
	var noMirror bool

	rootCmd := &cobra.Command{
		Use:     internal.DefaultAppName,
		Short:   "Local file-search engine",
		Long:    "glint builds a searchable index of every file and directory on the configured volumes and keeps it fresh as the filesystem changes.",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&noMirror, "no-mirror", false, "Disable the relational mirror")

	newEngine := func() (*engine.Engine, func(), error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		var mirror db.MirrorStore
		cleanup := func() {}
		if !noMirror {
			m, err := db.NewMirrorProvider(cfg.Glint.Database.DSN)
			if err != nil {
				logger.Warn().Err(err).Msg("mirror unavailable, continuing without it")
			} else {
				mirror = m
				cleanup = func() { m.Close() }
			}
		}
		return engine.New(cfg.Glint, mirror), cleanup, nil
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild [volume...]",
		Short: "Harvest the given volumes and rebuild the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := newEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			var stop atomic.Bool
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				stop.Store(true)
			}()

			start := time.Now()
			err = eng.Rebuild(ctx, args, func(volume, stage string, entries int) {
				logger.Info().Str("volume", volume).Str("stage", stage).Int("entries", entries).Msg("rebuild progress")
			}, &stop)
			if err != nil {
				return err
			}
			stats := eng.Stats()
			logger.Info().Int("entries", stats.Count).Dur("elapsed", time.Since(start)).Msg("rebuild complete")
			return nil
		},
	}

	var (
		fuzzy bool
		rx    bool
		ext   string
		limit int
	)
	searchCmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := newEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			mode := search.ModeSubstring
			if fuzzy {
				mode = search.ModeFuzzy
			}
			if rx {
				mode = search.ModeRegex
			}
			results, err := eng.Search(search.Query{Keywords: args, Mode: mode, Ext: ext, Limit: limit})
			if err != nil {
				return err
			}
			for _, r := range results {
				kind := "f"
				if r.IsDir {
					kind = "d"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %12d  %s\n", kind, r.Size, r.Path)
			}
			return nil
		},
	}
	searchCmd.Flags().BoolVarP(&fuzzy, "fuzzy", "f", false, "Fuzzy matching")
	searchCmd.Flags().BoolVarP(&rx, "regex", "r", false, "Treat the query as a regular expression")
	searchCmd.Flags().StringVarP(&ext, "ext", "e", "", "Restrict to files with this extension")
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of results")

	watchCmd := &cobra.Command{
		Use:   "watch [volume...]",
		Short: "Apply filesystem changes to the index as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := newEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			logger.Info().Msg("watching for filesystem changes")
			return eng.Watch(ctx, args)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := newEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			s := eng.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\nready: %v\nbuilding: %v\n", s.Count, s.Ready, s.Building)
			return nil
		},
	}

	rootCmd.AddCommand(rebuildCmd, searchCmd, watchCmd, statsCmd)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}
