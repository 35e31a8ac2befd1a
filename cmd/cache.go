package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/boundary"
	"github.com/reliefscope/needscan/internal/pipeline"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the boundary cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached boundary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Cache.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ISO3\tLEVEL\tSIZE\tFETCHED\tSOURCE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.ISO3, e.AdminLevel, humanSize(e.Size),
				e.FetchedAt.Format("2006-01-02 15:04"), e.SourceURL)
		}
		return w.Flush()
	},
}

var cacheClearFlags struct {
	country    string
	adminLevel string
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached boundary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if cacheClearFlags.country == "" {
			if err := env.Cache.Clear(cmd.Context()); err != nil {
				return err
			}
			zap.L().Info("cache cleared")
			return nil
		}

		iso3, err := boundary.ResolveCountry(cacheClearFlags.country)
		if err != nil {
			return err
		}
		level := cacheClearFlags.adminLevel
		if level == "" {
			level = pipeline.DefaultAdminLevel
		}
		if err := env.Cache.Delete(cmd.Context(), iso3, level); err != nil {
			return err
		}
		zap.L().Info("cache entry removed",
			zap.String("iso3", iso3), zap.String("admin_level", level))
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearFlags.country, "country", "", "clear one country only")
	cacheClearCmd.Flags().StringVar(&cacheClearFlags.adminLevel, "admin-level", "", "admin level to clear (default ADM1)")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
