package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/boundary"
	"github.com/reliefscope/needscan/internal/pipeline"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Work with administrative boundaries directly",
}

var boundaryFetchFlags struct {
	country    string
	adminLevel string
	refresh    bool
}

var boundaryFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Prefetch boundaries into the cache for offline use",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		iso3, err := boundary.ResolveCountry(boundaryFetchFlags.country)
		if err != nil {
			return err
		}
		level := boundaryFetchFlags.adminLevel
		if level == "" {
			level = pipeline.DefaultAdminLevel
		}

		resolved, err := env.Resolver.ResolveRemote(cmd.Context(), iso3, level, boundaryFetchFlags.refresh)
		if err != nil {
			return err
		}

		zap.L().Info("boundaries available",
			zap.String("iso3", iso3),
			zap.String("admin_level", level),
			zap.Int("features", len(resolved.Collection.Features)),
			zap.Bool("from_cache", resolved.FromCache),
		)
		return nil
	},
}

func init() {
	boundaryFetchCmd.Flags().StringVar(&boundaryFetchFlags.country, "country", "", "country name or ISO3 code")
	boundaryFetchCmd.Flags().StringVar(&boundaryFetchFlags.adminLevel, "admin-level", "", "administrative level (default ADM1)")
	boundaryFetchCmd.Flags().BoolVar(&boundaryFetchFlags.refresh, "refresh", false, "refetch even when cached")
	_ = boundaryFetchCmd.MarkFlagRequired("country")
	boundaryCmd.AddCommand(boundaryFetchCmd)
	rootCmd.AddCommand(boundaryCmd)
}
