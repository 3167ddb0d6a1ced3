package cmd

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/cache"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/spf13/cobra"
)

func cacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			client, err := cache.NewClient(cmd.Context(), cfg.Redis)
			if err != nil {
				return err
			}
			c := cache.New(client, cfg.Redis, nil, log)
			defer func() { _ = c.Close() }()

			removed, err := c.Invalidate(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("Response cache cleared", logger.String("prefix", cfg.Redis.Prefix), logger.Int("removed", removed))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached responses\n", removed)
			return nil
		},
	})

	return cacheCmd
}
