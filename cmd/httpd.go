package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/bootstrap"
)

func httpdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the search API and run scheduled refreshes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return bootstrap.RunHTTPD(cmd.Context(), cfg, log, Version)
		},
	}
}
