package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/election-map-etl/internal/adapter/mit"
	"github.com/couchcryptid/election-map-etl/internal/adapter/nyt2016"
	"github.com/couchcryptid/election-map-etl/internal/adapter/nyt2020"
	"github.com/couchcryptid/election-map-etl/internal/adapter/nyt2024"
	"github.com/couchcryptid/election-map-etl/internal/adapter/townhall"
	"github.com/couchcryptid/election-map-etl/internal/domain"
)

func newMITCmd(a *app) *cobra.Command {
	var (
		csvPath string
		year    int
	)
	cmd := &cobra.Command{
		Use:   "mit [FILENAME]",
		Short: "Build a map from the MIT Election Lab county returns CSV",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			if year%4 != 0 {
				return fmt.Errorf("%w: --year %d is not a presidential election year", domain.ErrConfig, year)
			}
			return a.validate(year, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := mit.NewSource(csvPath, year, a.normalizer(), a.logger)
			return execute[mit.Votes](cmd.Context(), a, src, output(args))
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "path to countypres_2000-2020.csv (required)")
	cmd.Flags().IntVar(&year, "year", 0, "election year to extract (required)")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newTownhallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "townhall [FILENAME]",
		Short: "Build the 2016 map from Townhall county tables",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			return a.validate(townhall.Year, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := townhall.NewSource(a.client(domain.SourceTownhall), townhall.DefaultURLTemplate, a.cfg.ScrapeInterval, a.normalizer(), a.logger)
			return execute[townhall.Votes](cmd.Context(), a, src, output(args))
		},
	}
}

func new2016Cmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "2016 [FILENAME]",
		Short: "Build the 2016 map from the New York Times results page",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			return a.validate(nyt2016.Year, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := nyt2016.NewSource(a.client(domain.SourceNYT2016), nyt2016.DefaultURL, a.normalizer(), a.logger)
			return execute[nyt2016.Votes](cmd.Context(), a, src, output(args))
		},
	}
}

func new2020Cmd(a *app) *cobra.Command {
	var maxConnections int
	cmd := &cobra.Command{
		Use:   "2020 [FILENAME]",
		Short: "Build the 2020 map from the New York Times state feeds",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyMaxConnections(a, cmd, maxConnections); err != nil {
				return err
			}
			return a.validate(nyt2020.Year, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := nyt2020.NewSource(a.client(domain.SourceNYT2020), nyt2020.DefaultURLTemplate, a.normalizer(), a.logger)
			return execute[nyt2020.Votes](cmd.Context(), a, src, output(args))
		},
	}
	cmd.Flags().IntVarP(&maxConnections, "max-connections", "m", 0, "concurrent requests (default $MAX_CONNECTIONS)")
	return cmd
}

func new2024Cmd(a *app) *cobra.Command {
	var (
		maxConnections int
		crosswalk      string
	)
	cmd := &cobra.Command{
		Use:   "2024 [FILENAME]",
		Short: "Build the 2024 map from the New York Times state feeds",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyMaxConnections(a, cmd, maxConnections); err != nil {
				return err
			}
			if cmd.Flags().Changed("crosswalk") {
				a.cfg.CTCrosswalkPath = crosswalk
			}
			return a.validate(nyt2024.Year, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := nyt2024.NewSource(a.client(domain.SourceNYT2024), nyt2024.DefaultURLTemplate, a.normalizer(), a.logger)
			return execute[nyt2024.Votes](cmd.Context(), a, src, output(args))
		},
	}
	cmd.Flags().IntVarP(&maxConnections, "max-connections", "m", 0, "concurrent requests (default $MAX_CONNECTIONS)")
	cmd.Flags().StringVar(&crosswalk, "crosswalk", "", "Connecticut 2022 tract crosswalk CSV (default $CT_CROSSWALK_PATH)")
	return cmd
}

func applyMaxConnections(a *app, cmd *cobra.Command, n int) error {
	if !cmd.Flags().Changed("max-connections") {
		return nil
	}
	if n <= 0 {
		return fmt.Errorf("%w: --max-connections must be positive, got %d", domain.ErrConfig, n)
	}
	a.cfg.MaxConnections = n
	return nil
}
