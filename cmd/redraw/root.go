package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/election-map-etl/internal/adapter/census"
	"github.com/couchcryptid/election-map-etl/internal/config"
	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
	"github.com/couchcryptid/election-map-etl/internal/observability"
	"github.com/couchcryptid/election-map-etl/internal/tool"
)

// globalFlags are the persistent flags shared by every subcommand. Set flags
// override the environment and config file.
type globalFlags struct {
	apiKey     string
	configPath string
	cacheDir   string
	logLevel   string
	kafkaTopic string
	force      bool
	checkOnly  bool
}

// app carries what a subcommand needs once configuration is resolved.
type app struct {
	flags globalFlags

	cfg        *config.Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	httpClient *http.Client
	runner     tool.Runner
	crosswalk  *domain.Crosswalk
	stdout     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stdout: os.Stdout}

	root := &cobra.Command{
		Use:           "redraw",
		Short:         "Build county-level presidential election maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.apiKey, "api-key", "k", "", "Census API key (default $CENSUS_API_KEY)")
	pf.StringVar(&a.flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.flags.cacheDir, "cache-dir", "", "directory for downloads and parsed results (default $CACHE_DIR)")
	pf.BoolVar(&a.flags.force, "force", false, "ignore cached downloads and parsed results")
	pf.BoolVar(&a.flags.checkOnly, "check-only", false, "run every check and print the report without writing output")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	pf.StringVar(&a.flags.kafkaTopic, "kafka-topic", "", "publish merged rows to this topic when KAFKA_BROKERS is set")

	root.AddCommand(
		newMITCmd(a),
		newTownhallCmd(a),
		new2016Cmd(a),
		new2020Cmd(a),
		new2024Cmd(a),
	)
	return root
}

// setup loads configuration and applies the persistent flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.CensusAPIKey = a.flags.apiKey
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = a.flags.cacheDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("kafka-topic") {
		cfg.KafkaTopic = a.flags.kafkaTopic
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a.metrics = observability.NewMetrics()
	a.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	a.runner = tool.Exec{Logger: a.logger}
	return nil
}

// validate checks everything a run needs before any network activity: a
// supported year, the Census key (not needed for the 1990 counts), the
// Connecticut crosswalk from 2022 and an output path unless only checking.
func (a *app) validate(year int, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if _, err := census.BoundaryFiles(census.DefaultTigerBase, year); err != nil {
		return err
	}
	decennial, err := census.Decennial(year)
	if err != nil {
		return err
	}
	if decennial > 1990 && a.cfg.CensusAPIKey == "" {
		return domain.ErrMissingAPIKey
	}
	if len(args) == 0 && !a.flags.checkOnly {
		return fmt.Errorf("%w: FILENAME is required unless --check-only is set", domain.ErrConfig)
	}

	if year < domain.RegionYear {
		return nil
	}
	if a.cfg.CTCrosswalkPath == "" {
		return domain.ErrMissingCrosswalk
	}
	f, err := os.Open(a.cfg.CTCrosswalkPath)
	if err != nil {
		return fmt.Errorf("%w: CT_CROSSWALK_PATH: %w", domain.ErrConfig, err)
	}
	defer f.Close()
	cw, err := domain.LoadCrosswalk(f)
	if err != nil {
		return fmt.Errorf("%w: CT_CROSSWALK_PATH %s: %w", domain.ErrConfig, a.cfg.CTCrosswalkPath, err)
	}
	a.crosswalk = cw
	a.logger.Debug("loaded crosswalk", "path", a.cfg.CTCrosswalkPath, "townships", cw.Townships())
	return nil
}

// client returns an HTTP client for one source using the configured retry
// policy and connection limit.
func (a *app) client(source string) *fetch.Client {
	return fetch.NewClient(source, a.httpClient,
		fetch.WithPolicy(fetch.Policy{
			Attempts:  a.cfg.FetchAttempts,
			BaseDelay: a.cfg.FetchBaseDelay,
			MaxDelay:  a.cfg.FetchMaxDelay,
		}),
		fetch.WithMaxConcurrent(a.cfg.MaxConnections),
		fetch.WithLogger(a.logger),
		fetch.WithMetrics(a.metrics),
	)
}

func (a *app) normalizer() *domain.Normalizer {
	return domain.NewNormalizer(domain.WithCrosswalk(a.crosswalk))
}

func output(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
