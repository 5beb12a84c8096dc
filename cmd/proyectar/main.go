package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MaxiNavarro97/proyectAR/pkg/config"
	"github.com/MaxiNavarro97/proyectAR/pkg/engine"
	"github.com/MaxiNavarro97/proyectAR/pkg/market"
	"github.com/MaxiNavarro97/proyectAR/pkg/models"
	"github.com/MaxiNavarro97/proyectAR/pkg/preview"
	"github.com/MaxiNavarro97/proyectAR/pkg/reporting"
	"github.com/MaxiNavarro97/proyectAR/pkg/server"
	"github.com/MaxiNavarro97/proyectAR/pkg/sink"
	"github.com/MaxiNavarro97/proyectAR/pkg/survey"
)

var (
	cfgFile    string
	cliFilters filters
	outputPath string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:           "proyectar",
	Short:         "Monthly inflation projection from the BCRA market expectations survey",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh market prices and rebuild the published projection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		reporter := reporting.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, "", logger)
		defer reporter.Flush()

		summary := engine.New(cfg, engine.Deps{Reporter: reporter}, logger).Run(cmd.Context())
		return summary.Err()
	},
}

var projectCmd = &cobra.Command{
	Use:   "project <survey_file>",
	Short: "Build the projection for a local survey file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc()
		if err != nil {
			return err
		}

		series, err := engine.New(cfg, engine.Deps{}, logger).Project(args[0])
		if err != nil {
			return err
		}

		if outputPath == "" {
			return sink.Write(cmd.OutOrStdout(), series, sink.Format(cfg.Output.Format), filter)
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		if err := sink.Write(f, series, sink.FormatFromPath(outputPath, sink.Format(cfg.Output.Format)), filter); err != nil {
			return err
		}
		logger.Info("projection written", "path", outputPath, "months", len(series))
		return nil
	},
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Refresh the market status file and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		status, fetchErr := engine.New(cfg, engine.Deps{}, logger).RefreshMarket(cmd.Context())
		data, err := market.Encode(status)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return fetchErr
	},
}

var rowsCmd = &cobra.Command{
	Use:   "rows <survey_file>",
	Short: "Dump the survey rows and how each one is classified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		rows, err := survey.New(logger, survey.Options{Sheet: cfg.REM.Sheet, MaxRows: cfg.REM.MaxRows}).ReadFile(args[0])
		if err != nil {
			return err
		}
		return preview.Rows(cmd.OutOrStdout(), rows, !noColor)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [survey_file]",
	Short: "Show a projection in the terminal (the published one without a file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		filter, err := cliFilters.toFilterFunc()
		if err != nil {
			return err
		}

		var series models.Series
		if len(args) == 1 {
			series, err = engine.New(cfg, engine.Deps{}, logger).Project(args[0])
		} else {
			series, err = sink.Load(cfg.ProcessedPath())
		}
		if err != nil {
			return err
		}
		return preview.Series(cmd.OutOrStdout(), applyFilter(series, filter))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the published files and the projection API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		logger.Info("starting server", "addr", cfg.Server.Addr, "data_dir", cfg.DataDir)
		return server.New(cfg, logger).Start(cmd.Context(), cfg.Server.Addr)
	},
}

// setup loads the configuration with the command's flags and builds its logger.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Log.NewLogger(os.Stderr, "proyectar"), nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory the published files live in")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("sheet", "", "Workbook sheet holding the survey table")
	rootCmd.PersistentFlags().Int("max-rows", 0, "Survey rows read after the header")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP timeout")

	// Filter flags
	for _, c := range []*cobra.Command{projectCmd, previewCmd} {
		c.Flags().StringVar(&cliFilters.from, "from", "", "First month to keep (YYYY-MM or YYYY)")
		c.Flags().StringVar(&cliFilters.to, "to", "", "Last month to keep (YYYY-MM or YYYY)")
	}

	projectCmd.Flags().String("format", "", "Output format (csv, json, yaml)")
	projectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")
	rowsCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	serveCmd.Flags().String("addr", "", "Listen address")

	rootCmd.AddCommand(runCmd, projectCmd, marketCmd, rowsCmd, previewCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
