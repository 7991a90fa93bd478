package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/config"
	"github.com/wegman-software/roadgrid/internal/logger"
	"github.com/wegman-software/roadgrid/internal/metrics"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "roadgrid",
	Short: "Rasterize road centerlines into grid tiles",
	Long: `roadgrid turns road centerlines into the set of grid cells covered by
the roads, including their width, and writes one flat tile per cell.

Features:
  - Fixed-step sampling in meters, independent of the output scale
  - Road width applied as a precomputed disk of cells
  - Parallel rasterization with per-worker cell sets
  - Lua segment filters
  - Text, Parquet, PNG preview and PostGIS outputs
  - Road extraction from OSM PBF files`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := applyConfigFile(cmd.Flags(), configFile); err != nil {
				return err
			}
		}

		logger.Setup(logger.Options{Debug: cfg.Verbose, File: cfg.LogFile})
		if configFile != "" {
			logger.Get().Debug("Loaded config file", zap.String("path", configFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (flags override its values)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Rasterization workers (0 = all CPUs)")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for resource usage logging, 0 disables (e.g., 10s, 1m)")

	// Database flags
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
}

// applyConfigFile loads path into cfg, then puts back every flag the user
// set explicitly so the command line wins over the file.
func applyConfigFile(flags *pflag.FlagSet, path string) error {
	explicit := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := cfg.LoadFile(path); err != nil {
		return err
	}

	for name, value := range explicit {
		if err := flags.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// startMetrics logs resource usage until the returned stop func is called.
// It does nothing when the interval is zero.
func startMetrics(ctx context.Context) (stop func()) {
	if cfg.MetricsInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	collector := metrics.NewCollector(cfg.MetricsInterval, logger.Named("metrics"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		collector.Start(ctx)
	}()

	return func() {
		cancel()
		<-done
		collector.Summary()
	}
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
