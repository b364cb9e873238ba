// Command sizeprobe runs one corpus-size estimation experiment against a
// configured search engine and records the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/corplens/sizeprobe/internal/applog"
	"github.com/corplens/sizeprobe/internal/config"
	"github.com/corplens/sizeprobe/internal/estimator"
	"github.com/corplens/sizeprobe/internal/factory"
	"github.com/corplens/sizeprobe/internal/resource"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configFile string
	logLevel   string
	repeat     int
	monitorSec int
)

var rootCmd = &cobra.Command{
	Use:     "sizeprobe <engine:algorithm>",
	Short:   "Estimate a search engine's corpus size via black-box sampling",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logConfig := applog.Config{
			Level:      cfg.Logging.Level,
			LogDir:     cfg.Logging.LogDir,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
			Compress:   cfg.Logging.Compress,
		}
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		return applog.Init(logConfig)
	},
	RunE: runExperiment,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error")
	rootCmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "number of times to run the estimator and log each iteration")
	rootCmd.Flags().IntVar(&monitorSec, "monitor-interval", 15, "seconds between resource-usage log lines (0 disables)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sizeprobe %s (built %s)\n", Version, BuildTime)
	},
}

func runExperiment(cmd *cobra.Command, args []string) error {
	experiment := args[0]

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	bundle, err := factory.Build(experiment, cfg)
	if err != nil {
		return fmt.Errorf("wiring experiment %q: %w", experiment, err)
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			applog.Warnf("sizeprobe: cleanup error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		applog.Warnf("sizeprobe: received %v, cancelling run", sig)
		cancel()
	}()

	var monitor resource.Monitor
	if monitorSec > 0 {
		monitor.Start(time.Duration(monitorSec) * time.Second)
		defer monitor.Stop()
	}

	if err := bundle.Logger.WriteHeader(); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	if err := bundle.Logger.WriteExperimentDetails(bundle.Estimator.ExperimentDetails()); err != nil {
		return fmt.Errorf("writing experiment details: %w", err)
	}

	bar := progressbar.Default(int64(repeat), fmt.Sprintf("running %s", experiment))

	estimations := make([]float64, 0, repeat)
	runStart := time.Now()

	for i := 0; i < repeat; i++ {
		iterStart := time.Now()
		value, err := bundle.Estimator.Estimate(ctx)
		if err != nil {
			return fmt.Errorf("estimate iteration %d: %w", i, err)
		}
		duration := time.Since(iterStart)
		estimations = append(estimations, value)

		if err := bundle.Logger.WriteResultIteration(i, value, duration, bundle.Estimator.DownloadCount()); err != nil {
			applog.Warnf("sizeprobe: failed to log iteration %d: %v", i, err)
		}
		_ = bar.Add(1)

		if value == estimator.Undefined {
			applog.Warnf("sizeprobe: iteration %d produced an undefined estimate", i)
		}
	}

	if err := bundle.Logger.WriteFinalResult(estimations, time.Since(runStart), bundle.Estimator.DownloadCount()); err != nil {
		applog.Warnf("sizeprobe: failed to log final result: %v", err)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
