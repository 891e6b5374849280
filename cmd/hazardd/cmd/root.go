// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/hazard_haptics/internal/app"
	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/logger"
	"github.com/relabs-tech/hazard_haptics/internal/version"
)

var (
	runConfig      string
	probeConfig    string
	simulateConfig string
	logLevel       string

	probeReadings int
	probeExport   string
	writeExample  string

	simDuration   time.Duration
	simObstacleAt time.Duration
	simFallAt     time.Duration
	simStatus     time.Duration

	rootCmd = &cobra.Command{
		Use:   "hazardd",
		Short: "Obstacle haptics and fall alerts for a wearable.",
		Long: `hazardd measures the distance to obstacles with an HC-SR04, watches an MPU6050
for falls and drives a vibration motor and a buzzer. Fall alerts always take
priority over obstacle haptics.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the hazard loops until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			defer logger.Sync()

			return app.Run(ctx, &app.Options{ConfigPath: runConfig, LogLevel: logLevel})
		},
	}

	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Check the sensors and actuator lines once.",
		Long: `Reads WHO_AM_I and the MPU6050 registers, takes one accelerometer sample and
a few range readings. With --write-example it only writes an example
configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if writeExample != "" {
				if err := config.Save(writeExample, config.Example()); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "example configuration written to %s\n", writeExample)

				return nil
			}

			return app.Probe(cmd.Context(), &app.ProbeOptions{
				ConfigPath: probeConfig,
				Readings:   probeReadings,
				ExportPath: probeExport,
				Out:        cmd.OutOrStdout(),
			})
		},
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the hazard loops against simulated hardware.",
		Long: `Runs the supervisor on mock lines and a scripted accelerometer: an obstacle
appears in front of the wearer, then the wearer falls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			res, err := app.Simulate(ctx, &app.SimulateOptions{
				ConfigPath:  simulateConfig,
				Duration:    simDuration,
				ObstacleAt:  simObstacleAt,
				FallAt:      simFallAt,
				StatusEvery: simStatus,
				LogLevel:    logLevel,
				Out:         cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alerts=%d obstacle_seen=%v final=%s\n", res.Alerts, res.ObstacleSeen, res.Final)

			return nil
		},
	}
)

// Execute runs the hazardd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override the configured log level")

	runCmd.Flags().StringVarP(&runConfig, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	probeCmd.Flags().StringVarP(&probeConfig, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	probeCmd.Flags().IntVarP(&probeReadings, "readings", "n", 5, "number of range readings")
	probeCmd.Flags().StringVar(&probeExport, "export", "", "write a JSON register snapshot to this path")
	probeCmd.Flags().StringVar(&writeExample, "write-example", "", "write an example configuration to this path and exit")

	simulateCmd.Flags().StringVarP(&simulateConfig, "config", "c", "", "path to configuration file (example configuration if empty)")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 8*time.Second, "how long to simulate")
	simulateCmd.Flags().DurationVar(&simObstacleAt, "obstacle-at", time.Second, "when the obstacle appears")
	simulateCmd.Flags().DurationVar(&simFallAt, "fall-at", 4*time.Second, "when the wearer falls")
	simulateCmd.Flags().DurationVar(&simStatus, "status-every", 250*time.Millisecond, "status line interval")

	rootCmd.AddCommand(runCmd, probeCmd, simulateCmd)
}
