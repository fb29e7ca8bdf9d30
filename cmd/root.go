// Package cmd implements the Cobra CLI wiring config -> mesh -> router
// -> stats, following the teacher's cmd/root.go layout: a root command
// with a run subcommand whose flags name the mesh config file and set
// run options (horizon, seed, traffic); mesh options come only from the
// config file.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	horizon     int64
	seed        int64
	logLevel    string
	injectRate  float64
	tokensPer   int
	vnetForTraffic int
)

var rootCmd = &cobra.Command{
	Use:   "nocsim",
	Short: "Cycle-accurate virtual-channel network-on-chip router simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build a mesh from a config file and run synthetic traffic across it",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		return runSimulation(runOptions{
			configPath: configPath,
			horizon:    horizon,
			seed:       seed,
			injectRate: injectRate,
			tokensPer:  tokensPer,
			vnet:       vnetForTraffic,
		})
	},
}

// Execute runs the root command, matching the teacher's main.go ->
// cmd.Execute() entrypoint shape.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to a mesh options YAML file (required)")
	runCmd.Flags().Int64Var(&horizon, "horizon", 10000, "simulation horizon in cycles")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "master RNG seed for reproducible RANDOM/TURN_MODEL routing")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().Float64Var(&injectRate, "rate", 0.1, "per-cycle, per-interface probability of injecting a new packet")
	runCmd.Flags().IntVar(&tokensPer, "tokens", 4, "flits per injected packet")
	runCmd.Flags().IntVar(&vnetForTraffic, "vnet", 0, "vnet synthetic traffic is injected on")
	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}
