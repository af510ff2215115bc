package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/bikecast/config"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bikecast",
		Short: "YouBike daily transfer forecasting pipeline",
		Long: `bikecast downloads the Taipei YouBike transfer records, aggregates them
into daily counts, builds calendar and lag features and trains a forecaster.

Every stage reads the files the previous one wrote into the work directory:
  bikecast fetch      raw transfers
  bikecast clean      cleaned table and daily summary
  bikecast features   daily feature table
  bikecast train      model, scaler and feature list
  bikecast plot       charts and spreadsheet report`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if err := log.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file (BIKECAST_* variables override it)")

	root.AddCommand(
		a.fetchCmd(),
		a.cleanCmd(),
		a.featuresCmd(),
		a.trainCmd(),
		a.plotCmd(),
		a.runCmd(),
	)
	return root
}
