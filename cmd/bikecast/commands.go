package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/features"
	"github.com/YuminosukeSato/bikecast/forecast"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/ingest"
	"github.com/YuminosukeSato/bikecast/visualize"
)

func (a *app) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "fetch",
		Short:   "Download every configured month of transfer records",
		Example: `  bikecast fetch --config bikecast.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.fetch(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Normalize the raw transfers and count them per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.clean(cmd.OutOrStdout())
		},
	}
}

func (a *app) featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Build calendar, lag and rolling features from the daily summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.features(cmd.OutOrStdout())
		},
	}
}

func (a *app) trainCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a forecaster on the feature table and evaluate it on the last days",
		Example: `  bikecast train
  bikecast train --model nn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.train(cmd.Context(), cmd.OutOrStdout(), a.modelKind(kind))
		},
	}
	cmd.Flags().StringVar(&kind, "model", "", "regressor to train: nn or gbdt (default from config)")
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot",
		Short: "Render the exploratory charts and the spreadsheet report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.plot(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runCmd() *cobra.Command {
	var (
		kind      string
		withFetch bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run clean, features, train and plot in order",
		Example: `  bikecast run --fetch
  bikecast run --model nn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if withFetch {
				if err := a.fetch(ctx, out); err != nil {
					return err
				}
			}
			if err := a.clean(out); err != nil {
				return err
			}
			if err := a.features(out); err != nil {
				return err
			}
			if err := a.train(ctx, out, a.modelKind(kind)); err != nil {
				return err
			}
			return a.plot(ctx, out)
		},
	}
	cmd.Flags().StringVar(&kind, "model", "", "regressor to train: nn or gbdt (default from config)")
	cmd.Flags().BoolVar(&withFetch, "fetch", false, "download the raw transfers first")
	return cmd
}

func (a *app) modelKind(flag string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	return a.cfg.Train.Model
}

func (a *app) fetch(ctx context.Context, out io.Writer) error {
	cfg := a.cfg
	f := ingest.NewFetcher(
		ingest.WithTimeout(cfg.Ingest.Timeout),
		ingest.WithRateLimit(cfg.Ingest.RequestsPerSecond, cfg.Ingest.Burst),
		ingest.WithPageLimit(cfg.Ingest.Limit),
	)
	path := cfg.Resolve(cfg.Paths.RawTransfers)
	raw, err := f.FetchToFile(ctx, ingest.ResourcesFromMap(cfg.Ingest.Months), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "fetched %d records into %s\n", raw.Len(), path)
	return nil
}

func (a *app) clean(out io.Writer) error {
	cfg := a.cfg
	res, err := cleaner.New().CleanFile(
		cfg.Resolve(cfg.Paths.RawTransfers),
		cfg.Resolve(cfg.Paths.Cleaned),
		cfg.Resolve(cfg.Paths.DailySummary),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cleaned %d rows (%d dropped), %d days written to %s\n",
		res.Cleaned.Len(), res.Dropped, len(res.Daily), cfg.Resolve(cfg.Paths.DailySummary))
	return nil
}

func (a *app) features(out io.Writer) error {
	cfg := a.cfg
	holidays, err := features.LoadHolidayCalendar(cfg.Resolve(cfg.Paths.Holidays))
	if err != nil {
		return err
	}
	path := cfg.Resolve(cfg.Paths.DailyFeatures)
	t, err := features.NewBuilder(features.WithHolidays(holidays)).
		BuildFile(cfg.Resolve(cfg.Paths.DailySummary), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "features saved to %s. Columns: %s\n", path, strings.Join(t.Columns, ", "))
	return nil
}

func (a *app) train(ctx context.Context, out io.Writer, kind string) error {
	report, err := forecast.New(a.cfg).Run(ctx, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Test MAE  = %.2f\n", report.Metrics.MAE)
	fmt.Fprintf(out, "Test RMSE = %.2f\n", report.Metrics.RMSE)
	fmt.Fprintf(out, "%s model saved to %s\n", report.Model, report.ModelPath)
	return nil
}

func (a *app) plot(ctx context.Context, out io.Writer) error {
	cfg := a.cfg
	cleanedPath := cfg.Resolve(cfg.Paths.Cleaned)
	dailyPath := cfg.Resolve(cfg.Paths.DailySummary)

	v := visualize.New(cfg.Resolve(cfg.Paths.ChartDir), visualize.WithFont(cfg.Resolve(cfg.Paths.Font)))
	paths, err := v.RenderFiles(ctx, cleanedPath, dailyPath)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}

	cleaned, err := frame.ReadFile(cleanedPath)
	if err != nil {
		return err
	}
	daily, err := cleaner.ReadDaily(dailyPath)
	if err != nil {
		return err
	}
	reportPath := cfg.Resolve(cfg.Paths.Report)
	if err := visualize.WriteReport(reportPath, cleaned, daily); err != nil {
		return err
	}
	fmt.Fprintln(out, reportPath)
	return nil
}
