// Package bikecast forecasts the daily number of YouBike transfers in Taipei
// from the city's open-data transfer records.
//
// The pipeline is a chain of batch stages. Each stage reads the files the
// previous one wrote into the work directory and fails with a
// PreconditionError naming the stage to run first when they are absent.
//
//	fetch     monthly open-data resources -> raw transfer table
//	clean     raw table -> cleaned table + daily transfer counts
//	features  daily counts -> calendar, lag and rolling features
//	train     feature table -> model, scaler, feature list, test MAE/RMSE
//	plot      cleaned table + daily counts -> charts and spreadsheet report
//
// # Quick Start
//
// The bikecast command runs every stage:
//
//	bikecast run --fetch --config bikecast.yaml
//	bikecast train --model nn
//
// The stages can also be driven from Go:
//
//	cfg, err := config.Load("bikecast.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := forecast.New(cfg).Run(ctx, config.ModelGBDT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Metrics)
//
// # Packages
//
//   - ingest: paginated download of the monthly transfer resources
//   - frame: string-typed CSV tables shared by the file-based stages
//   - cleaner: column normalization, date parsing and daily aggregation
//   - features: calendar, holiday, lag and rolling-window features
//   - dataset: chronological train/test split
//   - preprocessing: standard scaler fitted on training rows only
//   - ensemble: gradient-boosted regression trees
//   - neural: feed-forward regression network trained with Adam
//   - metrics: MAE, RMSE and related regression metrics
//   - forecast: the training stage tying split, scaling, fitting and evaluation
//   - visualize: exploratory charts and the spreadsheet report
//   - config: YAML and environment configuration
//   - core/model, core/parallel: estimator state, persistence and parallel helpers
//   - pkg/errors, pkg/log: structured errors, warnings and zerolog logging
package bikecast
