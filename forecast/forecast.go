// Package forecast runs the training stage of the pipeline: it reads the
// feature file, splits it chronologically, scales the network inputs, fits
// the selected regressor, evaluates it on the held-out tail and persists the
// model, scaler and feature list.
package forecast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/config"
	"github.com/YuminosukeSato/bikecast/core/model"
	"github.com/YuminosukeSato/bikecast/dataset"
	"github.com/YuminosukeSato/bikecast/ensemble"
	"github.com/YuminosukeSato/bikecast/features"
	"github.com/YuminosukeSato/bikecast/metrics"
	"github.com/YuminosukeSato/bikecast/neural"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
	"github.com/YuminosukeSato/bikecast/preprocessing"
)

// Report summarises one training run.
type Report struct {
	RunID     string                   `json:"run_id"`
	Model     string                   `json:"model"`
	TrainRows int                      `json:"train_rows"`
	TestRows  int                      `json:"test_rows"`
	Features  []string                 `json:"features"`
	Metrics   metrics.EvaluationResult `json:"metrics"`

	// 評価区間の日付・実測値・予測値
	TestDates []time.Time `json:"test_dates"`
	Actual    []float64   `json:"actual"`
	Predicted []float64   `json:"predicted"`

	// DegenerateFeatures are features left unscaled because their training
	// variance was zero.
	DegenerateFeatures []string `json:"degenerate_features,omitempty"`
	// UndefinedFeatures were missing on every row of the feature file and
	// were left out of training.
	UndefinedFeatures  []string `json:"undefined_features,omitempty"`
	WeatherJoined      bool     `json:"weather_joined"`

	ModelPath       string `json:"model_path"`
	ScalerPath      string `json:"scaler_path,omitempty"`
	FeatureListPath string `json:"feature_list_path"`

	Duration time.Duration `json:"duration"`
}

// Runner executes the training stage with a fixed configuration.
type Runner struct {
	cfg    *config.Config
	logger log.Logger
	runID  func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRunID replaces the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.runID = fn }
}

// New creates a Runner.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, runID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("forecast")
	}
	return r
}

// NewRegressor builds the regressor named kind ("nn" or "gbdt") from the
// configured hyperparameters.
func (r *Runner) NewRegressor(kind string, logger log.Logger) (model.Regressor, error) {
	switch kind {
	case config.ModelGBDT:
		c := r.cfg.GBDT
		return ensemble.NewGBDTRegressor(
			ensemble.WithParams(ensemble.Params{
				NumRounds:           c.NumRounds,
				LearningRate:        c.LearningRate,
				NumLeaves:           c.NumLeaves,
				MaxDepth:            c.MaxDepth,
				MinDataInLeaf:       c.MinDataInLeaf,
				Lambda:              c.Lambda,
				FeatureFraction:     c.FeatureFraction,
				BaggingFraction:     c.BaggingFraction,
				BaggingFreq:         c.BaggingFreq,
				EarlyStoppingRounds: c.EarlyStoppingRounds,
				Metric:              c.Metric,
				LogPeriod:           c.LogPeriod,
				ValidationFraction:  c.ValidationFraction,
				Seed:                c.Seed,
			}),
			ensemble.WithLogger(logger),
		), nil
	case config.ModelNN:
		c := r.cfg.NN
		return neural.NewMLP(
			neural.WithParams(neural.Params{
				Hidden:             append([]int(nil), c.Hidden...),
				Dropout:            c.Dropout,
				LearningRate:       c.LearningRate,
				Epochs:             c.Epochs,
				BatchSize:          c.BatchSize,
				Patience:           c.Patience,
				ValidationFraction: c.ValidationFraction,
				Seed:               c.Seed,
			}),
			neural.WithLogger(logger),
		), nil
	default:
		return nil, errors.NewValidationError("model", "must be one of nn, gbdt", kind)
	}
}

// ModelPath returns the artifact path of the regressor kind.
func (r *Runner) ModelPath(kind string) string {
	if kind == config.ModelNN {
		return r.cfg.Resolve(r.cfg.Paths.NNModel)
	}
	return r.cfg.Resolve(r.cfg.Paths.GBDTModel)
}

// Run trains and evaluates the regressor named kind. A missing feature file
// returns a PreconditionError naming the features stage.
func (r *Runner) Run(ctx context.Context, kind string) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: r.runID(), Model: kind}
	logger := r.logger.With(log.RunIDKey, report.RunID, log.ModelNameKey, kind, log.StageKey, "train")

	featPath := r.cfg.Resolve(r.cfg.Paths.DailyFeatures)
	if err := errors.RequireFile(featPath, "features"); err != nil {
		return nil, err
	}
	table, err := features.ReadTable(featPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read features %s", featPath)
	}

	weatherPath := r.cfg.Resolve(r.cfg.Paths.Weather)
	weather, err := features.LoadWeather(weatherPath)
	if err != nil {
		return nil, err
	}
	joined, ok, err := features.JoinWeather(table, weather)
	if err != nil {
		return nil, err
	}
	if ok {
		table = joined
		report.WeatherJoined = true
		logger.Info("weather joined", log.FilePathKey, weatherPath)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	table, report.UndefinedFeatures = table.DropUndefined()
	for _, name := range report.UndefinedFeatures {
		logger.Warn("feature missing on every row; excluded from training",
			log.ColumnKey, name,
			log.PhaseKey, log.PhasePreprocessing,
		)
	}

	split, err := dataset.Chronological(table, r.cfg.Train.TrainRatio)
	if err != nil {
		return nil, err
	}
	report.Features = split.FeatureNames
	report.TrainRows = split.Index
	report.TestRows = table.Len() - split.Index
	report.TestDates = split.TestDates
	logger.Info("chronological split",
		log.SamplesKey, table.Len(),
		log.FeaturesKey, len(split.FeatureNames),
		log.SplitIndexKey, split.Index,
	)

	reg, err := r.NewRegressor(kind, logger)
	if err != nil {
		return nil, err
	}

	var xTrain, xTest mat.Matrix = split.XTrain, split.XTest
	var scaler *preprocessing.StandardScaler
	if kind == config.ModelNN {
		scaler = preprocessing.NewStandardScaler(
			preprocessing.WithFeatureNames(split.FeatureNames),
			preprocessing.WithZeroVariancePolicy(preprocessing.ZeroVarianceUnitScale),
		)
		if xTrain, err = scaler.FitTransform(split.XTrain); err != nil {
			return nil, err
		}
		if xTest, err = scaler.Transform(split.XTest); err != nil {
			return nil, err
		}
		report.DegenerateFeatures = scaler.Degenerate
		for _, name := range scaler.Degenerate {
			logger.Warn("zero-variance feature left unscaled",
				log.ColumnKey, name,
				log.PhaseKey, log.PhasePreprocessing,
				log.ErrorCodeKey, log.ErrorDegenerateFeature,
			)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := reg.Fit(xTrain, split.YTrain); err != nil {
		return nil, errors.Wrapf(err, "fit %s", reg.Name())
	}
	pred, err := reg.Predict(xTest)
	if err != nil {
		return nil, errors.Wrapf(err, "predict %s", reg.Name())
	}
	predVec, err := metrics.ColumnVector(pred)
	if err != nil {
		return nil, err
	}
	res, err := metrics.Evaluate(split.YTest, predVec)
	if err != nil {
		return nil, err
	}
	report.Metrics = res
	report.Actual = mat.Col(nil, 0, split.YTest)
	report.Predicted = mat.Col(nil, 0, predVec)
	logger.Info("test evaluation",
		log.OperationKey, log.OperationEvaluate,
		log.PhaseKey, log.PhaseTesting,
		log.MAEKey, res.MAE,
		log.RMSEKey, res.RMSE,
	)

	if err := r.persist(report, reg, scaler, split.FeatureNames); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	logger.Info("training stage finished",
		log.FilePathKey, report.ModelPath,
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return report, nil
}

func (r *Runner) persist(report *Report, reg model.Regressor, scaler *preprocessing.StandardScaler, names []string) error {
	report.ModelPath = r.ModelPath(report.Model)
	if err := model.SaveModel(reg, report.ModelPath); err != nil {
		return err
	}
	if scaler != nil {
		params, err := scaler.Params()
		if err != nil {
			return err
		}
		report.ScalerPath = r.cfg.Resolve(r.cfg.Paths.Scaler)
		if err := model.SaveJSON(params, report.ScalerPath); err != nil {
			return err
		}
	}
	report.FeatureListPath = r.cfg.Resolve(r.cfg.Paths.FeatureList)
	return model.SaveJSON(names, report.FeatureListPath)
}
