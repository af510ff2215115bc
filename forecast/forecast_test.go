package forecast

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/config"
	"github.com/YuminosukeSato/bikecast/core/model"
	"github.com/YuminosukeSato/bikecast/ensemble"
	"github.com/YuminosukeSato/bikecast/features"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/neural"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
	"github.com/YuminosukeSato/bikecast/preprocessing"
)

const days = 120

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.GBDT.NumRounds = 60
	cfg.GBDT.NumLeaves = 8
	cfg.GBDT.MinDataInLeaf = 5
	cfg.GBDT.LearningRate = 0.1
	cfg.GBDT.EarlyStoppingRounds = 10
	cfg.GBDT.LogPeriod = 0
	cfg.NN.Hidden = []int{8}
	cfg.NN.Epochs = 20
	cfg.NN.Patience = 5
	return cfg
}

// writeFeatures は曜日周期を持つ日次系列から特徴量ファイルを作る
func writeFeatures(t *testing.T, cfg *config.Config) *features.Table {
	t.Helper()
	return writeSeries(t, cfg, days)
}

func writeSeries(t *testing.T, cfg *config.Config, n int) *features.Table {
	t.Helper()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	daily := make([]cleaner.DailySummary, n)
	for i := range daily {
		d := start.AddDate(0, 0, i)
		count := 100 + 20*int(d.Weekday()) + i/4
		daily[i] = cleaner.DailySummary{Date: d, Count: count}
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	table, err := features.NewBuilder(features.WithLogger(logger)).Build(daily)
	require.NoError(t, err)
	require.NoError(t, features.WriteTable(cfg.Resolve(cfg.Paths.DailyFeatures), table))
	return table
}

func newTestRunner(cfg *config.Config) (*Runner, *log.TestLogger) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(cfg, WithLogger(logger), WithRunID(func() string { return "run-1" })), logger
}

func TestRunGBDT(t *testing.T) {
	cfg := testConfig(t)
	writeFeatures(t, cfg)
	r, logger := newTestRunner(cfg)

	report, err := r.Run(context.Background(), config.ModelGBDT)
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 96, report.TrainRows)
	assert.Equal(t, 24, report.TestRows)
	assert.Len(t, report.Predicted, 24)
	assert.Len(t, report.TestDates, 24)
	assert.Equal(t, features.Columns()[1:], report.Features)
	assert.False(t, math.IsNaN(report.Metrics.MAE))
	assert.GreaterOrEqual(t, report.Metrics.RMSE, report.Metrics.MAE)
	assert.Empty(t, report.ScalerPath, "trees are trained on unscaled features")
	assert.True(t, logger.ContainsMessage("test evaluation"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "run-1"))

	g, err := ensemble.Load(report.ModelPath)
	require.NoError(t, err)
	assert.True(t, g.State.IsFitted())

	var names []string
	require.NoError(t, model.LoadJSON(&names, report.FeatureListPath))
	assert.Equal(t, report.Features, names)
}

func TestRunShortSeriesDropsUndefinedFeatures(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, 25)
	r, logger := newTestRunner(cfg)

	report, err := r.Run(context.Background(), config.ModelGBDT)
	require.NoError(t, err)

	undefined := []string{
		features.RollMeanColumn(30), features.RollStdColumn(30),
	}
	assert.Equal(t, undefined, report.UndefinedFeatures)
	for _, name := range undefined {
		assert.NotContains(t, report.Features, name)
	}
	assert.Contains(t, report.Features, features.LagColumn(14))
	assert.Equal(t, 20, report.TrainRows)
	assert.Equal(t, 5, report.TestRows)
	assert.True(t, logger.ContainsMessage("feature missing on every row; excluded from training"))
	assert.True(t, logger.ContainsField(log.ColumnKey, features.RollMeanColumn(30)))

	var names []string
	require.NoError(t, model.LoadJSON(&names, report.FeatureListPath))
	assert.Equal(t, report.Features, names)
}

func TestRunNN(t *testing.T) {
	cfg := testConfig(t)
	writeFeatures(t, cfg)
	r, logger := newTestRunner(cfg)

	report, err := r.Run(context.Background(), config.ModelNN)
	require.NoError(t, err)

	// 祝日ファイルがないので is_holiday は定数
	assert.Contains(t, report.DegenerateFeatures, features.ColIsHoliday)
	assert.True(t, logger.ContainsMessage("zero-variance feature left unscaled"))
	assert.Equal(t, cfg.Resolve(config.DefaultNNModelFile), report.ModelPath)

	var params preprocessing.ScalerParams
	require.NoError(t, model.LoadJSON(&params, report.ScalerPath))
	scaler, err := preprocessing.NewStandardScalerFromParams(params)
	require.NoError(t, err)
	assert.Equal(t, report.Features, scaler.FeatureNames)

	m, err := neural.Load(report.ModelPath)
	require.NoError(t, err)
	assert.True(t, m.State.IsFitted())
}

func TestRunScalesOnTrainingRowsOnly(t *testing.T) {
	cfg := testConfig(t)
	table := writeFeatures(t, cfg)
	r, _ := newTestRunner(cfg)

	report, err := r.Run(context.Background(), config.ModelNN)
	require.NoError(t, err)

	var params preprocessing.ScalerParams
	require.NoError(t, model.LoadJSON(&params, report.ScalerPath))

	lag1, err := table.Column(features.LagColumn(1))
	require.NoError(t, err)
	var mean float64
	for _, v := range lag1[:report.TrainRows] {
		mean += v
	}
	mean /= float64(report.TrainRows)
	j := 0
	for i, name := range params.FeatureNames {
		if name == features.LagColumn(1) {
			j = i
		}
	}
	assert.InDelta(t, mean, params.Mean[j], 1e-9)
}

func TestRunJoinsWeather(t *testing.T) {
	cfg := testConfig(t)
	table := writeFeatures(t, cfg)

	w := frame.New("date", features.ColRainMM, features.ColMaxTemp)
	for i, d := range table.Dates {
		if i%3 == 0 {
			continue
		}
		require.NoError(t, w.Append(d.Format(cleaner.DateLayout), strconv.Itoa(i%5), strconv.Itoa(20+i%10)))
	}
	require.NoError(t, frame.WriteFile(cfg.Resolve(cfg.Paths.Weather), w))

	r, _ := newTestRunner(cfg)
	report, err := r.Run(context.Background(), config.ModelGBDT)
	require.NoError(t, err)

	assert.True(t, report.WeatherJoined)
	assert.Contains(t, report.Features, features.ColRainMM)
	assert.Equal(t, features.ColMaxTemp, report.Features[len(report.Features)-1])
}

func TestRunMissingFeatureFile(t *testing.T) {
	cfg := testConfig(t)
	r, _ := newTestRunner(cfg)

	_, err := r.Run(context.Background(), config.ModelGBDT)
	require.Error(t, err)
	var pe *errors.PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "features", pe.Stage)
	assert.Contains(t, err.Error(), "run the \"features\" stage first")

	_, statErr := os.Stat(filepath.Join(cfg.Paths.WorkDir, config.DefaultGBDTModelFile))
	assert.True(t, os.IsNotExist(statErr), "no artifact is written")
}

func TestRunUnknownModel(t *testing.T) {
	cfg := testConfig(t)
	writeFeatures(t, cfg)
	r, _ := newTestRunner(cfg)

	_, err := r.Run(context.Background(), "arima")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "model", ve.ParamName)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	writeFeatures(t, cfg)
	r, _ := newTestRunner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, config.ModelGBDT)
	assert.ErrorIs(t, err, context.Canceled)
}
