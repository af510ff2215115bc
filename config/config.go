// Package config loads the pipeline configuration.
//
// Values start from Default(), are overlaid by an optional YAML file and then
// by BIKECAST_* environment variables, and are finally validated.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "BIKECAST"

// Config represents the complete pipeline configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Ingest  IngestConfig  `yaml:"ingest" envconfig:"INGEST"`
	Train   TrainConfig   `yaml:"train" envconfig:"TRAIN"`
	GBDT    GBDTConfig    `yaml:"gbdt" envconfig:"GBDT"`
	NN      NNConfig      `yaml:"nn" envconfig:"NN"`
}

// PathsConfig contains the artifact file names.
type PathsConfig struct {
	WorkDir       string `yaml:"work_dir" envconfig:"WORK_DIR" validate:"required"`
	RawTransfers  string `yaml:"raw_transfers" envconfig:"RAW_TRANSFERS" validate:"required"`
	Cleaned       string `yaml:"cleaned" envconfig:"CLEANED" validate:"required"`
	DailySummary  string `yaml:"daily_summary" envconfig:"DAILY_SUMMARY" validate:"required"`
	DailyFeatures string `yaml:"daily_features" envconfig:"DAILY_FEATURES" validate:"required"`
	Holidays      string `yaml:"holidays" envconfig:"HOLIDAYS"`
	Weather       string `yaml:"weather" envconfig:"WEATHER"`
	Font          string `yaml:"font" envconfig:"FONT"`
	GBDTModel     string `yaml:"gbdt_model" envconfig:"GBDT_MODEL" validate:"required"`
	NNModel       string `yaml:"nn_model" envconfig:"NN_MODEL" validate:"required"`
	Scaler        string `yaml:"scaler" envconfig:"SCALER" validate:"required"`
	FeatureList   string `yaml:"feature_list" envconfig:"FEATURE_LIST" validate:"required"`
	Report        string `yaml:"report" envconfig:"REPORT" validate:"required"`
	ChartDir      string `yaml:"chart_dir" envconfig:"CHART_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json console"`
}

// IngestConfig contains the open-data fetcher configuration. Months cannot be
// set from the environment since resource URLs contain the map separator.
type IngestConfig struct {
	Limit             int               `yaml:"limit" envconfig:"LIMIT" validate:"gt=0"`
	Timeout           time.Duration     `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64           `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Burst             int               `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
	Months            map[string]string `yaml:"months" ignored:"true" validate:"required,min=1,dive,keys,required,endkeys,url"`
}

// TrainConfig selects the regressor and the split.
type TrainConfig struct {
	Model      string  `yaml:"model" envconfig:"MODEL" validate:"oneof=nn gbdt"`
	TrainRatio float64 `yaml:"train_ratio" envconfig:"TRAIN_RATIO" validate:"gt=0,lt=1"`
}

// GBDTConfig holds the gradient-boosted tree hyperparameters.
type GBDTConfig struct {
	NumRounds           int     `yaml:"num_rounds" envconfig:"NUM_ROUNDS" validate:"gt=0"`
	LearningRate        float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE" validate:"gt=0,lte=1"`
	NumLeaves           int     `yaml:"num_leaves" envconfig:"NUM_LEAVES" validate:"gte=2"`
	MaxDepth            int     `yaml:"max_depth" envconfig:"MAX_DEPTH"`
	MinDataInLeaf       int     `yaml:"min_data_in_leaf" envconfig:"MIN_DATA_IN_LEAF" validate:"gte=1"`
	Lambda              float64 `yaml:"lambda" envconfig:"LAMBDA" validate:"gte=0"`
	FeatureFraction     float64 `yaml:"feature_fraction" envconfig:"FEATURE_FRACTION" validate:"gt=0,lte=1"`
	BaggingFraction     float64 `yaml:"bagging_fraction" envconfig:"BAGGING_FRACTION" validate:"gt=0,lte=1"`
	BaggingFreq         int     `yaml:"bagging_freq" envconfig:"BAGGING_FREQ" validate:"gte=0"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds" envconfig:"EARLY_STOPPING_ROUNDS" validate:"gte=0"`
	Metric              string  `yaml:"metric" envconfig:"METRIC" validate:"oneof=mae l2"`
	LogPeriod           int     `yaml:"log_period" envconfig:"LOG_PERIOD" validate:"gte=0"`
	ValidationFraction  float64 `yaml:"validation_fraction" envconfig:"VALIDATION_FRACTION" validate:"gte=0,lt=1"`
	Seed                uint64  `yaml:"seed" envconfig:"SEED"`
}

// NNConfig holds the feed-forward network hyperparameters.
type NNConfig struct {
	Hidden             []int   `yaml:"hidden" envconfig:"HIDDEN" validate:"required,min=1,dive,gt=0"`
	Dropout            float64 `yaml:"dropout" envconfig:"DROPOUT" validate:"gte=0,lt=1"`
	LearningRate       float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE" validate:"gt=0"`
	Epochs             int     `yaml:"epochs" envconfig:"EPOCHS" validate:"gt=0"`
	BatchSize          int     `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"gt=0"`
	Patience           int     `yaml:"patience" envconfig:"PATIENCE" validate:"gte=0"`
	ValidationFraction float64 `yaml:"validation_fraction" envconfig:"VALIDATION_FRACTION" validate:"gte=0,lt=1"`
	Seed               uint64  `yaml:"seed" envconfig:"SEED"`
}

// Default returns the configuration that reproduces the fixed file names and
// hyperparameters of the pipeline.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			WorkDir:       ".",
			RawTransfers:  DefaultRawTransfersFile,
			Cleaned:       DefaultCleanedFile,
			DailySummary:  DefaultDailySummaryFile,
			DailyFeatures: DefaultDailyFeaturesFile,
			Holidays:      DefaultHolidaysFile,
			Weather:       DefaultWeatherFile,
			Font:          DefaultFontFile,
			GBDTModel:     DefaultGBDTModelFile,
			NNModel:       DefaultNNModelFile,
			Scaler:        DefaultScalerFile,
			FeatureList:   DefaultFeatureListFile,
			Report:        DefaultReportFile,
			ChartDir:      ".",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Ingest: IngestConfig{
			Limit:             DefaultPageLimit,
			Timeout:           DefaultRequestTimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Burst:             DefaultRequestBurst,
			Months:            DefaultMonthResources(),
		},
		Train: TrainConfig{Model: ModelGBDT, TrainRatio: 0.8},
		GBDT: GBDTConfig{
			NumRounds:           2000,
			LearningRate:        0.05,
			NumLeaves:           63,
			MaxDepth:            -1,
			MinDataInLeaf:       20,
			Lambda:              0,
			FeatureFraction:     0.8,
			BaggingFraction:     0.8,
			BaggingFreq:         5,
			EarlyStoppingRounds: 100,
			Metric:              "mae",
			LogPeriod:           200,
			ValidationFraction:  0.1,
			Seed:                42,
		},
		NN: NNConfig{
			Hidden:             []int{64, 32},
			Dropout:            0.2,
			LearningRate:       1e-3,
			Epochs:             300,
			BatchSize:          16,
			Patience:           20,
			ValidationFraction: 0.1,
			Seed:               42,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config from env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current value; a months mapping replaces the defaults entirely.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	defaults := cfg.Ingest.Months
	cfg.Ingest.Months = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if cfg.Ingest.Months == nil {
		cfg.Ingest.Months = defaults
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed on the '"+fe.Tag()+"' rule", fe.Value())
		}
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// Resolve returns name joined to the working directory unless it is absolute.
// An empty name resolves to an empty path.
func (c *Config) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.WorkDir, name)
}
