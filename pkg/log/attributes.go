// Standard attribute keys. Keys follow a hierarchical naming convention
// ("model.name", "data.samples") so log lines can be filtered per concern.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the regressor type.
	// Examples: "MLP", "GBDTRegressor", "StandardScaler"
	ModelNameKey = "model.name"

	// RunIDKey identifies one training run; artifacts of a run share it.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "evaluate"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Set automatically by GetLoggerWithName.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Pipeline Context
const (
	// StageKey names the pipeline stage: fetch, clean, features, train, plot.
	StageKey = "pipeline.stage"

	// FilePathKey is the path of a file read or written by a stage.
	FilePathKey = "file.path"

	// URLKey is the request URL of an ingestion page.
	URLKey = "http.url"

	// StatusCodeKey is the HTTP status of an ingestion page.
	StatusCodeKey = "http.status_code"

	// MonthKey is the month tag of an ingestion resource.
	MonthKey = "data.month"

	// OffsetKey is the paging offset of an ingestion request.
	OffsetKey = "http.offset"

	// ArtifactsKey is the number of files written by a stage.
	ArtifactsKey = "pipeline.artifacts"

	// ColumnKey names a table column.
	ColumnKey = "data.column"

	// MissingRatioKey is the percentage of missing cells in a column.
	MissingRatioKey = "data.missing_pct"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// DroppedKey indicates the number of rows removed by a cleaning step.
	DroppedKey = "data.dropped"

	// SplitIndexKey is the first row of the test partition.
	SplitIndexKey = "data.split_index"

	// BatchSizeKey indicates the mini-batch size.
	BatchSizeKey = "data.batch_size"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the training loss.
	LossKey = "metrics.loss"

	// ValidLossKey records the validation loss used for early stopping.
	ValidLossKey = "metrics.valid_loss"

	// MAEKey records mean absolute error.
	MAEKey = "metrics.mae"

	// RMSEKey records root mean squared error.
	RMSEKey = "metrics.rmse"

	// IterationKey records the boosting round.
	IterationKey = "training.iteration"

	// EpochKey records the network epoch.
	EpochKey = "training.epoch"

	// EvalMetricKey names the metric monitored for early stopping.
	EvalMetricKey = "training.metric"

	// BestIterationKey records the round or epoch kept after early stopping.
	BestIterationKey = "training.best_iteration"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error or warning.
	ErrorTypeKey = "error.type"
)

// Hyperparameters
const (
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationEvaluate = "evaluate"

	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorDegenerateFeature = "DEGENERATE_FEATURE"
)
