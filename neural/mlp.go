// Package neural implements a dense feed-forward regression network trained
// with Adam on mini-batches, inverted dropout after the first hidden layer
// and early stopping with best-weight restore.
package neural

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/core/model"
	"github.com/YuminosukeSato/bikecast/dataset"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// ModelName identifies the regressor in logs and artifacts.
const ModelName = "nn"

// Adam の定数
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// Params contains the network hyperparameters.
type Params struct {
	Hidden             []int   `json:"hidden"`
	Dropout            float64 `json:"dropout"`
	LearningRate       float64 `json:"learning_rate"`
	Epochs             int     `json:"epochs"`
	BatchSize          int     `json:"batch_size"`
	Patience           int     `json:"patience"`
	ValidationFraction float64 `json:"validation_fraction"`
	Seed               uint64  `json:"seed"`
}

// DefaultParams returns Dense(64) → Dropout(0.2) → Dense(32) → Dense(1)
// trained for up to 300 epochs.
func DefaultParams() Params {
	return Params{
		Hidden:             []int{64, 32},
		Dropout:            0.2,
		LearningRate:       1e-3,
		Epochs:             300,
		BatchSize:          16,
		Patience:           20,
		ValidationFraction: 0.1,
		Seed:               42,
	}
}

func (p Params) validate() error {
	if len(p.Hidden) == 0 {
		return errors.NewValidationError("hidden", "at least one hidden layer is required", p.Hidden)
	}
	for _, h := range p.Hidden {
		if h <= 0 {
			return errors.NewValidationError("hidden", "layer widths must be positive", p.Hidden)
		}
	}
	switch {
	case p.Dropout < 0 || p.Dropout >= 1:
		return errors.NewValidationError("dropout", "must be in [0, 1)", p.Dropout)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.Epochs <= 0:
		return errors.NewValidationError("epochs", "must be positive", p.Epochs)
	case p.BatchSize <= 0:
		return errors.NewValidationError("batch_size", "must be positive", p.BatchSize)
	case p.Patience < 0:
		return errors.NewValidationError("patience", "must be non-negative", p.Patience)
	case p.ValidationFraction < 0 || p.ValidationFraction >= 1:
		return errors.NewValidationError("validation_fraction", "must be in [0, 1)", p.ValidationFraction)
	}
	return nil
}

// MLP is a fully connected ReLU network with a single linear output.
// Weights[l] has shape (fan_in × fan_out). Exported fields form the gob
// artifact.
type MLP struct {
	State  *model.StateManager
	Params Params

	Weights []*mat.Dense
	Biases  []*mat.VecDense

	// EpochsRun is the number of epochs actually trained.
	EpochsRun int
	// BestEpoch is the zero-based epoch whose weights were restored.
	BestEpoch int
	// BestLoss is the monitored loss at BestEpoch.
	BestLoss float64

	logger log.Logger
}

var _ model.Regressor = (*MLP)(nil)

// Option configures an MLP.
type Option func(*MLP)

// WithParams replaces the hyperparameters.
func WithParams(p Params) Option {
	return func(m *MLP) { m.Params = p }
}

// WithLogger sets the logger used for epoch reports.
func WithLogger(l log.Logger) Option {
	return func(m *MLP) { m.logger = l }
}

// NewMLP creates an untrained network with DefaultParams.
func NewMLP(opts ...Option) *MLP {
	m := &MLP{State: model.NewStateManager(), Params: DefaultParams()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads a network saved with model.SaveModel.
func Load(path string, opts ...Option) (*MLP, error) {
	m := &MLP{}
	if err := model.LoadModel(m, path); err != nil {
		return nil, err
	}
	if m.State == nil {
		m.State = model.NewStateManager()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the model name.
func (m *MLP) Name() string { return ModelName }

func (m *MLP) getLogger() log.Logger {
	if m.logger == nil {
		m.logger = log.GetLoggerWithName("neural").With(log.ModelNameKey, ModelName)
	}
	return m.logger
}

// Fit trains the network. The last ValidationFraction of the rows is
// monitored for early stopping; without validation rows the training loss is
// monitored. The weights of the best epoch are restored before returning.
func (m *MLP) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLP.Fit")

	if err := m.Params.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("MLP.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("MLP.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("MLP.Fit", 1, yCols, 1)
	}

	m.State.Reset()
	p := m.Params
	logger := m.getLogger()
	start := time.Now()
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	x := mat.DenseCopyOf(X)
	yv := mat.NewVecDense(rows, mat.Col(nil, 0, y))
	xFit, yFit, xVal, yVal := dataset.HoldoutTail(x, yv, p.ValidationFraction)
	nFit, _ := xFit.Dims()

	m.initWeights(cols, rng)
	opt := newAdam(m.Weights, m.Biases, p.LearningRate)
	es := model.NewEarlyStopping(p.Patience)
	best := m.snapshot()

	logger.Info("training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nFit,
		log.FeaturesKey, cols,
		log.BatchSizeKey, p.BatchSize,
		log.LearningRateKey, p.LearningRate,
		log.RandomSeedKey, p.Seed,
	)

	stopped := false
	order := make([]int, nFit)
	for i := range order {
		order[i] = i
	}
	batchLoss := make([]float64, 0, (nFit+p.BatchSize-1)/p.BatchSize)
	for epoch := 0; epoch < p.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var trainLoss float64
		batchLoss = batchLoss[:0]
		for s := 0; s < nFit; s += p.BatchSize {
			e := min(s+p.BatchSize, nFit)
			xb, yb := gatherBatch(xFit, yFit, order[s:e])
			l := m.step(xb, yb, opt, rng)
			batchLoss = append(batchLoss, l)
			trainLoss += l * float64(e-s)
		}
		if err := errors.CheckNumericalStability("MLP.Fit", batchLoss, epoch); err != nil {
			return err
		}
		trainLoss /= float64(nFit)

		monitored := trainLoss
		var valLoss float64
		if xVal != nil {
			valLoss = m.loss(xVal, yVal)
			monitored = valLoss
		}
		if err := errors.CheckScalar("MLP.Fit", monitored, epoch); err != nil {
			return err
		}
		m.EpochsRun = epoch + 1

		logger.Debug("epoch finished",
			log.EpochKey, epoch+1,
			log.LossKey, trainLoss,
			log.ValidLossKey, valLoss,
		)

		prevBest := es.BestScore
		stop := es.Update(epoch, monitored)
		if es.BestScore < prevBest {
			best = m.snapshot()
		}
		if stop {
			stopped = true
			logger.Info("early stopping",
				log.EpochKey, epoch+1,
				log.BestIterationKey, es.BestIteration+1,
				log.ValidLossKey, es.BestScore,
			)
			break
		}
	}

	m.restore(best)
	m.BestEpoch = es.BestIteration
	m.BestLoss = es.BestScore
	if !stopped && es.Enabled {
		errors.Warn(errors.NewConvergenceWarning("MLP", p.Epochs,
			"validation loss was still improving at the epoch limit"))
	}

	m.State.SetFitted(cols, rows)
	logger.Info("training finished",
		log.EpochKey, m.EpochsRun,
		log.BestIterationKey, m.BestEpoch+1,
		log.LossKey, m.BestLoss,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns an n×1 matrix of predictions. Dropout is inactive.
func (m *MLP) Predict(X mat.Matrix) (mat.Matrix, error) {
	if m.State == nil {
		return nil, errors.NewNotFittedError("MLP", "Predict")
	}
	if err := m.State.RequireFitted("MLP", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := m.State.CheckFeatures("MLP.Predict", cols); err != nil {
		return nil, err
	}
	out := m.forward(X, nil).output()
	if err := errors.CheckMatrix("MLP.Predict", out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// initWeights applies Glorot-uniform initialisation with zero biases.
func (m *MLP) initWeights(nIn int, rng *rand.Rand) {
	sizes := append([]int{nIn}, m.Params.Hidden...)
	sizes = append(sizes, 1)
	m.Weights = make([]*mat.Dense, len(sizes)-1)
	m.Biases = make([]*mat.VecDense, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		data := make([]float64, fanIn*fanOut)
		for i := range data {
			data[i] = (2*rng.Float64() - 1) * limit
		}
		m.Weights[l] = mat.NewDense(fanIn, fanOut, data)
		m.Biases[l] = mat.NewVecDense(fanOut, nil)
	}
}

// activations keeps the pre-activation and post-activation of every layer
// for back-propagation. acts[0] is the input.
type activations struct {
	pre   []*mat.Dense
	acts  []mat.Matrix
	masks []*mat.Dense
}

func (a *activations) output() *mat.Dense {
	return a.pre[len(a.pre)-1]
}

// forward runs the network. When rng is non-nil dropout masks are drawn for
// the first hidden layer.
func (m *MLP) forward(X mat.Matrix, rng *rand.Rand) *activations {
	n, _ := X.Dims()
	L := len(m.Weights)
	a := &activations{
		pre:   make([]*mat.Dense, L),
		acts:  make([]mat.Matrix, L+1),
		masks: make([]*mat.Dense, L),
	}
	a.acts[0] = X
	for l := 0; l < L; l++ {
		_, out := m.Weights[l].Dims()
		z := mat.NewDense(n, out, nil)
		z.Mul(a.acts[l], m.Weights[l])
		b := m.Biases[l]
		z.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, z)
		a.pre[l] = z
		if l == L-1 {
			break
		}

		h := mat.NewDense(n, out, nil)
		h.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
		if l == 0 && rng != nil && m.Params.Dropout > 0 {
			keep := 1 - m.Params.Dropout
			mask := mat.NewDense(n, out, nil)
			mask.Apply(func(_, _ int, _ float64) float64 {
				if rng.Float64() < keep {
					return 1 / keep
				}
				return 0
			}, mask)
			h.MulElem(h, mask)
			a.masks[l] = mask
		}
		a.acts[l+1] = h
	}
	return a
}

// step runs one mini-batch update and returns the batch MSE before the update.
func (m *MLP) step(xb *mat.Dense, yb *mat.VecDense, opt *adam, rng *rand.Rand) float64 {
	n, _ := xb.Dims()
	a := m.forward(xb, rng)
	out := a.output()

	// dL/dout for the batch-mean squared error
	delta := mat.NewDense(n, 1, nil)
	var loss float64
	for i := 0; i < n; i++ {
		d := out.At(i, 0) - yb.AtVec(i)
		loss += d * d
		delta.Set(i, 0, 2*d/float64(n))
	}
	loss /= float64(n)

	L := len(m.Weights)
	gradW := make([]*mat.Dense, L)
	gradB := make([]*mat.VecDense, L)
	for l := L - 1; l >= 0; l-- {
		fanIn, fanOut := m.Weights[l].Dims()
		gw := mat.NewDense(fanIn, fanOut, nil)
		gw.Mul(a.acts[l].T(), delta)
		gradW[l] = gw
		gb := mat.NewVecDense(fanOut, nil)
		for j := 0; j < fanOut; j++ {
			gb.SetVec(j, mat.Sum(delta.ColView(j)))
		}
		gradB[l] = gb
		if l == 0 {
			break
		}

		prev := mat.NewDense(n, fanIn, nil)
		prev.Mul(delta, m.Weights[l].T())
		if mask := a.masks[l-1]; mask != nil {
			prev.MulElem(prev, mask)
		}
		z := a.pre[l-1]
		prev.Apply(func(i, j int, v float64) float64 {
			if z.At(i, j) > 0 {
				return v
			}
			return 0
		}, prev)
		delta = prev
	}

	opt.update(m.Weights, m.Biases, gradW, gradB)
	return loss
}

// loss returns the MSE of the network on x without dropout.
func (m *MLP) loss(x *mat.Dense, y *mat.VecDense) float64 {
	out := m.forward(x, nil).output()
	n := y.Len()
	var sum float64
	for i := 0; i < n; i++ {
		d := out.At(i, 0) - y.AtVec(i)
		sum += d * d
	}
	return sum / float64(n)
}

type weightSnapshot struct {
	w []*mat.Dense
	b []*mat.VecDense
}

func (m *MLP) snapshot() weightSnapshot {
	s := weightSnapshot{
		w: make([]*mat.Dense, len(m.Weights)),
		b: make([]*mat.VecDense, len(m.Biases)),
	}
	for l := range m.Weights {
		s.w[l] = mat.DenseCopyOf(m.Weights[l])
		s.b[l] = mat.VecDenseCopyOf(m.Biases[l])
	}
	return s
}

func (m *MLP) restore(s weightSnapshot) {
	for l := range s.w {
		m.Weights[l].Copy(s.w[l])
		m.Biases[l].CopyVec(s.b[l])
	}
}

func gatherBatch(x *mat.Dense, y *mat.VecDense, idx []int) (*mat.Dense, *mat.VecDense) {
	_, c := x.Dims()
	xb := mat.NewDense(len(idx), c, nil)
	yb := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		xb.SetRow(i, x.RawRowView(r))
		yb.SetVec(i, y.AtVec(r))
	}
	return xb, yb
}
