// Package ensemble implements gradient-boosted regression trees with
// leaf-wise growth, row bagging, feature sub-sampling and early stopping on a
// held-out tail of the training rows.
package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/core/model"
	"github.com/YuminosukeSato/bikecast/core/parallel"
	"github.com/YuminosukeSato/bikecast/dataset"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// ModelName identifies the regressor in logs and artifacts.
const ModelName = "gbdt"

// Metrics monitored on the held-out rows for early stopping.
const (
	MetricMAE = "mae"
	MetricL2  = "l2"
)

// Feature counts up to this value are searched sequentially.
const splitParallelThreshold = 4

// Params contains the boosting hyperparameters.
type Params struct {
	NumRounds           int     `json:"num_rounds"`
	LearningRate        float64 `json:"learning_rate"`
	NumLeaves           int     `json:"num_leaves"`
	MaxDepth            int     `json:"max_depth"` // <= 0 means no limit
	MinDataInLeaf       int     `json:"min_data_in_leaf"`
	Lambda              float64 `json:"lambda_l2"`
	FeatureFraction     float64 `json:"feature_fraction"`
	BaggingFraction     float64 `json:"bagging_fraction"`
	BaggingFreq         int     `json:"bagging_freq"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
	Metric              string  `json:"metric"`
	LogPeriod           int     `json:"log_period"`
	ValidationFraction  float64 `json:"validation_fraction"`
	Seed                uint64  `json:"seed"`
}

// DefaultParams returns the daily-forecast defaults.
func DefaultParams() Params {
	return Params{
		NumRounds:           2000,
		LearningRate:        0.05,
		NumLeaves:           63,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		FeatureFraction:     0.8,
		BaggingFraction:     0.8,
		BaggingFreq:         5,
		EarlyStoppingRounds: 100,
		Metric:              MetricMAE,
		LogPeriod:           200,
		ValidationFraction:  0.1,
		Seed:                42,
	}
}

func (p Params) validate() error {
	switch {
	case p.NumRounds <= 0:
		return errors.NewValidationError("num_rounds", "must be positive", p.NumRounds)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.ValidationFraction < 0 || p.ValidationFraction >= 1:
		return errors.NewValidationError("validation_fraction", "must be in [0, 1)", p.ValidationFraction)
	case p.Metric != MetricMAE && p.Metric != MetricL2:
		return errors.NewValidationError("metric", "must be mae or l2", p.Metric)
	}
	return nil
}

// evalMetric returns the early-stopping metric selected by Metric.
func (p Params) evalMetric() func(pred, target []float64) float64 {
	if p.Metric == MetricL2 {
		return mse
	}
	return mae
}

// GBDTRegressor is an L2 gradient-boosted tree regressor. Exported fields
// form the gob artifact.
type GBDTRegressor struct {
	State  *model.StateManager
	Params Params

	InitScore float64
	Trees     []Tree

	// BestIteration is the zero-based round kept as the last tree.
	BestIteration int
	// BestScore is the validation metric at BestIteration, or the training
	// MSE when no rows were held out.
	BestScore float64
	// FeatureGain is the total split gain per feature over the kept trees.
	FeatureGain []float64

	logger log.Logger
}

var _ model.Regressor = (*GBDTRegressor)(nil)

// Option configures a GBDTRegressor.
type Option func(*GBDTRegressor)

// WithParams replaces the hyperparameters.
func WithParams(p Params) Option {
	return func(g *GBDTRegressor) { g.Params = p }
}

// WithLogger sets the logger used for round and early-stopping reports.
func WithLogger(l log.Logger) Option {
	return func(g *GBDTRegressor) { g.logger = l }
}

// NewGBDTRegressor creates an unfitted regressor with DefaultParams.
func NewGBDTRegressor(opts ...Option) *GBDTRegressor {
	g := &GBDTRegressor{State: model.NewStateManager(), Params: DefaultParams()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load reads a regressor saved with model.SaveModel.
func Load(path string, opts ...Option) (*GBDTRegressor, error) {
	g := &GBDTRegressor{}
	if err := model.LoadModel(g, path); err != nil {
		return nil, err
	}
	if g.State == nil {
		g.State = model.NewStateManager()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the model name.
func (g *GBDTRegressor) Name() string { return ModelName }

func (g *GBDTRegressor) getLogger() log.Logger {
	if g.logger == nil {
		g.logger = log.GetLoggerWithName("ensemble").With(log.ModelNameKey, ModelName)
	}
	return g.logger
}

// Fit trains the ensemble. The last ValidationFraction of the rows (in the
// given order) is held out for early stopping and the ensemble is truncated
// to the best validation round.
func (g *GBDTRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GBDTRegressor.Fit")

	if err := g.Params.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("GBDTRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("GBDTRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GBDTRegressor.Fit", 1, yCols, 1)
	}

	g.State.Reset()
	p := g.Params
	logger := g.getLogger()
	start := time.Now()

	x := mat.DenseCopyOf(X)
	yv := mat.NewVecDense(rows, mat.Col(nil, 0, y))
	xFit, yFit, xVal, yVal := dataset.HoldoutTail(x, yv, p.ValidationFraction)

	tr := newTrainer(p, xFit, yFit)
	g.InitScore = tr.initScore
	g.Trees = g.Trees[:0]

	var valPred, valTarget []float64
	var valRows [][]float64
	if xVal != nil {
		nVal, _ := xVal.Dims()
		valTarget = mat.Col(nil, 0, yVal)
		valPred = make([]float64, nVal)
		valRows = make([][]float64, nVal)
		for i := range valPred {
			valPred[i] = g.InitScore
			valRows[i] = mat.Row(nil, i, xVal)
		}
	}

	logger.Info("boosting started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, tr.n,
		log.FeaturesKey, cols,
		log.LearningRateKey, p.LearningRate,
		log.RandomSeedKey, p.Seed,
		log.EvalMetricKey, p.Metric,
	)

	metric := p.evalMetric()
	es := model.NewEarlyStopping(p.EarlyStoppingRounds)
	var bag []int
	trainLoss := tr.loss()
	for iter := 0; iter < p.NumRounds; iter++ {
		tr.computeGradients()
		bag = tr.bag(iter, bag)
		tree := tr.buildTree(bag, tr.sampleFeatures())
		g.Trees = append(g.Trees, tree)
		tr.update(&tree)
		trainLoss = tr.loss()
		if err := errors.CheckScalar("GBDTRegressor.Fit", trainLoss, iter); err != nil {
			return err
		}

		if valPred == nil {
			if p.LogPeriod > 0 && (iter+1)%p.LogPeriod == 0 {
				logger.Info("boosting round", log.IterationKey, iter+1, log.LossKey, trainLoss)
			}
			continue
		}

		for i := range valPred {
			valPred[i] += tree.Predict(valRows[i])
		}
		valLoss := metric(valPred, valTarget)
		stop := es.Update(iter, valLoss)
		if p.LogPeriod > 0 && (iter+1)%p.LogPeriod == 0 {
			logger.Info("boosting round",
				log.IterationKey, iter+1,
				log.LossKey, trainLoss,
				log.ValidLossKey, valLoss,
			)
		}
		if stop {
			logger.Info("early stopping",
				log.IterationKey, iter+1,
				log.BestIterationKey, es.BestIteration+1,
				log.ValidLossKey, es.BestScore,
			)
			break
		}
	}

	if valPred != nil && es.Enabled {
		g.Trees = g.Trees[:es.BestIteration+1]
		g.BestIteration = es.BestIteration
		g.BestScore = es.BestScore
	} else if valPred != nil {
		g.BestIteration = len(g.Trees) - 1
		g.BestScore = metric(valPred, valTarget)
	} else {
		g.BestIteration = len(g.Trees) - 1
		g.BestScore = trainLoss
	}

	g.FeatureGain = make([]float64, cols)
	for t := range g.Trees {
		for _, n := range g.Trees[t].Nodes {
			if !n.IsLeaf() {
				g.FeatureGain[n.SplitFeature] += n.Gain
			}
		}
	}

	g.State.SetFitted(cols, rows)
	logger.Info("boosting finished",
		log.IterationKey, len(g.Trees),
		log.BestIterationKey, g.BestIteration+1,
		log.LossKey, g.BestScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (g *GBDTRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if g.State == nil {
		return nil, errors.NewNotFittedError("GBDTRegressor", "Predict")
	}
	if err := g.State.RequireFitted("GBDTRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := g.State.CheckFeatures("GBDTRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			v := g.InitScore
			for t := range g.Trees {
				v += g.Trees[t].Predict(row)
			}
			out.Set(i, 0, v)
		}
	})
	return out, nil
}

// trainer holds the per-fit working state.
type trainer struct {
	p Params
	n int

	cols   [][]float64 // column-major features
	sorted [][]int     // row indices per feature, ascending by value
	y      []float64
	pred   []float64
	grad   []float64
	leafOf []int // leaf node of each row in the current tree, -1 outside the bag

	initScore float64
	rng       *rand.Rand
}

func newTrainer(p Params, x *mat.Dense, y *mat.VecDense) *trainer {
	n, c := x.Dims()
	t := &trainer{
		p:      p,
		n:      n,
		cols:   make([][]float64, c),
		sorted: make([][]int, c),
		y:      mat.Col(nil, 0, y),
		pred:   make([]float64, n),
		grad:   make([]float64, n),
		leafOf: make([]int, n),
		rng:    rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
	}
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, x)
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return col[idx[a]] < col[idx[b]] })
		t.cols[j] = col
		t.sorted[j] = idx
	}

	// L2 の初期スコアは目的変数の平均
	var sum float64
	for _, v := range t.y {
		sum += v
	}
	t.initScore = sum / float64(n)
	for i := range t.pred {
		t.pred[i] = t.initScore
	}
	return t
}

func (t *trainer) computeGradients() {
	for i := range t.grad {
		t.grad[i] = t.pred[i] - t.y[i]
	}
}

func (t *trainer) loss() float64 {
	return mse(t.pred, t.y)
}

func (t *trainer) update(tree *Tree) {
	row := make([]float64, len(t.cols))
	for i := 0; i < t.n; i++ {
		for j := range t.cols {
			row[j] = t.cols[j][i]
		}
		t.pred[i] += tree.Predict(row)
	}
}

// bag returns the rows used by round iter. A new sample is drawn every
// BaggingFreq rounds; in between the previous sample is reused.
func (t *trainer) bag(iter int, current []int) []int {
	if t.p.BaggingFreq <= 0 || t.p.BaggingFraction >= 1 {
		if current == nil {
			current = make([]int, t.n)
			for i := range current {
				current[i] = i
			}
		}
		return current
	}
	if current != nil && iter%t.p.BaggingFreq != 0 {
		return current
	}
	k := max(1, int(t.p.BaggingFraction*float64(t.n)))
	rows := t.rng.Perm(t.n)[:k]
	sort.Ints(rows)
	return rows
}

func (t *trainer) sampleFeatures() []int {
	nf := len(t.cols)
	if t.p.FeatureFraction >= 1 {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := max(1, int(math.Round(t.p.FeatureFraction*float64(nf))))
	features := t.rng.Perm(nf)[:k]
	sort.Ints(features)
	return features
}

type splitInfo struct {
	ok        bool
	Feature   int
	Threshold float64
	Gain      float64
}

type leafState struct {
	node  int
	depth int
	count int
	sumG  float64
	split splitInfo
}

// buildTree grows one tree leaf-wise: the leaf with the largest gain is split
// until NumLeaves is reached or no leaf has a positive gain.
func (t *trainer) buildTree(bag, features []int) Tree {
	tree := Tree{ShrinkageRate: t.p.LearningRate}
	for i := range t.leafOf {
		t.leafOf[i] = -1
	}
	root := leafState{count: len(bag)}
	for _, r := range bag {
		t.leafOf[r] = 0
		root.sumG += t.grad[r]
	}
	tree.Nodes = append(tree.Nodes, Node{LeftChild: -1, RightChild: -1, LeafCount: root.count})
	root.split = t.findBestSplit(root, features)
	leaves := []leafState{root}

	for len(leaves) < t.p.NumLeaves {
		best := -1
		for i := range leaves {
			if leaves[i].split.ok && (best < 0 || leaves[i].split.Gain > leaves[best].split.Gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}

		parent := leaves[best]
		s := parent.split
		leftID, rightID := len(tree.Nodes), len(tree.Nodes)+1
		node := &tree.Nodes[parent.node]
		node.SplitFeature = s.Feature
		node.Threshold = s.Threshold
		node.Gain = s.Gain
		node.LeftChild = leftID
		node.RightChild = rightID

		left := leafState{node: leftID, depth: parent.depth + 1}
		right := leafState{node: rightID, depth: parent.depth + 1}
		col := t.cols[s.Feature]
		for _, r := range bag {
			if t.leafOf[r] != parent.node {
				continue
			}
			if col[r] <= s.Threshold {
				t.leafOf[r] = leftID
				left.count++
				left.sumG += t.grad[r]
			} else {
				t.leafOf[r] = rightID
				right.count++
				right.sumG += t.grad[r]
			}
		}
		tree.Nodes = append(tree.Nodes,
			Node{LeftChild: -1, RightChild: -1, LeafCount: left.count},
			Node{LeftChild: -1, RightChild: -1, LeafCount: right.count},
		)
		left.split = t.findBestSplit(left, features)
		right.split = t.findBestSplit(right, features)
		leaves[best] = left
		leaves = append(leaves, right)
	}

	for _, l := range leaves {
		// L2 損失ではヘシアンが 1 なので、行数が二階微分の和になる
		tree.Nodes[l.node].LeafValue = -l.sumG / (float64(l.count) + t.p.Lambda)
	}
	tree.NumLeaves = len(leaves)
	return tree
}

// findBestSplit searches the sampled features in parallel and reduces in
// feature order, so ties resolve to the lowest feature index.
func (t *trainer) findBestSplit(leaf leafState, features []int) splitInfo {
	if t.p.MaxDepth > 0 && leaf.depth >= t.p.MaxDepth {
		return splitInfo{}
	}
	if leaf.count < 2*t.p.MinDataInLeaf {
		return splitInfo{}
	}
	results := parallel.Map(len(features), splitParallelThreshold, func(i int) splitInfo {
		return t.bestSplitForFeature(leaf, features[i])
	})
	var best splitInfo
	for _, s := range results {
		if s.ok && (!best.ok || s.Gain > best.Gain) {
			best = s
		}
	}
	return best
}

func (t *trainer) bestSplitForFeature(leaf leafState, feature int) splitInfo {
	col := t.cols[feature]
	lambda := t.p.Lambda
	parentScore := leaf.sumG * leaf.sumG / (float64(leaf.count) + lambda)

	best := splitInfo{Feature: feature}
	var leftG float64
	leftCount := 0
	prev := -1
	for _, r := range t.sorted[feature] {
		if t.leafOf[r] != leaf.node {
			continue
		}
		if prev >= 0 && col[r] != col[prev] {
			rightCount := leaf.count - leftCount
			if leftCount >= t.p.MinDataInLeaf && rightCount >= t.p.MinDataInLeaf {
				rightG := leaf.sumG - leftG
				gain := 0.5 * (leftG*leftG/(float64(leftCount)+lambda) +
					rightG*rightG/(float64(rightCount)+lambda) - parentScore)
				if gain > 0 && (!best.ok || gain > best.Gain) {
					best.ok = true
					best.Gain = gain
					best.Threshold = (col[prev] + col[r]) / 2
				}
			}
		}
		leftG += t.grad[r]
		leftCount++
		prev = r
	}
	return best
}

func mae(pred, target []float64) float64 {
	var sum float64
	for i := range pred {
		sum += math.Abs(pred[i] - target[i])
	}
	return sum / float64(len(pred))
}

func mse(pred, target []float64) float64 {
	var sum float64
	for i := range pred {
		d := pred[i] - target[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}
