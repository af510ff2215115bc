// Package preprocessing provides feature scaling fitted on the training
// partition only.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikecast/core/model"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// zeroStdTolerance 以下の標準偏差は分散ゼロとみなす
const zeroStdTolerance = 1e-8

// ZeroVariancePolicy は学習区間で分散ゼロの特徴量の扱いを決める
type ZeroVariancePolicy int

const (
	// ZeroVarianceError は DegenerateFeatureError を返す（デフォルト）
	ZeroVarianceError ZeroVariancePolicy = iota
	// ZeroVarianceUnitScale はスケールを1として中心化のみ行う
	ZeroVarianceUnitScale
)

// StandardScaler はデータを平均0、標準偏差1に変換する。
// 標準偏差は母標準偏差（N で割る）を用いる
type StandardScaler struct {
	State *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（分散ゼロかつ UnitScale の場合は 1）
	Scale []float64

	// FeatureNames は列名。エラーメッセージと成果物に使う
	FeatureNames []string

	// Policy は分散ゼロの特徴量の扱い
	Policy ZeroVariancePolicy

	// Degenerate は Fit 時に分散ゼロだった特徴量名
	Degenerate []string
}

var _ model.InverseTransformer = (*StandardScaler)(nil)

// ScalerOption は StandardScaler の設定関数
type ScalerOption func(*StandardScaler)

// WithFeatureNames は列名を設定する
func WithFeatureNames(names []string) ScalerOption {
	return func(s *StandardScaler) { s.FeatureNames = append([]string(nil), names...) }
}

// WithZeroVariancePolicy は分散ゼロの扱いを設定する
func WithZeroVariancePolicy(p ZeroVariancePolicy) ScalerOption {
	return func(s *StandardScaler) { s.Policy = p }
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(
//	    preprocessing.WithFeatureNames(split.FeatureNames),
//	    preprocessing.WithZeroVariancePolicy(preprocessing.ZeroVarianceUnitScale),
//	)
//	err := scaler.Fit(split.XTrain)
//	xTest, err := scaler.Transform(split.XTest)
func NewStandardScaler(opts ...ScalerOption) *StandardScaler {
	s := &StandardScaler{State: model.NewStateManager()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は訓練データから平均と標準偏差を計算する。X は変更されない
//
// パラメータ:
//   - X: 訓練データ (n_samples × n_features の行列)
//
// 戻り値:
//   - error: 空データ、列名の数の不一致、または ZeroVarianceError 方針で分散ゼロの列がある場合
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.FeatureNames != nil && len(s.FeatureNames) != c {
		return errors.NewDimensionError("StandardScaler.Fit", len(s.FeatureNames), c, 1)
	}

	mean := make([]float64, c)
	scale := make([]float64, c)
	var degenerate []string
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m, variance := stat.PopMeanVariance(col, nil)
		mean[j] = m
		scale[j] = math.Sqrt(variance)
		if scale[j] < zeroStdTolerance {
			degenerate = append(degenerate, s.featureName(j))
			scale[j] = 1.0
		}
	}

	if len(degenerate) > 0 && s.Policy == ZeroVarianceError {
		s.State.Reset()
		return errors.NewDegenerateFeatureError("StandardScaler.Fit", degenerate)
	}

	s.Mean = mean
	s.Scale = scale
	s.Degenerate = degenerate
	s.State.SetFitted(c, r)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化した新しい行列を返す
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("StandardScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("StandardScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// ScalerParams はスケーラーの JSON 成果物
type ScalerParams struct {
	FeatureNames []string  `json:"feature_names,omitempty"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	Degenerate   []string  `json:"zero_variance_features,omitempty"`
}

// Params は学習済みパラメータを返す
func (s *StandardScaler) Params() (ScalerParams, error) {
	if err := s.State.RequireFitted("StandardScaler", "Params"); err != nil {
		return ScalerParams{}, err
	}
	return ScalerParams{
		FeatureNames: append([]string(nil), s.FeatureNames...),
		Mean:         append([]float64(nil), s.Mean...),
		Scale:        append([]float64(nil), s.Scale...),
		Degenerate:   append([]string(nil), s.Degenerate...),
	}, nil
}

// NewStandardScalerFromParams は保存済みパラメータから学習済みスケーラーを復元する
func NewStandardScalerFromParams(p ScalerParams) (*StandardScaler, error) {
	if len(p.Mean) == 0 || len(p.Mean) != len(p.Scale) {
		return nil, errors.NewValidationError("scaler", "mean and scale must be non-empty and of equal length", len(p.Scale))
	}
	for j, v := range p.Scale {
		if v == 0 || math.IsNaN(v) {
			return nil, errors.NewValidationError(fmt.Sprintf("scale[%d]", j), "must be non-zero", v)
		}
	}
	s := NewStandardScaler(WithFeatureNames(p.FeatureNames))
	if len(p.FeatureNames) == 0 {
		s.FeatureNames = nil
	}
	s.Mean = append([]float64(nil), p.Mean...)
	s.Scale = append([]float64(nil), p.Scale...)
	s.Degenerate = append([]string(nil), p.Degenerate...)
	s.State.SetFitted(len(p.Mean), 0)
	return s, nil
}

func (s *StandardScaler) featureName(j int) string {
	if j < len(s.FeatureNames) {
		return s.FeatureNames[j]
	}
	return fmt.Sprintf("x%d", j)
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.State.IsFitted() {
		return "StandardScaler()"
	}
	nf, _ := s.State.GetDimensions()
	return fmt.Sprintf("StandardScaler(n_features=%d, zero_variance=%d)", nf, len(s.Degenerate))
}
