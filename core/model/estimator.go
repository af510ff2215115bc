// Package model defines the capabilities shared by every regressor and
// transformer of the pipeline, together with fitted-state tracking and
// artifact persistence.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は学習と予測の両方を備えた回帰モデル。
// ニューラルネットワークと勾配ブースティング木の両方がこれを満たす
type Regressor interface {
	Fitter
	Predictor
	// Name はログや成果物に使うモデル名を返す
	Name() string
}
