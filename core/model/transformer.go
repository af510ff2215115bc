package model

import "gonum.org/v1/gonum/mat"

// Transformer は学習区間で統計量を推定し、任意の区間に同じ変換を適用する。
// 評価区間の情報が学習に漏れないよう、Fit には学習行だけを渡すこと
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer は変換を元のスケールへ戻せる Transformer
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
