package neural

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam keeps the first and second moment estimates of every parameter.
type adam struct {
	lr float64
	t  int
	mW []*mat.Dense
	vW []*mat.Dense
	mB []*mat.VecDense
	vB []*mat.VecDense
}

func newAdam(weights []*mat.Dense, biases []*mat.VecDense, lr float64) *adam {
	a := &adam{lr: lr}
	for l := range weights {
		r, c := weights[l].Dims()
		a.mW = append(a.mW, mat.NewDense(r, c, nil))
		a.vW = append(a.vW, mat.NewDense(r, c, nil))
		a.mB = append(a.mB, mat.NewVecDense(biases[l].Len(), nil))
		a.vB = append(a.vB, mat.NewVecDense(biases[l].Len(), nil))
	}
	return a
}

// update applies one bias-corrected Adam step in place.
func (a *adam) update(weights []*mat.Dense, biases []*mat.VecDense, gradW []*mat.Dense, gradB []*mat.VecDense) {
	a.t++
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, float64(a.t))) / (1 - math.Pow(adamBeta1, float64(a.t)))

	for l := range weights {
		w, g, m, v := weights[l].RawMatrix(), gradW[l].RawMatrix(), a.mW[l].RawMatrix(), a.vW[l].RawMatrix()
		adamStep(w.Data, g.Data, m.Data, v.Data, lrT)

		b, gb, mb, vb := biases[l].RawVector(), gradB[l].RawVector(), a.mB[l].RawVector(), a.vB[l].RawVector()
		adamStep(b.Data, gb.Data, mb.Data, vb.Data, lrT)
	}
}

func adamStep(w, g, m, v []float64, lrT float64) {
	for i := range w {
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
		w[i] -= lrT * m[i] / (math.Sqrt(v[i]) + adamEpsilon)
	}
}
