package gnn

import "math"

// Adam is the optimizer used by the trainer: first/second moment
// estimates with bias correction, stepped once per interaction.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step   int
	params []param
	m      [][]float64
	v      [][]float64
}

func NewAdam(model *Model, lr float64) *Adam {
	params := model.params()
	a := &Adam{
		LR:     lr,
		Beta1:  0.9,
		Beta2:  0.999,
		Eps:    1e-8,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.val))
		a.v[i] = make([]float64, len(p.val))
	}
	return a
}

// Step applies the accumulated gradients and advances the step count.
// Gradients are not cleared; the caller zeroes them before each backward.
func (a *Adam) Step() {
	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range a.params {
		m := a.m[i]
		v := a.v[i]
		for j := range p.val {
			g := float64(p.grad[j])
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p.val[j] -= float32(a.LR * mHat / (math.Sqrt(vHat) + a.Eps))
		}
	}
}
