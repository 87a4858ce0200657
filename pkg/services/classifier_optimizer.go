package services

import "math"

// adamState Adamオプティマイザの1学習実行分の状態。
// モーメントはパラメータ名をキーに保持し、学習終了後は破棄される。
type adamState struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64
	t       int

	m1 map[string][]float64
	v1 map[string][]float64
	m2 map[string][][]float64
	v2 map[string][][]float64
}

func newAdamState(learningRate float64) *adamState {
	return &adamState{
		lr:      learningRate,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-8,
		m1:      make(map[string][]float64),
		v1:      make(map[string][]float64),
		m2:      make(map[string][][]float64),
		v2:      make(map[string][][]float64),
	}
}

// step タイムステップを進める（バイアス補正に使用）
func (a *adamState) step() {
	a.t++
}

func (a *adamState) update1D(name string, params, grads []float64) {
	m, ok := a.m1[name]
	if !ok {
		m = make([]float64, len(params))
		a.m1[name] = m
	}
	v, ok := a.v1[name]
	if !ok {
		v = make([]float64, len(params))
		a.v1[name] = v
	}

	for i := range params {
		m[i] = a.beta1*m[i] + (1-a.beta1)*grads[i]
		v[i] = a.beta2*v[i] + (1-a.beta2)*grads[i]*grads[i]
		mHat := m[i] / (1 - math.Pow(a.beta1, float64(a.t)))
		vHat := v[i] / (1 - math.Pow(a.beta2, float64(a.t)))
		params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.epsilon)
	}
}

func (a *adamState) update2D(name string, params, grads [][]float64) {
	m, ok := a.m2[name]
	if !ok {
		m = zeros2D(len(params), len(params[0]))
		a.m2[name] = m
	}
	v, ok := a.v2[name]
	if !ok {
		v = zeros2D(len(params), len(params[0]))
		a.v2[name] = v
	}

	for i := range params {
		for j := range params[i] {
			m[i][j] = a.beta1*m[i][j] + (1-a.beta1)*grads[i][j]
			v[i][j] = a.beta2*v[i][j] + (1-a.beta2)*grads[i][j]*grads[i][j]
			mHat := m[i][j] / (1 - math.Pow(a.beta1, float64(a.t)))
			vHat := v[i][j] / (1 - math.Pow(a.beta2, float64(a.t)))
			params[i][j] -= a.lr * mHat / (math.Sqrt(vHat) + a.epsilon)
		}
	}
}
