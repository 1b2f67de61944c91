// Package models provides the sequence model and value scaler used for
// per-role demand forecasting.
package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/goccy/go-json"
)

// LSTM implements next-step sequence forecasting with two stacked LSTM
// layers, dropout regularization between layers and before the output, and a
// single-unit linear head. Training minimizes mean squared error with Adam
// and stops early when the training loss plateaus.
//
// The model operates on scaled values; pairing with the fitted MinMaxScaler
// is the caller's responsibility. It is safe for concurrent PredictNext calls
// after training.
type LSTM struct {
	mu      sync.RWMutex
	cfg     LSTMConfig
	layers  []lstmLayer
	outW    []float64
	outB    float64
	trained bool
}

// LSTMConfig holds the training hyperparameters.
type LSTMConfig struct {
	HiddenSize   int     // units per recurrent layer
	Dropout      float64 // drop probability between layers and before the head
	LearningRate float64 // Adam step size
	Epochs       int     // maximum training epochs
	BatchSize    int     // examples per gradient step
	Patience     int     // epochs without loss improvement before stopping
	Seed         int64   // weight init and dropout randomness
}

// DefaultLSTMConfig returns the standard training configuration.
func DefaultLSTMConfig() LSTMConfig {
	return LSTMConfig{
		HiddenSize:   50,
		Dropout:      0.2,
		LearningRate: 0.001,
		Epochs:       50,
		BatchSize:    16,
		Patience:     5,
		Seed:         42,
	}
}

// lstmLayer holds one layer's weights with gate rows ordered i, f, g, o.
type lstmLayer struct {
	inSize int
	wx     [][]float64 // [4H][inSize]
	wh     [][]float64 // [4H][H]
	b      []float64   // [4H]
}

// NewLSTM creates an untrained model. Out-of-range config values fall back to
// the defaults.
func NewLSTM(cfg LSTMConfig) *LSTM {
	def := DefaultLSTMConfig()
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = def.HiddenSize
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		cfg.Dropout = def.Dropout
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Patience <= 0 {
		cfg.Patience = def.Patience
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	H := cfg.HiddenSize

	m := &LSTM{
		cfg:  cfg,
		outW: make([]float64, H),
	}
	m.layers = []lstmLayer{
		newLSTMLayer(1, H, rng),
		newLSTMLayer(H, H, rng),
	}
	limit := 1 / math.Sqrt(float64(H))
	for j := range m.outW {
		m.outW[j] = (rng.Float64()*2 - 1) * limit
	}
	return m
}

// newLSTMLayer initializes weights uniformly in [-1/sqrt(fanIn), 1/sqrt(fanIn)].
func newLSTMLayer(inSize, hidden int, rng *rand.Rand) lstmLayer {
	l := lstmLayer{
		inSize: inSize,
		wx:     make([][]float64, 4*hidden),
		wh:     make([][]float64, 4*hidden),
		b:      make([]float64, 4*hidden),
	}
	xLimit := 1 / math.Sqrt(float64(inSize))
	hLimit := 1 / math.Sqrt(float64(hidden))
	for r := 0; r < 4*hidden; r++ {
		l.wx[r] = make([]float64, inSize)
		for k := range l.wx[r] {
			l.wx[r][k] = (rng.Float64()*2 - 1) * xLimit
		}
		l.wh[r] = make([]float64, hidden)
		for k := range l.wh[r] {
			l.wh[r][k] = (rng.Float64()*2 - 1) * hLimit
		}
	}
	// forget-gate bias starts at 1 so early training retains cell state
	for j := 0; j < hidden; j++ {
		l.b[hidden+j] = 1
	}
	return l
}

// Name returns the model identifier.
func (m *LSTM) Name() string { return "lstm" }

// Trained reports whether the model has completed training or been restored
// from a persisted artifact.
func (m *LSTM) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// stepCache records one timestep's intermediate values for backpropagation.
type stepCache struct {
	in    []float64
	hPrev []float64
	cPrev []float64
	i     []float64
	f     []float64
	g     []float64
	o     []float64
	c     []float64
	h     []float64
	tanhC []float64
}

// step advances one layer by one timestep.
func (l *lstmLayer) step(in, hPrev, cPrev []float64) stepCache {
	H := len(hPrev)
	cache := stepCache{
		in:    in,
		hPrev: hPrev,
		cPrev: cPrev,
		i:     make([]float64, H),
		f:     make([]float64, H),
		g:     make([]float64, H),
		o:     make([]float64, H),
		c:     make([]float64, H),
		h:     make([]float64, H),
		tanhC: make([]float64, H),
	}

	pre := make([]float64, 4*H)
	for r := 0; r < 4*H; r++ {
		s := l.b[r]
		wxr := l.wx[r]
		for k := range in {
			s += wxr[k] * in[k]
		}
		whr := l.wh[r]
		for k := 0; k < H; k++ {
			s += whr[k] * hPrev[k]
		}
		pre[r] = s
	}

	for j := 0; j < H; j++ {
		cache.i[j] = sigmoid(pre[j])
		cache.f[j] = sigmoid(pre[H+j])
		cache.g[j] = math.Tanh(pre[2*H+j])
		cache.o[j] = sigmoid(pre[3*H+j])
		cache.c[j] = cache.f[j]*cPrev[j] + cache.i[j]*cache.g[j]
		cache.tanhC[j] = math.Tanh(cache.c[j])
		cache.h[j] = cache.o[j] * cache.tanhC[j]
	}
	return cache
}

// forward runs the full stack over a window. masksMid (per timestep) and
// maskOut apply inverted dropout when non-nil; both are nil at inference.
// Callers must hold at least a read lock.
func (m *LSTM) forward(window []float64, masksMid [][]float64, maskOut []float64) (float64, [][]stepCache) {
	T := len(window)
	H := m.cfg.HiddenSize
	L := len(m.layers)

	caches := make([][]stepCache, L)
	for l := range caches {
		caches[l] = make([]stepCache, T)
	}

	h := make([][]float64, L)
	c := make([][]float64, L)
	for l := 0; l < L; l++ {
		h[l] = make([]float64, H)
		c[l] = make([]float64, H)
	}

	for t := 0; t < T; t++ {
		in := []float64{window[t]}
		for l := 0; l < L; l++ {
			cache := m.layers[l].step(in, h[l], c[l])
			caches[l][t] = cache
			h[l] = cache.h
			c[l] = cache.c

			in = cache.h
			if masksMid != nil && l == 0 {
				dropped := make([]float64, H)
				for j := 0; j < H; j++ {
					dropped[j] = cache.h[j] * masksMid[t][j]
				}
				in = dropped
			}
		}
	}

	last := h[L-1]
	y := m.outB
	for j := 0; j < H; j++ {
		hj := last[j]
		if maskOut != nil {
			hj *= maskOut[j]
		}
		y += m.outW[j] * hj
	}
	return y, caches
}

// lstmGrads accumulates gradients shaped like the model's weights.
type lstmGrads struct {
	layers []layerGrads
	outW   []float64
	outB   float64
}

type layerGrads struct {
	wx [][]float64
	wh [][]float64
	b  []float64
}

func (m *LSTM) newGrads() *lstmGrads {
	g := &lstmGrads{
		layers: make([]layerGrads, len(m.layers)),
		outW:   make([]float64, len(m.outW)),
	}
	for l, layer := range m.layers {
		g.layers[l] = layerGrads{
			wx: zeros2D(len(layer.wx), layer.inSize),
			wh: zeros2D(len(layer.wh), m.cfg.HiddenSize),
			b:  make([]float64, len(layer.b)),
		}
	}
	return g
}

func zeros2D(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, cols)
	}
	return out
}

// backward accumulates one example's gradients via backpropagation through
// time. dy is the loss derivative at the linear head.
func (m *LSTM) backward(caches [][]stepCache, dy float64, masksMid [][]float64, maskOut []float64, g *lstmGrads) {
	H := m.cfg.HiddenSize
	L := len(m.layers)
	T := len(caches[0])

	dh := make([][]float64, L)
	dc := make([][]float64, L)
	for l := 0; l < L; l++ {
		dh[l] = make([]float64, H)
		dc[l] = make([]float64, H)
	}

	lastH := caches[L-1][T-1].h
	g.outB += dy
	for j := 0; j < H; j++ {
		hj := lastH[j]
		grad := dy * m.outW[j]
		if maskOut != nil {
			hj *= maskOut[j]
			grad *= maskOut[j]
		}
		g.outW[j] += dy * hj
		dh[L-1][j] = grad
	}

	for t := T - 1; t >= 0; t-- {
		var dIn []float64
		for l := L - 1; l >= 0; l-- {
			cache := &caches[l][t]

			if dIn != nil {
				for j := 0; j < H; j++ {
					d := dIn[j]
					if masksMid != nil {
						d *= masksMid[t][j]
					}
					dh[l][j] += d
				}
			}

			gates := make([]float64, 4*H)
			for j := 0; j < H; j++ {
				do := dh[l][j] * cache.tanhC[j]
				dcj := dc[l][j] + dh[l][j]*cache.o[j]*(1-cache.tanhC[j]*cache.tanhC[j])
				di := dcj * cache.g[j]
				df := dcj * cache.cPrev[j]
				dg := dcj * cache.i[j]

				gates[j] = di * cache.i[j] * (1 - cache.i[j])
				gates[H+j] = df * cache.f[j] * (1 - cache.f[j])
				gates[2*H+j] = dg * (1 - cache.g[j]*cache.g[j])
				gates[3*H+j] = do * cache.o[j] * (1 - cache.o[j])

				dc[l][j] = dcj * cache.f[j]
			}

			layer := &m.layers[l]
			lg := &g.layers[l]
			dhPrev := make([]float64, H)
			din := make([]float64, len(cache.in))

			for r := 0; r < 4*H; r++ {
				gr := gates[r]
				for k := range cache.in {
					lg.wx[r][k] += gr * cache.in[k]
					din[k] += layer.wx[r][k] * gr
				}
				for k := 0; k < H; k++ {
					lg.wh[r][k] += gr * cache.hPrev[k]
					dhPrev[k] += layer.wh[r][k] * gr
				}
				lg.b[r] += gr
			}

			dh[l] = dhPrev
			if l > 0 {
				dIn = din
			} else {
				dIn = nil
			}
		}
	}
}

// adamState carries first/second moment estimates shaped like the weights.
type adamState struct {
	m1   *lstmGrads
	m2   *lstmGrads
	step int
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// applyAdam performs one optimizer step using gradients averaged over the
// batch.
func (m *LSTM) applyAdam(g *lstmGrads, st *adamState, batch int) {
	st.step++
	scale := 1 / float64(batch)
	c1 := 1 - math.Pow(adamBeta1, float64(st.step))
	c2 := 1 - math.Pow(adamBeta2, float64(st.step))
	lr := m.cfg.LearningRate

	update := func(w, grad, m1, m2 []float64) {
		for k := range w {
			gk := grad[k] * scale
			m1[k] = adamBeta1*m1[k] + (1-adamBeta1)*gk
			m2[k] = adamBeta2*m2[k] + (1-adamBeta2)*gk*gk
			w[k] -= lr * (m1[k] / c1) / (math.Sqrt(m2[k]/c2) + adamEps)
		}
	}

	for l := range m.layers {
		for r := range m.layers[l].wx {
			update(m.layers[l].wx[r], g.layers[l].wx[r], st.m1.layers[l].wx[r], st.m2.layers[l].wx[r])
			update(m.layers[l].wh[r], g.layers[l].wh[r], st.m1.layers[l].wh[r], st.m2.layers[l].wh[r])
		}
		update(m.layers[l].b, g.layers[l].b, st.m1.layers[l].b, st.m2.layers[l].b)
	}
	update(m.outW, g.outW, st.m1.outW, st.m2.outW)

	gb := g.outB * scale
	st.m1.outB = adamBeta1*st.m1.outB + (1-adamBeta1)*gb
	st.m2.outB = adamBeta2*st.m2.outB + (1-adamBeta2)*gb*gb
	m.outB -= lr * (st.m1.outB / c1) / (math.Sqrt(st.m2.outB/c2) + adamEps)
}

// Train fits the model on sliding-window examples: each windows[k] is a
// sequence of scaled values and targets[k] the next scaled value.
//
// Training runs up to cfg.Epochs epochs, shuffling examples each epoch and
// stepping Adam per batch. When the epoch loss fails to improve for
// cfg.Patience consecutive epochs, training stops and the best-loss weights
// are restored. The context is checked between epochs.
func (m *LSTM) Train(ctx context.Context, windows [][]float64, targets []float64) error {
	if len(windows) == 0 {
		return errors.New("lstm: no training examples")
	}
	if len(windows) != len(targets) {
		return fmt.Errorf("lstm: %d windows but %d targets", len(windows), len(targets))
	}
	T := len(windows[0])
	if T == 0 {
		return errors.New("lstm: empty training window")
	}
	for k := range windows {
		if len(windows[k]) != T {
			return fmt.Errorf("lstm: window %d has length %d, want %d", k, len(windows[k]), T)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	H := m.cfg.HiddenSize
	rng := rand.New(rand.NewSource(m.cfg.Seed + 1))

	st := &adamState{m1: m.newGrads(), m2: m.newGrads()}
	indices := make([]int, len(windows))
	for k := range indices {
		indices[k] = k
	}

	bestLoss := math.Inf(1)
	var bestWeights *lstmState
	wait := 0

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rng.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})

		epochLoss := 0.0
		for start := 0; start < len(indices); start += m.cfg.BatchSize {
			end := start + m.cfg.BatchSize
			if end > len(indices) {
				end = len(indices)
			}

			grads := m.newGrads()
			for _, k := range indices[start:end] {
				masksMid, maskOut := m.dropoutMasks(T, H, rng)
				y, caches := m.forward(windows[k], masksMid, maskOut)
				diff := y - targets[k]
				epochLoss += diff * diff
				m.backward(caches, diff, masksMid, maskOut, grads)
			}
			m.applyAdam(grads, st, end-start)
		}
		epochLoss /= float64(len(indices))

		if epochLoss < bestLoss-1e-9 {
			bestLoss = epochLoss
			bestWeights = m.snapshot()
			wait = 0
			continue
		}
		wait++
		if wait >= m.cfg.Patience {
			break
		}
	}

	if bestWeights != nil {
		m.restore(bestWeights)
	}
	m.trained = true
	return nil
}

// dropoutMasks builds inverted-dropout masks for one example. Returns nils
// when dropout is disabled.
func (m *LSTM) dropoutMasks(T, H int, rng *rand.Rand) ([][]float64, []float64) {
	p := m.cfg.Dropout
	if p <= 0 {
		return nil, nil
	}
	keep := 1 - p

	mid := make([][]float64, T)
	for t := range mid {
		mid[t] = make([]float64, H)
		for j := range mid[t] {
			if rng.Float64() >= p {
				mid[t][j] = 1 / keep
			}
		}
	}
	out := make([]float64, H)
	for j := range out {
		if rng.Float64() >= p {
			out[j] = 1 / keep
		}
	}
	return mid, out
}

// PredictNext returns the next-step scaled forecast for the given window of
// scaled values. Safe for concurrent use after training.
func (m *LSTM) PredictNext(window []float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return 0, errors.New("lstm: model is not trained")
	}
	if len(window) == 0 {
		return 0, errors.New("lstm: input window cannot be empty")
	}

	y, _ := m.forward(window, nil, nil)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("lstm: inference produced non-finite value %v", y)
	}
	return y, nil
}

// lstmState is the serialized weight layout.
type lstmState struct {
	HiddenSize int          `json:"hidden_size"`
	Layers     []layerState `json:"layers"`
	OutW       []float64    `json:"out_w"`
	OutB       float64      `json:"out_b"`
	Trained    bool         `json:"trained"`
}

type layerState struct {
	InSize int         `json:"in_size"`
	Wx     [][]float64 `json:"wx"`
	Wh     [][]float64 `json:"wh"`
	B      []float64   `json:"b"`
}

// snapshot deep-copies the current weights. Callers must hold the lock.
func (m *LSTM) snapshot() *lstmState {
	st := &lstmState{
		HiddenSize: m.cfg.HiddenSize,
		Layers:     make([]layerState, len(m.layers)),
		OutW:       append([]float64(nil), m.outW...),
		OutB:       m.outB,
		Trained:    m.trained,
	}
	for l, layer := range m.layers {
		st.Layers[l] = layerState{
			InSize: layer.inSize,
			Wx:     copy2D(layer.wx),
			Wh:     copy2D(layer.wh),
			B:      append([]float64(nil), layer.b...),
		}
	}
	return st
}

// restore replaces the current weights. Callers must hold the lock.
func (m *LSTM) restore(st *lstmState) {
	m.outW = append([]float64(nil), st.OutW...)
	m.outB = st.OutB
	m.layers = make([]lstmLayer, len(st.Layers))
	for l, layer := range st.Layers {
		m.layers[l] = lstmLayer{
			inSize: layer.InSize,
			wx:     copy2D(layer.Wx),
			wh:     copy2D(layer.Wh),
			b:      append([]float64(nil), layer.B...),
		}
	}
}

func copy2D(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for r := range src {
		out[r] = append([]float64(nil), src[r]...)
	}
	return out
}

// MarshalJSON serializes the trained weights.
func (m *LSTM) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(m.snapshot())
}

// UnmarshalJSON restores a model from serialized weights, validating the
// layout so a truncated or mismatched artifact surfaces as an error instead
// of producing silent garbage at inference time.
func (m *LSTM) UnmarshalJSON(data []byte) error {
	var st lstmState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("lstm: decode weights: %w", err)
	}

	if st.HiddenSize <= 0 {
		return fmt.Errorf("lstm: invalid hidden size %d", st.HiddenSize)
	}
	if len(st.Layers) != 2 {
		return fmt.Errorf("lstm: expected 2 layers, got %d", len(st.Layers))
	}
	if len(st.OutW) != st.HiddenSize {
		return fmt.Errorf("lstm: output weights length %d, want %d", len(st.OutW), st.HiddenSize)
	}
	for l, layer := range st.Layers {
		if len(layer.Wx) != 4*st.HiddenSize || len(layer.Wh) != 4*st.HiddenSize || len(layer.B) != 4*st.HiddenSize {
			return fmt.Errorf("lstm: layer %d has inconsistent gate dimensions", l)
		}
		for r := range layer.Wx {
			if len(layer.Wx[r]) != layer.InSize || len(layer.Wh[r]) != st.HiddenSize {
				return fmt.Errorf("lstm: layer %d row %d has inconsistent width", l, r)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = DefaultLSTMConfig()
	m.cfg.HiddenSize = st.HiddenSize
	m.restore(&st)
	m.trained = st.Trained
	return nil
}
