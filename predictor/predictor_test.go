package predictor_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/normalize"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"gonum.org/v1/gonum/mat"
)

const (
	seqLength = 5
	horizon   = 3
	targets   = 4
)

// stubPredictor 记录调用次数并返回固定输出
type stubPredictor struct {
	calls int
	out   *mat.Dense
	err   error
	last  *mat.Dense
}

func (s *stubPredictor) Predict(_ context.Context, window *mat.Dense) (*mat.Dense, error) {
	s.calls++
	s.last = window
	return s.out, s.err
}

func identityNormalizer() *normalize.Normalizer {
	return normalize.New(normalize.Params{
		XMean:  make([]float64, feature.N_FEATURES),
		XScale: []float64{1, 1, 1, 1, 1, 1},
		YMean:  make([]float64, targets),
		YScale: []float64{1, 1, 1, 1},
	})
}

func shape() predictor.Shape {
	return predictor.Shape{SeqLength: seqLength, Features: feature.N_FEATURES, Horizon: horizon, Targets: targets}
}

func option() predictor.GatewayOption {
	return predictor.GatewayOption{HorizonIndex: 1, SpeedTarget: 1, MinSpeed: 0, MaxSpeed: 30}
}

// horizonWithSpeed 构造H×T输出，只有[1][1]为给定速度
func horizonWithSpeed(v float64) *mat.Dense {
	m := mat.NewDense(horizon, targets, nil)
	m.Set(0, 1, 99) // 第0步不应被使用
	m.Set(1, 1, v)
	return m
}

func fullWindow() *feature.Window {
	w := feature.NewWindow(seqLength)
	for i := range seqLength {
		w.Push(feature.Record{Position: float64(i), Speed: 10, T: float64(i) * 0.1})
	}
	return w
}

func TestGatewayClamp(t *testing.T) {
	cases := []struct {
		raw, want float64
	}{
		{-5, 0},
		{45, 30},
		{12.5, 12.5},
		{0, 0},
		{30, 30},
	}
	for _, c := range cases {
		stub := &stubPredictor{out: horizonWithSpeed(c.raw)}
		g, err := predictor.NewGateway(stub, identityNormalizer(), shape(), option())
		require.NoError(t, err)
		res, err := g.Predict(context.Background(), fullWindow())
		require.NoError(t, err)
		assert.Equal(t, c.raw, res.RawSpeed)
		assert.Equal(t, c.want, res.NextSpeed)
	}
}

func TestGatewayNotReadyNeverCalls(t *testing.T) {
	stub := &stubPredictor{out: horizonWithSpeed(10)}
	g, err := predictor.NewGateway(stub, identityNormalizer(), shape(), option())
	require.NoError(t, err)

	w := feature.NewWindow(seqLength)
	for range seqLength - 1 {
		w.Push(feature.Record{})
		_, err := g.Predict(context.Background(), w)
		assert.ErrorIs(t, err, predictor.ErrNotReady)
	}
	assert.Equal(t, 0, stub.calls)
	assert.Equal(t, 0, g.Calls())

	w.Push(feature.Record{})
	_, err = g.Predict(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	r, c := stub.last.Dims()
	assert.Equal(t, seqLength, r)
	assert.Equal(t, feature.N_FEATURES, c)
}

func TestGatewayFailures(t *testing.T) {
	cases := map[string]*stubPredictor{
		"error":      {err: errors.New("cuda out of memory")},
		"nil":        {},
		"shape":      {out: mat.NewDense(horizon, targets-1, nil)},
		"non-finite": {out: horizonWithSpeed(math.NaN())},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			g, err := predictor.NewGateway(stub, identityNormalizer(), shape(), option())
			require.NoError(t, err)
			_, err = g.Predict(context.Background(), fullWindow())
			assert.True(t, errors.Is(err, entity.ErrPrediction), "%v", err)
		})
	}
}

func TestGatewayConfig(t *testing.T) {
	stub := &stubPredictor{}
	bad := option()
	bad.HorizonIndex = horizon
	_, err := predictor.NewGateway(stub, identityNormalizer(), shape(), bad)
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	s := shape()
	s.Targets = 2
	_, err = predictor.NewGateway(stub, identityNormalizer(), s, option())
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	_, err = predictor.NewGateway(nil, identityNormalizer(), shape(), option())
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	// 速度范围不能超出物理范围[0, 30]
	wide := option()
	wide.MaxSpeed = 100
	_, err = predictor.NewGateway(stub, identityNormalizer(), shape(), wide)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
	wide = option()
	wide.MinSpeed = -5
	_, err = predictor.NewGateway(stub, identityNormalizer(), shape(), wide)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestGatewayDenormalizes(t *testing.T) {
	norm := normalize.New(normalize.Params{
		XMean:  make([]float64, feature.N_FEATURES),
		XScale: []float64{1, 1, 1, 1, 1, 1},
		YMean:  []float64{0, 10, 0, 0},
		YScale: []float64{1, 2, 1, 1},
	})
	stub := &stubPredictor{out: horizonWithSpeed(1.5)}
	g, err := predictor.NewGateway(stub, norm, shape(), option())
	require.NoError(t, err)
	res, err := g.Predict(context.Background(), fullWindow())
	require.NoError(t, err)
	assert.InDelta(t, 13, res.NextSpeed, 1e-12)
}

func linearArtifact() predictor.LinearArtifact {
	in := seqLength * feature.N_FEATURES
	out := horizon * targets
	a := predictor.LinearArtifact{
		SeqLength:   seqLength,
		NFeatures:   feature.N_FEATURES,
		PredHorizon: horizon,
		NTargets:    targets,
		Weights:     make([][]float64, out),
		Bias:        make([]float64, out),
	}
	for i := range out {
		a.Weights[i] = make([]float64, in)
	}
	// 第1步速度 = 最后一行速度 + 0.5
	a.Weights[1*targets+1][(seqLength-1)*feature.N_FEATURES+feature.COL_SPEED] = 1
	a.Bias[1*targets+1] = 0.5
	return a
}

func TestLinear(t *testing.T) {
	l, err := predictor.NewLinear(linearArtifact())
	require.NoError(t, err)
	assert.Equal(t, shape(), l.Shape())

	window := mat.NewDense(seqLength, feature.N_FEATURES, nil)
	window.Set(seqLength-1, feature.COL_SPEED, 11)
	out, err := l.Predict(context.Background(), window)
	require.NoError(t, err)
	assert.InDelta(t, 11.5, out.At(1, 1), 1e-12)
	assert.Equal(t, 0.0, out.At(0, 1))

	_, err = l.Predict(context.Background(), mat.NewDense(2, 2, nil))
	assert.Error(t, err)

	bad := linearArtifact()
	bad.Bias = bad.Bias[1:]
	_, err = predictor.NewLinear(bad)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestRemoteRoundTrip(t *testing.T) {
	l, err := predictor.NewLinear(linearArtifact())
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.Handle(predictor.NewHandler(l))
	server := httptest.NewServer(mux)
	defer server.Close()

	remote := predictor.NewRemote(server.Client(), server.URL+"/")
	g, err := predictor.NewGateway(remote, identityNormalizer(), shape(), option())
	require.NoError(t, err)
	res, err := g.Predict(context.Background(), fullWindow())
	require.NoError(t, err)
	assert.InDelta(t, 10.5, res.NextSpeed, 1e-12)
}

func TestRemoteServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(predictor.NewHandler(&stubPredictor{err: errors.New("model not loaded")}))
	server := httptest.NewServer(mux)
	defer server.Close()

	remote := predictor.NewRemote(server.Client(), server.URL)
	g, err := predictor.NewGateway(remote, identityNormalizer(), shape(), option())
	require.NoError(t, err)
	_, err = g.Predict(context.Background(), fullWindow())
	assert.ErrorIs(t, err, entity.ErrPrediction)
}
