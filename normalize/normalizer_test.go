package normalize_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/normalize"
	"gonum.org/v1/gonum/mat"
)

var params = normalize.Params{
	XMean:  []float64{310.5, 11.2, 0.05, -0.3, 4.8, 180},
	XScale: []float64{220.1, 6.4, 1.9, 17.5, 0.4, 104},
	YMean:  []float64{312, 11.3, 0.04, -0.2},
	YScale: []float64{221, 6.3, 1.8, 16.9},
}

func TestRoundTrip(t *testing.T) {
	n := normalize.New(params)
	rng := rand.New(rand.NewSource(1))
	for range 200 {
		r := feature.Record{
			Position:     rng.Float64() * 2000,
			Speed:        rng.Float64() * 30,
			Acceleration: rng.NormFloat64() * 3,
			Jerk:         rng.NormFloat64() * 30,
			Length:       4 + rng.Float64(),
			T:            rng.Float64() * 360,
		}
		got := n.FromInputSpace(n.ToModelSpace(r))
		if diff := cmp.Diff(r.Values(), got.Values(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestRoundTripSharedParams(t *testing.T) {
	// 输入输出使用同一组参数时，ToModelSpace与FromModelSpace互逆
	p := normalize.Params{XMean: params.XMean, XScale: params.XScale, YMean: params.XMean, YScale: params.XScale}
	n := normalize.New(p)
	r := feature.Record{Position: 12, Speed: 3.4, Acceleration: -0.7, Jerk: 5, Length: 4.5, T: 9.9}
	got := n.FromModelSpace(n.ToModelSpace(r))
	assert.InDeltaSlice(t, r.Values(), got, 1e-9)
}

func TestElementwise(t *testing.T) {
	n := normalize.New(params)
	r := feature.Record{Position: 310.5 + 220.1, Speed: 11.2, Acceleration: 0.05 - 1.9, Jerk: -0.3, Length: 4.8, T: 180}
	assert.InDeltaSlice(t, []float64{1, 0, -1, 0, 0, 0}, n.ToModelSpace(r), 1e-12)
	assert.InDeltaSlice(t, []float64{312 + 221, 11.3, 0.04, -0.2 - 2*16.9}, n.FromModelSpace([]float64{1, 0, 0, -2}), 1e-12)
}

func TestBatched(t *testing.T) {
	n := normalize.New(params)
	records := []feature.Record{
		{Position: 1, Speed: 2, Acceleration: 3, Jerk: 4, Length: 5, T: 6},
		{Position: 7, Speed: 8, Acceleration: 9, Jerk: 10, Length: 11, T: 12},
	}
	m := n.WindowToModel(records)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6, c)
	for i, rec := range records {
		assert.InDeltaSlice(t, n.ToModelSpace(rec), mat.Row(nil, i, m), 1e-12)
	}

	out := mat.NewDense(2, 4, []float64{0, 1, 2, 3, -1, -2, -3, -4})
	phys := n.HorizonFromModel(out)
	assert.InDeltaSlice(t, n.FromModelSpace([]float64{-1, -2, -3, -4}), mat.Row(nil, 1, phys), 1e-12)
}

func TestValidate(t *testing.T) {
	require.NoError(t, params.Validate(6, 4))

	err := params.Validate(5, 4)
	assert.True(t, errors.Is(err, entity.ErrConfiguration))

	bad := params
	bad.YScale = []float64{1, 0, 1, 1}
	err = bad.Validate(6, 4)
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
	assert.Contains(t, err.Error(), "scaler_y_std[1]")
}
