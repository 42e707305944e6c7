package feature_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
)

// fakeSim 只实现Observe用到的查询
type fakeSim struct {
	entity.ISimulator
	speeds  []float64
	i       int
	absent  bool
	timeErr error
}

func (s *fakeSim) Distance(id string) (float64, error) {
	if s.absent {
		return 0, fmt.Errorf("%w: %v", entity.ErrVehicleAbsent, id)
	}
	return float64(s.i) * 1.5, nil
}

func (s *fakeSim) Speed(id string) (float64, error) {
	if s.absent {
		return 0, fmt.Errorf("%w: %v", entity.ErrVehicleAbsent, id)
	}
	v := s.speeds[s.i]
	s.i++
	return v, nil
}

func (s *fakeSim) Length(string) (float64, error) { return 5, nil }

func (s *fakeSim) Time() (float64, error) {
	if s.timeErr != nil {
		return 0, s.timeErr
	}
	return float64(s.i) * 0.1, nil
}

func TestAdapterFiniteDifference(t *testing.T) {
	sim := &fakeSim{speeds: []float64{10, 12, 11}}
	a := feature.NewAdapter(0.1)

	var records []feature.Record
	for range 3 {
		r, err := a.Observe(sim, "follower")
		require.NoError(t, err)
		records = append(records, r)
	}
	// 首次观测以0为前值
	assert.InDelta(t, 100, records[0].Acceleration, 1e-9)
	assert.InDelta(t, 1000, records[0].Jerk, 1e-9)
	// 内部点
	assert.InDelta(t, 20, records[1].Acceleration, 1e-9)
	assert.InDelta(t, -10, records[2].Acceleration, 1e-9)
	assert.InDelta(t, -300, records[2].Jerk, 1e-9)
	assert.Equal(t, 5.0, records[2].Length)
}

func TestAdapterAbsentKeepsState(t *testing.T) {
	sim := &fakeSim{speeds: []float64{10, 12}}
	a := feature.NewAdapter(0.1)
	_, err := a.Observe(sim, "follower")
	require.NoError(t, err)
	v, acc := a.Prev()

	sim.absent = true
	_, err = a.Observe(sim, "follower")
	assert.True(t, errors.Is(err, entity.ErrVehicleAbsent))
	v2, acc2 := a.Prev()
	assert.Equal(t, v, v2)
	assert.Equal(t, acc, acc2)

	sim.absent = false
	sim.timeErr = errors.New("connection reset")
	_, err = a.Observe(sim, "follower")
	assert.True(t, errors.Is(err, entity.ErrSensing))
	v2, acc2 = a.Prev()
	assert.Equal(t, v, v2)
	assert.Equal(t, acc, acc2)
}

func TestAdapterBadDt(t *testing.T) {
	assert.Panics(t, func() { feature.NewAdapter(0) })
}

func TestWindowFIFO(t *testing.T) {
	w := feature.NewWindow(4)
	for i := 0; i < 10; i++ {
		w.Push(feature.Record{T: float64(i)})
		assert.LessOrEqual(t, w.Len(), 4)
		assert.Equal(t, i >= 3, w.Ready())
	}
	snap := w.Snapshot()
	require.Len(t, snap, 4)
	for i, r := range snap {
		assert.Equal(t, float64(6+i), r.T)
	}
	// 快照不改变窗口
	snap[0].T = -1
	assert.Equal(t, 6.0, w.Snapshot()[0].T)
}

func TestWindowPreconditions(t *testing.T) {
	assert.Panics(t, func() { feature.NewWindow(0) })
	var w *feature.Window
	assert.Panics(t, func() { w.Push(feature.Record{}) })
}

func TestRecordValues(t *testing.T) {
	r := feature.Record{Position: 1, Speed: 2, Acceleration: 3, Jerk: 4, Length: 5, T: 6}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, r.Values())
	assert.Equal(t, r, feature.FromValues(r.Values()))
	assert.Panics(t, func() { feature.FromValues([]float64{1}) })
}
