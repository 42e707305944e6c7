package userinput_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/userinput"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

func TestDriverAccumulates(t *testing.T) {
	d := userinput.NewDriver(0, 30)
	assert.Equal(t, 13.0, d.TargetSpeed())

	in := d.Apply(userinput.Frame{Up: true})
	assert.InDelta(t, 13.2, in.TargetSpeed, 1e-9)
	in = d.Apply(userinput.Frame{Down: true, Lane: entity.LANE_LEFT})
	assert.InDelta(t, 12.7, in.TargetSpeed, 1e-9)
	assert.Equal(t, entity.LANE_LEFT, in.LaneRequest)
	// 变道请求只持续一步
	in = d.Apply(userinput.Frame{})
	assert.Equal(t, entity.LANE_KEEP, in.LaneRequest)
}

func TestDriverClamps(t *testing.T) {
	d := userinput.NewDriver(0, 30)
	for range 100 {
		d.Apply(userinput.Frame{Down: true})
	}
	assert.Equal(t, 0.0, d.TargetSpeed())
	for range 200 {
		d.Apply(userinput.Frame{Up: true})
	}
	assert.Equal(t, 30.0, d.TargetSpeed())

	assert.Equal(t, 10.0, userinput.NewDriver(0, 10).TargetSpeed())
	assert.Panics(t, func() { userinput.NewDriver(5, 1) })
}

func TestParseKey(t *testing.T) {
	k, err := userinput.ParseKey(" LEFT ")
	require.NoError(t, err)
	assert.Equal(t, userinput.KeyLeft, k)
	_, err = userinput.ParseKey("space")
	assert.Error(t, err)
}

func TestScript(t *testing.T) {
	s, err := userinput.NewScript(userinput.NewDriver(0, 30), []config.ScriptEvent{
		{Step: 5, Key: "left"},
		{Step: 2, Key: "up", Steps: 3},
		{Step: 7, Key: "quit"},
	})
	require.NoError(t, err)

	var speeds []float64
	var lanes []int32
	var quit []bool
	for step := int32(0); step < 8; step++ {
		in := s.Poll(step)
		speeds = append(speeds, in.TargetSpeed)
		lanes = append(lanes, in.LaneRequest)
		quit = append(quit, in.Quit)
	}
	assert.InDeltaSlice(t, []float64{13, 13, 13.2, 13.4, 13.6, 13.6, 13.6, 13.6}, speeds, 1e-9)
	assert.Equal(t, []int32{0, 0, 0, 0, 0, 1, 0, 0}, lanes)
	assert.Equal(t, []bool{false, false, false, false, false, false, false, true}, quit)
}

func TestScriptUnknownKey(t *testing.T) {
	_, err := userinput.NewScript(userinput.NewDriver(0, 30), []config.ScriptEvent{{Step: 1, Key: "jump"}})
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestNone(t *testing.T) {
	s := userinput.NewNone(userinput.NewDriver(0, 30))
	assert.Equal(t, entity.Intent{TargetSpeed: 13}, s.Poll(0))
}

func TestStream(t *testing.T) {
	r, w := io.Pipe()
	s := userinput.NewStream(userinput.NewDriver(0, 30), r)

	// 没有输入时不阻塞
	assert.Equal(t, 13.0, s.Poll(0).TargetSpeed)

	go func() {
		_, _ = io.WriteString(w, "up\nbogus\n\nr\n")
		_ = w.Close()
	}()

	var in entity.Intent
	speed := 13.0
	lane := int32(0)
	require.Eventually(t, func() bool {
		in = s.Poll(1)
		speed = in.TargetSpeed
		if in.LaneRequest != 0 {
			lane = in.LaneRequest
		}
		return lane == entity.LANE_RIGHT && speed > 13
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 13.2, speed, 1e-9)
}
