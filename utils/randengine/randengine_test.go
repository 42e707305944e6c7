package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/randengine"
)

func TestDeterministic(t *testing.T) {
	a, b := randengine.New(42), randengine.New(42)
	for range 10 {
		assert.Equal(t, a.Noise(1), b.Noise(1))
	}
}

func TestNoise(t *testing.T) {
	e := randengine.New(1)
	assert.Equal(t, 0.0, e.Noise(0))
	assert.NotEqual(t, 0.0, e.Noise(1))
}
