package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils"
)

func TestMissing(t *testing.T) {
	assert.Nil(t, utils.Missing([]string{"a", "b"}, "b", "a"))
	assert.Equal(t, []string{"c", "a"}, utils.Missing([]string{"b"}, "c", "b", "a"))
	assert.Equal(t, []int32{1}, utils.Missing(nil, int32(1)))
}
