package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloatEquals(t *testing.T) {
	assert.True(t, FloatEquals(1.0, 1.0+1e-12))
	assert.False(t, FloatEquals(1.0, 1.1))
}

func TestFloatLessGreater(t *testing.T) {
	assert.True(t, FloatLess(1.0, 2.0))
	assert.False(t, FloatLess(1.0, 1.0))
	assert.True(t, FloatGreater(2.0, 1.0))
	assert.False(t, FloatGreater(1.0, 1.0))
}

func TestIsZeroIsPositive(t *testing.T) {
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(0.1))
	assert.True(t, IsPositive(0.1))
	assert.False(t, IsPositive(0))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1.0, Min(1, 2))
	assert.Equal(t, 2.0, Max(1, 2))
}
