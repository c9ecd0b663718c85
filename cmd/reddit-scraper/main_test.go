package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampWorkers_BelowOneClampsToOne(t *testing.T) {
	assert.Equal(t, 1, clampWorkers(0))
	assert.Equal(t, 1, clampWorkers(-5))
}

func TestClampWorkers_AboveNineClampsToNine(t *testing.T) {
	assert.Equal(t, 9, clampWorkers(10))
	assert.Equal(t, 9, clampWorkers(100))
}

func TestClampWorkers_WithinRangePassesThrough(t *testing.T) {
	assert.Equal(t, 5, clampWorkers(5))
	assert.Equal(t, 1, clampWorkers(1))
	assert.Equal(t, 9, clampWorkers(9))
}
