package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFor(t *testing.T) {
	initial := 5 * time.Second
	max := 1 * time.Minute

	assert.Equal(t, initial, backoffFor(0, initial, max, 2.0))
	assert.Equal(t, initial, backoffFor(1, initial, max, 2.0))
	assert.Equal(t, 10*time.Second, backoffFor(2, initial, max, 2.0))
	assert.Equal(t, 20*time.Second, backoffFor(3, initial, max, 2.0))
	assert.Equal(t, max, backoffFor(10, initial, max, 2.0))
}

func TestBackoffForCapsAtMaxEvenWhenInitialExceedsIt(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoffFor(1, time.Minute, 30*time.Second, 2.0))
}
