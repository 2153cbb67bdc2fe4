package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestAtRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 123_000_000, time.UTC)
	got, err := Time(At(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	_, err = Time("nope")
	assert.Error(t, err)
}
