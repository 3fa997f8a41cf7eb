package backfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	chunks, err := Group("1d", 1502928000, 1503705600, 5)
	require.NoError(t, err)

	assert.Equal(t, []Chunk{
		{Start: 1502928000000, End: 1503359999999},
		{Start: 1503360000000, End: 1503705600000},
	}, chunks)
}

func TestGroupChunksAreContiguous(t *testing.T) {
	chunks, err := Group("1m", 1500000000, 1500100000, 100)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, int64(1500000000000), chunks[0].Start)
	assert.Equal(t, int64(1500100000000), chunks[len(chunks)-1].End)

	for i := 1; i < len(chunks); i++ {
		assert.Equalf(t, chunks[i-1].End+1, chunks[i].Start, "gap between chunks %d and %d", i-1, i)
	}
}

func TestGroupRejectsBadInput(t *testing.T) {
	_, err := Group("2y", 1, 2, 10)
	assert.Error(t, err)

	_, err = Group("1m", 2, 1, 10)
	assert.Error(t, err)

	_, err = Group("1m", 1, 2, 0)
	assert.Error(t, err)
}

func TestExpectedBars(t *testing.T) {
	testCases := []struct {
		interval string
		start    int64
		end      int64
		want     int64
	}{
		{interval: "1d", start: 1502928000, end: 1503705600, want: 10},
		{interval: "1m", start: 0, end: 60, want: 2},
		{interval: "1m", start: 0, end: 59, want: 2},
		{interval: "1h", start: 0, end: 3600 * 24, want: 25},
	}

	for _, tc := range testCases {
		got, err := ExpectedBars(tc.interval, tc.start, tc.end)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "%s [%d, %d]", tc.interval, tc.start, tc.end)
	}
}
