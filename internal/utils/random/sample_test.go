package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntStaysInRange(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		n, err := Int(3, 7)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 3)
		require.LessOrEqual(t, n, 7)
		seen[n] = true
	}
	assert.Len(t, seen, 5, "all values in the inclusive range should occur")
}

func TestShufflePreservesElements(t *testing.T) {
	original := []int{1, 2, 3, 4, 5, 6, 7, 8}
	shuffled := make([]int, len(original))
	copy(shuffled, original)

	require.NoError(t, Shuffle(shuffled))

	assert.ElementsMatch(t, original, shuffled)
}

func TestSampleSizeIsBounded(t *testing.T) {
	pool := []int64{10, 20, 30, 40}

	sample, err := Sample(pool, 10)
	require.NoError(t, err)
	assert.Len(t, sample, 4, "sample is capped at the pool size")

	sample, err = Sample(pool, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)
}

func TestSampleReturnsDistinctElements(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	for i := 0; i < 100; i++ {
		sample, err := Sample(pool, 5)
		require.NoError(t, err)

		seen := map[int]bool{}
		for _, v := range sample {
			require.False(t, seen[v], "duplicate element in sample")
			seen[v] = true
		}
	}
}

func TestSampleDoesNotMutateInput(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5}
	want := []int{1, 2, 3, 4, 5}

	_, err := Sample(pool, 3)
	require.NoError(t, err)

	assert.Equal(t, want, pool)
}

// Every 2-element subset of a 5-element pool should appear with roughly
// uniform frequency under repeated sampling. With 2000 draws over 10
// subsets the expected count is 200; a window of half to one and a half
// times that is over 12 standard deviations wide, so a fair sampler
// essentially never trips it while a skewed one does.
func TestSampleIsUniformOverSubsets(t *testing.T) {
	const (
		draws    = 2000
		expected = draws / 10
	)

	pool := []int{0, 1, 2, 3, 4}
	subsets := map[[2]int]int{}

	for i := 0; i < draws; i++ {
		sample, err := Sample(pool, 2)
		require.NoError(t, err)
		require.Len(t, sample, 2)

		key := [2]int{sample[0], sample[1]}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		subsets[key]++
	}

	assert.Len(t, subsets, 10, "all C(5,2) subsets should occur")
	for subset, count := range subsets {
		assert.GreaterOrEqual(t, count, expected/2, "subset %v drawn suspiciously rarely", subset)
		assert.LessOrEqual(t, count, expected*3/2, "subset %v drawn suspiciously often", subset)
	}
}
