package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffle performs a cryptographically secure shuffle of the slice.
func Shuffle[T any](slice []T) error {
	n := len(slice)
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to generate random number: %w", err)
		}
		j := int(jBig.Int64())
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}

// Sample draws n distinct elements uniformly at random without replacement.
// Every n-subset of the input is equally likely. The input slice is not
// modified.
func Sample[T any](slice []T, n int) ([]T, error) {
	if n <= 0 {
		return []T{}, nil
	}
	if n > len(slice) {
		n = len(slice)
	}

	shuffled := make([]T, len(slice))
	copy(shuffled, slice)
	if err := Shuffle(shuffled); err != nil {
		return nil, err
	}

	return shuffled[:n], nil
}

// Int returns a uniform random integer in [min, max].
func Int(min, max int) (int, error) {
	if max < min {
		min, max = max, min
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return min + int(nBig.Int64()), nil
}
