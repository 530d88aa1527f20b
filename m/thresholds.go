package m

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// OverflowThreshold is the last distance band. Nodes beyond the configured
// thresholds end up here.
const OverflowThreshold = 10000

// DefaultThresholds are the default distance band boundaries.
var DefaultThresholds = Thresholds{0, 1, 2, 3, 5, 10}

// Thresholds are ascending distance band boundaries.
type Thresholds []float64

// Check checks if the thresholds are usable.
func (t Thresholds) Check() error {
	if len(t) == 0 {
		return errors.New("no thresholds defined")
	}
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return fmt.Errorf("threshold #%d (%s) is not greater than the previous one", i+1, FormatNumber(t[i]))
		}
	}
	if t[len(t)-1] >= OverflowThreshold {
		return fmt.Errorf("thresholds must be below the overflow band %d", OverflowThreshold)
	}
	return nil
}

// WithOverflow returns the thresholds with the overflow band appended.
func (t Thresholds) WithOverflow() Thresholds {
	return append(slices.Clone(t), OverflowThreshold)
}

// FormatNumber formats a number in its shortest decimal form, eg. 2 or 1.5.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
