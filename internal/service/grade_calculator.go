package service

import (
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
)

// ComputeFinalGrade combines per-evaluation grades with the course weights
// into a single weighted score.
//
// When the weights sum to more than 1 they are interpreted as percentages and
// every weight is divided by 100; otherwise they are already fractional and
// used as given. The decision is made once per call over the whole sequence.
// No rounding is applied.
func ComputeFinalGrade(grades, weights []float64) (float64, error) {
	if len(grades) != len(weights) {
		return 0, appErrors.Clone(appErrors.ErrGradeShape, "the number of grades and weights must match")
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}

	divisor := 1.0
	if sum > 1 {
		divisor = 100.0
	}

	var final float64
	for i, grade := range grades {
		final += grade * (weights[i] / divisor)
	}
	return final, nil
}
