package model

import "math"

// EarlyStopping tracks the validation loss and reports when it has not
// improved for Rounds consecutive iterations. Lower scores are better.
type EarlyStopping struct {
	Rounds          int     // Number of rounds without improvement to stop
	BestScore       float64 // Best validation score so far
	BestIteration   int     // Iteration with best score
	RoundsNoImprove int     // Current rounds without improvement
	Enabled         bool    // Whether early stopping is enabled
}

// NewEarlyStopping creates a new early stopping handler. rounds <= 0
// disables stopping but the best iteration is still tracked.
func NewEarlyStopping(rounds int) *EarlyStopping {
	return &EarlyStopping{
		Rounds:    rounds,
		BestScore: math.Inf(1),
		Enabled:   rounds > 0,
	}
}

// Update records the score of iteration and returns true if training should stop.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if score < es.BestScore {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.ShouldStop()
}

// ShouldStop returns whether training should stop
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.RoundsNoImprove >= es.Rounds
}
