package irt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbability_BoundsAndMonotonicity(t *testing.T) {
	items := []ItemParams{
		{Discrimination: 0.5, Difficulty: -2, Guessing: 0},
		{Discrimination: 1.2, Difficulty: 0, Guessing: 0.2},
		{Discrimination: 2.5, Difficulty: 1.5, Guessing: 0.25},
	}

	for _, item := range items {
		prev := -1.0
		for theta := -10.0; theta <= 10.0; theta += 0.25 {
			p := Probability(theta, item)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			assert.GreaterOrEqual(t, p, prev, "probability must not decrease with theta")
			prev = p
		}

		assert.InDelta(t, item.Guessing, Probability(-60, item), 1e-9)
		assert.InDelta(t, 1.0, Probability(60, item), 1e-9)
	}
}

func TestProbability_AtDifficulty(t *testing.T) {
	item := ItemParams{Discrimination: 1.7, Difficulty: 0.4, Guessing: 0.2}
	assert.InDelta(t, 0.2+0.8*0.5, Probability(0.4, item), 1e-12)
}

func TestInformation_TwoParameterCase(t *testing.T) {
	item := ItemParams{Discrimination: 1.5, Difficulty: 0.3}
	for _, theta := range []float64{-2, 0, 0.3, 1.7} {
		p := Probability(theta, item)
		assert.InDelta(t, 1.5*1.5*p*(1-p), Information(theta, item), 1e-12)
	}
}

func TestInformation_PeaksNearDifficulty(t *testing.T) {
	item := ItemParams{Discrimination: 1.0, Difficulty: 1.0}
	assert.Greater(t, Information(1.0, item), Information(-1.0, item))
	assert.Greater(t, Information(1.0, item), Information(3.0, item))
}

func TestItemParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  ItemParams
		wantErr bool
	}{
		{"valid", ItemParams{Discrimination: 1, Difficulty: 0, Guessing: 0.2}, false},
		{"zero discrimination", ItemParams{Discrimination: 0}, true},
		{"negative guessing", ItemParams{Discrimination: 1, Guessing: -0.1}, true},
		{"guessing of one", ItemParams{Discrimination: 1, Guessing: 1}, true},
		{"infinite difficulty", ItemParams{Discrimination: 1, Difficulty: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPassingProbability(t *testing.T) {
	assert.InDelta(t, 0.5, PassingProbability(0.3, 0.4, 0.3), 1e-12)
	assert.Greater(t, PassingProbability(1.0, 0.3, 0.0), 0.99)
	assert.Less(t, PassingProbability(-1.0, 0.3, 0.0), 0.01)
	assert.Equal(t, 1.0, PassingProbability(0.1, 0, 0))
	assert.Equal(t, 0.0, PassingProbability(-0.1, 0, 0))
}

func mixedHistory() []Observation {
	return []Observation{
		{Params: ItemParams{Discrimination: 1.2, Difficulty: -1.0}, Correct: true},
		{Params: ItemParams{Discrimination: 0.9, Difficulty: 0.0, Guessing: 0.2}, Correct: true},
		{Params: ItemParams{Discrimination: 1.5, Difficulty: 0.5}, Correct: false},
		{Params: ItemParams{Discrimination: 1.1, Difficulty: 1.2, Guessing: 0.1}, Correct: false},
		{Params: ItemParams{Discrimination: 1.3, Difficulty: -0.3}, Correct: true},
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	history := mixedHistory()
	cfg := DefaultEstimatorConfig()

	first := Estimate(history, 0, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Estimate(history, 0, cfg))
	}
}

func TestEstimate_MixedPatternConverges(t *testing.T) {
	est := Estimate(mixedHistory(), 0, DefaultEstimatorConfig())

	require.True(t, est.Converged)
	assert.False(t, est.LowConfidence)
	assert.False(t, est.Clamped)
	assert.Greater(t, est.Theta, -1.0)
	assert.Less(t, est.Theta, 1.5)

	// The score function vanishes at the maximum.
	gradient, _ := scoreAndInformation(est.Theta, mixedHistory())
	assert.InDelta(t, 0, gradient, 1e-3)
}

func TestEstimate_SymmetricPattern(t *testing.T) {
	item := ItemParams{Discrimination: 1, Difficulty: 0}
	history := []Observation{{Params: item, Correct: true}, {Params: item, Correct: false}}

	est := Estimate(history, 0, DefaultEstimatorConfig())
	assert.True(t, est.Converged)
	assert.InDelta(t, 0, est.Theta, 1e-9)
	// Two items at p = 0.5 give information 0.5.
	assert.InDelta(t, 1/math.Sqrt(0.5), est.StandardError, 1e-9)
}

func TestEstimate_ExtremePatternsClamp(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	var allCorrect, allWrong []Observation
	for i := 0; i < 8; i++ {
		item := ItemParams{Discrimination: 1.4, Difficulty: float64(i)/4 - 1}
		allCorrect = append(allCorrect, Observation{Params: item, Correct: true})
		allWrong = append(allWrong, Observation{Params: item, Correct: false})
	}

	up := Estimate(allCorrect, 0, cfg)
	assert.Equal(t, cfg.MaxTheta, up.Theta)
	assert.True(t, up.Clamped)
	assert.False(t, math.IsInf(up.StandardError, 0))

	down := Estimate(allWrong, 0, cfg)
	assert.Equal(t, cfg.MinTheta, down.Theta)
	assert.True(t, down.Clamped)
}

func TestEstimate_NonConvergenceFallsBack(t *testing.T) {
	item := ItemParams{Discrimination: 1, Difficulty: 0}
	history := []Observation{{Params: item, Correct: true}, {Params: item, Correct: false}}

	cfg := DefaultEstimatorConfig()
	cfg.MaxIterations = 1

	est := Estimate(history, 3, cfg)
	assert.False(t, est.Converged)
	assert.True(t, est.LowConfidence)
	assert.InDelta(t, 2.0, est.Theta, 1e-12)
}

func TestEstimate_EmptyHistory(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	est := Estimate(nil, 0.7, cfg)
	assert.Equal(t, 0.7, est.Theta)
	assert.Equal(t, cfg.MaxStandardError, est.StandardError)
}

func TestStandardError_ShrinksWithMoreItems(t *testing.T) {
	item := ItemParams{Discrimination: 1.5, Difficulty: 0}
	var history []Observation
	prev := math.Inf(1)
	for i := 0; i < 20; i++ {
		history = append(history, Observation{Params: item, Correct: i%2 == 0})
		se := StandardError(0, history, 10)
		assert.Less(t, se, prev)
		prev = se
	}
}
