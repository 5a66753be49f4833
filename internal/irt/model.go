// Package irt implements the three-parameter logistic (3PL) item response
// model used by the adaptive engine: response probabilities, Fisher
// information and maximum-likelihood ability estimation.
package irt

import (
	"fmt"
	"math"
)

// ItemParams holds the calibrated 3PL parameters of a single item.
type ItemParams struct {
	Discrimination float64 `json:"discrimination"` // a
	Difficulty     float64 `json:"difficulty"`     // b
	Guessing       float64 `json:"guessing"`       // c
}

// Validate enforces a > 0 and 0 <= c < 1.
func (p ItemParams) Validate() error {
	if math.IsNaN(p.Discrimination) || p.Discrimination <= 0 {
		return fmt.Errorf("discrimination must be positive, got %v", p.Discrimination)
	}
	if math.IsNaN(p.Difficulty) || math.IsInf(p.Difficulty, 0) {
		return fmt.Errorf("difficulty must be finite, got %v", p.Difficulty)
	}
	if math.IsNaN(p.Guessing) || p.Guessing < 0 || p.Guessing >= 1 {
		return fmt.Errorf("guessing must be in [0, 1), got %v", p.Guessing)
	}
	return nil
}

// Probability returns P(correct | theta) = c + (1-c) / (1 + exp(-a(theta-b))).
func Probability(theta float64, p ItemParams) float64 {
	return p.Guessing + (1-p.Guessing)*logistic(p.Discrimination*(theta-p.Difficulty))
}

// logistic avoids overflow of exp for large |z|.
func logistic(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Information returns the Fisher information of an item at theta:
//
//	I(theta) = a^2 * (Q/P) * ((P-c)/(1-c))^2
//
// which is a^2 * P * (1-P) when c = 0.
func Information(theta float64, p ItemParams) float64 {
	prob := Probability(theta, p)
	if prob <= 0 || prob >= 1 {
		return 0
	}
	r := (prob - p.Guessing) / (1 - p.Guessing)
	return p.Discrimination * p.Discrimination * ((1 - prob) / prob) * r * r
}

// TestInformation sums item information over a set of items.
func TestInformation(theta float64, items []ItemParams) float64 {
	var total float64
	for _, item := range items {
		total += Information(theta, item)
	}
	return total
}

// PassingProbability is the probability that the true ability lies above
// the cut score given the estimate and its standard error, Phi((theta-cut)/se).
func PassingProbability(theta, se, cut float64) float64 {
	if se <= 0 || math.IsNaN(se) {
		if theta > cut {
			return 1
		}
		return 0
	}
	return 0.5 * (1 + math.Erf((theta-cut)/(se*math.Sqrt2)))
}
