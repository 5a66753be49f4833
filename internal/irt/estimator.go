package irt

import "math"

// Observation is one scored response paired with the parameters of the item
// it answered.
type Observation struct {
	Params  ItemParams
	Correct bool
}

// EstimatorConfig tunes the maximum-likelihood search.
type EstimatorConfig struct {
	MinTheta         float64
	MaxTheta         float64
	Tolerance        float64
	MaxIterations    int
	MaxStep          float64
	MaxStandardError float64
}

// DefaultEstimatorConfig returns bounds of +/-4 logits, a 1e-4 convergence
// threshold and at most 50 iterations.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinTheta:         -4,
		MaxTheta:         4,
		Tolerance:        1e-4,
		MaxIterations:    50,
		MaxStep:          1,
		MaxStandardError: 10,
	}
}

// AbilityEstimate is the result of Estimate.
type AbilityEstimate struct {
	Theta         float64 `json:"theta"`
	StandardError float64 `json:"standard_error"`
	Iterations    int     `json:"iterations"`
	Converged     bool    `json:"converged"`
	// LowConfidence is set when the search did not converge and Theta is the
	// last value reached rather than a likelihood maximum.
	LowConfidence bool `json:"low_confidence"`
	// Clamped is set when Theta sits on one of the configured bounds.
	Clamped bool `json:"clamped"`
}

// Estimate computes the maximum-likelihood ability for an ordered response
// history, starting the Newton-Raphson search at start. It never fails:
// degenerate histories clamp to the bounds and non-convergence falls back to
// the last iterate with LowConfidence set.
func Estimate(observations []Observation, start float64, cfg EstimatorConfig) AbilityEstimate {
	cfg = cfg.withDefaults()
	theta := clamp(start, cfg.MinTheta, cfg.MaxTheta)
	if math.IsNaN(theta) {
		theta = 0
	}

	if len(observations) == 0 {
		return AbilityEstimate{
			Theta:         theta,
			StandardError: cfg.MaxStandardError,
			Converged:     true,
		}
	}

	correct := 0
	for _, obs := range observations {
		if obs.Correct {
			correct++
		}
	}

	// All-correct and all-incorrect patterns have no interior maximum.
	switch correct {
	case len(observations):
		return cfg.finish(cfg.MaxTheta, observations, 0, true)
	case 0:
		return cfg.finish(cfg.MinTheta, observations, 0, true)
	}

	converged := false
	iterations := 0
	for iterations < cfg.MaxIterations {
		iterations++
		gradient, information := scoreAndInformation(theta, observations)
		if information <= 0 || math.IsNaN(gradient) || math.IsNaN(information) {
			break
		}

		step := clamp(gradient/information, -cfg.MaxStep, cfg.MaxStep)
		next := clamp(theta+step, cfg.MinTheta, cfg.MaxTheta)
		if math.IsNaN(next) {
			break
		}

		delta := next - theta
		theta = next
		if math.Abs(delta) < cfg.Tolerance {
			converged = true
			break
		}
	}

	return cfg.finish(theta, observations, iterations, converged)
}

// StandardError returns 1/sqrt(test information) at theta, capped at max.
func StandardError(theta float64, observations []Observation, max float64) float64 {
	var information float64
	for _, obs := range observations {
		information += Information(theta, obs.Params)
	}
	if information <= 0 || math.IsNaN(information) {
		return max
	}
	se := 1 / math.Sqrt(information)
	if se > max {
		return max
	}
	return se
}

func (cfg EstimatorConfig) finish(theta float64, observations []Observation, iterations int, converged bool) AbilityEstimate {
	return AbilityEstimate{
		Theta:         theta,
		StandardError: StandardError(theta, observations, cfg.MaxStandardError),
		Iterations:    iterations,
		Converged:     converged,
		LowConfidence: !converged,
		Clamped:       theta <= cfg.MinTheta || theta >= cfg.MaxTheta,
	}
}

// scoreAndInformation returns the first derivative of the log-likelihood
// and the test information at theta (Fisher scoring form of Newton-Raphson).
func scoreAndInformation(theta float64, observations []Observation) (float64, float64) {
	var gradient, information float64
	for _, obs := range observations {
		p := obs.Params
		prob := Probability(theta, p)
		if prob <= 0 || prob >= 1 {
			continue
		}
		u := 0.0
		if obs.Correct {
			u = 1
		}
		gradient += p.Discrimination * (u - prob) * (prob - p.Guessing) / (prob * (1 - p.Guessing))
		information += Information(theta, p)
	}
	return gradient, information
}

func (cfg EstimatorConfig) withDefaults() EstimatorConfig {
	def := DefaultEstimatorConfig()
	if cfg.MinTheta >= cfg.MaxTheta {
		cfg.MinTheta, cfg.MaxTheta = def.MinTheta, def.MaxTheta
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = def.MaxStep
	}
	if cfg.MaxStandardError <= 0 {
		cfg.MaxStandardError = def.MaxStandardError
	}
	return cfg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
