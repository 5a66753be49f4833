// Package cat holds the adaptive-test decision logic: content plans, next
// item selection and stopping rules. It performs no I/O of its own; item
// candidates come from a CandidateSource.
package cat

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Verdict is the outcome of a finished exam.
type Verdict string

const (
	VerdictNone         Verdict = ""
	VerdictPass         Verdict = "pass"
	VerdictFail         Verdict = "fail"
	VerdictInconclusive Verdict = "inconclusive"
)

// DefaultConfidenceZ is the two-sided 95% normal quantile.
const DefaultConfidenceZ = 1.96

// DomainTarget is the share of the exam a content domain must receive.
type DomainTarget struct {
	Name     string  `json:"name" yaml:"name" validate:"required"`
	MinShare float64 `json:"min_share" yaml:"min_share" validate:"gte=0,lte=1"`
	MaxShare float64 `json:"max_share" yaml:"max_share" validate:"gte=0,lte=1,gtefield=MinShare"`
}

// ExamPlan is the injected configuration of one exam type.
type ExamPlan struct {
	Name            string         `json:"name" yaml:"name" validate:"required"`
	MinItems        int            `json:"min_items" yaml:"min_items" validate:"min=1"`
	MaxItems        int            `json:"max_items" yaml:"max_items" validate:"min=1,gtefield=MinItems"`
	PassingStandard float64        `json:"passing_standard" yaml:"passing_standard"`
	SEThreshold     float64        `json:"se_threshold" yaml:"se_threshold" validate:"gt=0"`
	ConfidenceZ     float64        `json:"confidence_z" yaml:"confidence_z" validate:"gte=0"`
	Domains         []DomainTarget `json:"domains" yaml:"domains" validate:"dive"`
}

// Validate checks the cross-field rules struct tags cannot express.
func (p ExamPlan) Validate() error {
	if p.Name == "" {
		return errors.New("exam plan name is required")
	}
	if p.MinItems < 1 || p.MaxItems < p.MinItems {
		return fmt.Errorf("exam plan %q: need 1 <= min_items <= max_items, got %d/%d", p.Name, p.MinItems, p.MaxItems)
	}
	if p.SEThreshold <= 0 {
		return fmt.Errorf("exam plan %q: se_threshold must be positive", p.Name)
	}

	seen := make(map[string]bool, len(p.Domains))
	var minTotal, maxTotal float64
	for _, d := range p.Domains {
		if d.Name == "" {
			return fmt.Errorf("exam plan %q: domain name is required", p.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("exam plan %q: duplicate domain %q", p.Name, d.Name)
		}
		seen[d.Name] = true
		if d.MinShare < 0 || d.MaxShare > 1 || d.MaxShare < d.MinShare {
			return fmt.Errorf("exam plan %q: domain %q needs 0 <= min_share <= max_share <= 1", p.Name, d.Name)
		}
		minTotal += d.MinShare
		maxTotal += d.MaxShare
	}
	if len(p.Domains) > 0 {
		if minTotal > 1+1e-9 {
			return fmt.Errorf("exam plan %q: domain min shares sum to %.3f > 1", p.Name, minTotal)
		}
		if maxTotal < 1-1e-9 {
			return fmt.Errorf("exam plan %q: domain max shares sum to %.3f < 1", p.Name, maxTotal)
		}
	}
	return nil
}

// Z returns the configured confidence quantile or the 95% default.
func (p ExamPlan) Z() float64 {
	if p.ConfidenceZ > 0 {
		return p.ConfidenceZ
	}
	return DefaultConfidenceZ
}

// DomainNames lists the plan's domains in declaration order.
func (p ExamPlan) DomainNames() []string {
	names := make([]string, len(p.Domains))
	for i, d := range p.Domains {
		names[i] = d.Name
	}
	return names
}

// HasDomain reports whether the plan constrains the given domain. A plan
// without domains accepts every domain.
func (p ExamPlan) HasDomain(name string) bool {
	if len(p.Domains) == 0 {
		return true
	}
	for _, d := range p.Domains {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Quota is the number of items the domain must receive over a full-length
// exam.
func (d DomainTarget) Quota(maxItems int) int {
	return int(math.Ceil(d.MinShare*float64(maxItems) - 1e-9))
}

// Floor is the number of items the domain must have received before the
// exam may stop on confidence.
func (d DomainTarget) Floor(minItems int) int {
	return int(math.Floor(d.MinShare*float64(minItems) + 1e-9))
}

// Coverage counts administered items per content domain.
type Coverage map[string]int

// NewCoverage returns a coverage map zeroed for every domain of the plan.
func NewCoverage(plan ExamPlan) Coverage {
	c := make(Coverage, len(plan.Domains))
	for _, d := range plan.Domains {
		c[d.Name] = 0
	}
	return c
}

// Total is the number of administered items.
func (c Coverage) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Clone returns an independent copy.
func (c Coverage) Clone() Coverage {
	out := make(Coverage, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Domains returns the recorded domain names sorted.
func (c Coverage) Domains() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ContentPlanMet reports whether every domain reached its full-length quota.
// A plan without domains has no content requirement to exhaust.
func (p ExamPlan) ContentPlanMet(c Coverage) bool {
	if len(p.Domains) == 0 {
		return false
	}
	for _, d := range p.Domains {
		if c[d.Name] < d.Quota(p.MaxItems) {
			return false
		}
	}
	return true
}

// MinimumCoverageMet reports whether every domain reached its floor for a
// minimum-length exam.
func (p ExamPlan) MinimumCoverageMet(c Coverage) bool {
	for _, d := range p.Domains {
		if c[d.Name] < d.Floor(p.MinItems) {
			return false
		}
	}
	return true
}

// VerdictFor compares an ability against the passing standard.
func (p ExamPlan) VerdictFor(theta float64) Verdict {
	if theta > p.PassingStandard {
		return VerdictPass
	}
	return VerdictFail
}
