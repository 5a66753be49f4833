package cat

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/SAP-F-2025/cat-service/internal/irt"
)

// ErrItemBankExhausted is matched by every *ItemBankExhaustedError.
var ErrItemBankExhausted = errors.New("item bank exhausted")

// ItemBankExhaustedError reports that no eligible item remains for a content
// domain the exam still requires. An empty Domain means the whole plan.
// SessionID is filled in by the caller that ended the session.
type ItemBankExhaustedError struct {
	Domain    string
	SessionID string
}

func (e *ItemBankExhaustedError) Error() string {
	if e.Domain == "" {
		return "item bank exhausted: no eligible items remain"
	}
	return fmt.Sprintf("item bank exhausted for content domain %q", e.Domain)
}

func (e *ItemBankExhaustedError) Is(target error) bool {
	return target == ErrItemBankExhausted
}

// Candidate is an item eligible for administration.
type Candidate struct {
	ID            uint
	Domain        string
	Params        irt.ItemParams
	ExposureCount int64
}

// CandidateSource returns eligible items of a domain ("" for any domain),
// excluding the given ids and any item at or above its exposure cap.
type CandidateSource interface {
	Candidates(ctx context.Context, domain string, excludeIDs []uint) ([]Candidate, error)
}

// Selector picks the next item to administer.
type Selector struct {
	source CandidateSource
}

func NewSelector(source CandidateSource) *Selector {
	return &Selector{source: source}
}

// informationEpsilon treats information values this close as tied.
const informationEpsilon = 1e-12

// SelectNext applies the content-balancing filter and then picks the item
// with maximum information at theta. Domains behind their minimum share are
// served first; then domains still below their maximum share; then any
// domain of the plan.
func (s *Selector) SelectNext(ctx context.Context, theta float64, plan ExamPlan, coverage Coverage, administered []uint) (*Candidate, error) {
	if len(plan.Domains) == 0 {
		candidates, err := s.source.Candidates(ctx, "", administered)
		if err != nil {
			return nil, fmt.Errorf("failed to load candidate items: %w", err)
		}
		best := MostInformative(theta, candidates)
		if best == nil {
			return nil, &ItemBankExhaustedError{}
		}
		return best, nil
	}

	n := float64(coverage.Total() + 1)
	var under, open, all []string
	for _, d := range plan.Domains {
		count := coverage[d.Name]
		if float64(count) < d.MinShare*n {
			under = append(under, d.Name)
		}
		if count < int(math.Ceil(d.MaxShare*n-1e-9)) {
			open = append(open, d.Name)
		}
		all = append(all, d.Name)
	}

	cache := make(map[string][]Candidate, len(plan.Domains))
	load := func(domains []string) ([]Candidate, error) {
		var pool []Candidate
		for _, domain := range domains {
			items, ok := cache[domain]
			if !ok {
				var err error
				items, err = s.source.Candidates(ctx, domain, administered)
				if err != nil {
					return nil, fmt.Errorf("failed to load candidate items for %q: %w", domain, err)
				}
				cache[domain] = items
			}
			pool = append(pool, items...)
		}
		return pool, nil
	}

	if len(under) > 0 {
		pool, err := load(under)
		if err != nil {
			return nil, err
		}
		if best := MostInformative(theta, pool); best != nil {
			return best, nil
		}
		// Every domain still owed items is empty; serving another domain
		// would break the test plan.
		return nil, &ItemBankExhaustedError{Domain: under[0]}
	}

	for _, tier := range [][]string{open, all} {
		if len(tier) == 0 {
			continue
		}
		pool, err := load(tier)
		if err != nil {
			return nil, err
		}
		if best := MostInformative(theta, pool); best != nil {
			return best, nil
		}
	}

	return nil, &ItemBankExhaustedError{}
}

// MostInformative returns the candidate with maximum information at theta.
// Ties go to the lower exposure count, then to the smaller id. It returns
// nil for an empty pool.
func MostInformative(theta float64, pool []Candidate) *Candidate {
	var best *Candidate
	bestInfo := math.Inf(-1)
	for i := range pool {
		c := &pool[i]
		info := irt.Information(theta, c.Params)
		if best == nil || info > bestInfo+informationEpsilon {
			best, bestInfo = c, info
			continue
		}
		if math.Abs(info-bestInfo) <= informationEpsilon && preferTie(c, best) {
			best, bestInfo = c, math.Max(info, bestInfo)
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func preferTie(a, b *Candidate) bool {
	if a.ExposureCount != b.ExposureCount {
		return a.ExposureCount < b.ExposureCount
	}
	return a.ID < b.ID
}
