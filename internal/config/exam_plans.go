package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/SAP-F-2025/cat-service/internal/cat"
	"github.com/SAP-F-2025/cat-service/internal/validator"
	"gopkg.in/yaml.v3"
)

// PracticeExamType is the built-in plan available without a plans file
const PracticeExamType = "practice"

// ExamPlans maps an exam type to its plan
type ExamPlans map[string]cat.ExamPlan

type examPlansFile struct {
	Plans []cat.ExamPlan `yaml:"plans" validate:"required,min=1,dive"`
}

// DefaultExamPlans returns the development plan. Its thresholds are
// illustrative and are not a licensing board's values.
func DefaultExamPlans() ExamPlans {
	return ExamPlans{
		PracticeExamType: {
			Name:            PracticeExamType,
			MinItems:        15,
			MaxItems:        60,
			PassingStandard: 0,
			SEThreshold:     0.5,
			ConfidenceZ:     cat.DefaultConfidenceZ,
			Domains: []cat.DomainTarget{
				{Name: "management_of_care", MinShare: 0.15, MaxShare: 0.25},
				{Name: "safety_and_infection_control", MinShare: 0.10, MaxShare: 0.20},
				{Name: "pharmacological_therapies", MinShare: 0.12, MaxShare: 0.25},
				{Name: "physiological_adaptation", MinShare: 0.10, MaxShare: 0.25},
				{Name: "health_promotion", MinShare: 0.05, MaxShare: 0.20},
			},
		},
	}
}

// LoadExamPlans reads plans from a YAML file on top of the defaults. An empty
// path returns the defaults.
func LoadExamPlans(path string, v *validator.Validator) (ExamPlans, error) {
	plans := DefaultExamPlans()
	if path == "" {
		return plans, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exam plans file: %w", err)
	}
	loaded, err := ParseExamPlans(raw, v)
	if err != nil {
		return nil, err
	}
	for name, plan := range loaded {
		plans[name] = plan
	}
	return plans, nil
}

// ParseExamPlans decodes and validates a YAML plans document
func ParseExamPlans(raw []byte, v *validator.Validator) (ExamPlans, error) {
	var file examPlansFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse exam plans: %w", err)
	}
	if err := v.Validate(file); err != nil {
		return nil, fmt.Errorf("invalid exam plans: %w", err)
	}

	plans := make(ExamPlans, len(file.Plans))
	for _, plan := range file.Plans {
		if plan.ConfidenceZ == 0 {
			plan.ConfidenceZ = cat.DefaultConfidenceZ
		}
		if err := plan.Validate(); err != nil {
			return nil, err
		}
		if _, dup := plans[plan.Name]; dup {
			return nil, fmt.Errorf("exam plan %q defined twice", plan.Name)
		}
		plans[plan.Name] = plan
	}
	return plans, nil
}

// Get returns the plan of an exam type
func (p ExamPlans) Get(examType string) (cat.ExamPlan, bool) {
	plan, ok := p[examType]
	return plan, ok
}

// Names lists the configured exam types in order
func (p ExamPlans) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
