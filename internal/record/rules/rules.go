// Package rules derives BMI and the recommendation label from intake
// attributes. Everything here is pure: no I/O, no clock, no shared state.
package rules

import (
	"strconv"

	"clinic/internal/record/models"
)

// Recommendation labels.
const (
	LabelPhysicalTherapy  = "Physical Therapy"
	LabelWeightManagement = "Weight Management Program"
	LabelPostOpRehab      = "Post-Op Rehabilitation Plan"
)

// Input is what a rule sees: the raw attributes plus the derived BMI.
type Input struct {
	models.Attributes
	BMI float64
}

// Rule maps a predicate to a label.
type Rule struct {
	Name    string
	Matches func(Input) bool
	Label   string
}

// DefaultRules returns the recommendation policy in priority order. Each call
// returns a fresh slice.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "elderly_chronic_pain",
			Matches: func(in Input) bool { return in.Age > 65 && in.ChronicPain },
			Label:   LabelPhysicalTherapy,
		},
		{
			Name:    "obesity",
			Matches: func(in Input) bool { return in.BMI > 30 },
			Label:   LabelWeightManagement,
		},
		{
			Name:    "recent_surgery",
			Matches: func(in Input) bool { return in.RecentSurgery },
			Label:   LabelPostOpRehab,
		},
	}
}

// Engine evaluates an ordered rule list; the first match wins.
type Engine struct {
	rules []Rule
}

// NewEngine copies rules so later edits by the caller have no effect.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Default is the engine running DefaultRules.
var Default = NewEngine(DefaultRules())

// Derive computes the BMI and the first matching label, or nil when no rule
// matches.
func (e *Engine) Derive(attrs models.Attributes) (float64, *string) {
	bmi := BMI(attrs.Weight, attrs.Height)
	in := Input{Attributes: attrs, BMI: bmi}
	for _, r := range e.rules {
		if r.Matches(in) {
			label := r.Label
			return bmi, &label
		}
	}
	return bmi, nil
}

// Derive evaluates attrs against DefaultRules.
func Derive(attrs models.Attributes) (float64, *string) {
	return Default.Derive(attrs)
}

// BMI is weight / height² rounded to two decimals. Height must be positive.
func BMI(weight, height float64) float64 {
	return round2(weight / (height * height))
}

// round2 rounds the exact binary value to two decimals, ties to even.
// Scaling by 100 first would round a different number.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
