package handler

import (
	"clinic/internal/record/models"
	dErrors "clinic/pkg/domain-errors"
)

// EvaluateRequest is the POST /evaluate body. Pointer fields distinguish an
// omitted value from a zero one.
type EvaluateRequest struct {
	Age           *int     `json:"age"`
	Height        *float64 `json:"height"`
	Weight        *float64 `json:"weight"`
	RecentSurgery *bool    `json:"recent_surgery"`
	ChronicPain   *bool    `json:"chronic_pain"`
}

// Validate rejects missing fields, then applies the attribute range checks.
func (r *EvaluateRequest) Validate() error {
	switch {
	case r.Age == nil:
		return missing("age")
	case r.Height == nil:
		return missing("height")
	case r.Weight == nil:
		return missing("weight")
	case r.RecentSurgery == nil:
		return missing("recent_surgery")
	case r.ChronicPain == nil:
		return missing("chronic_pain")
	}
	return r.Attributes().Validate()
}

// Attributes converts a validated request.
func (r *EvaluateRequest) Attributes() models.Attributes {
	return models.Attributes{
		Age:           *r.Age,
		Height:        *r.Height,
		Weight:        *r.Weight,
		RecentSurgery: *r.RecentSurgery,
		ChronicPain:   *r.ChronicPain,
	}
}

func missing(field string) error {
	return dErrors.New(dErrors.CodeValidation, field+" is required")
}
