// Package models holds the patient record value types shared by the record
// store, service and transport layers.
package models

import (
	"strconv"
	"time"

	dErrors "clinic/pkg/domain-errors"
)

// CounterName is the sequence that issues patient identifiers.
const CounterName = "patient_id"

// Attributes are the caller-supplied intake values.
type Attributes struct {
	Age           int
	Height        float64
	Weight        float64
	RecentSurgery bool
	ChronicPain   bool
}

// Validate checks the range constraints of the intake values.
func (a Attributes) Validate() error {
	switch {
	case a.Age <= 0:
		return dErrors.New(dErrors.CodeValidation, "age must be a positive integer")
	case a.Height <= 0:
		return dErrors.New(dErrors.CodeValidation, "height must be positive")
	case a.Weight <= 0:
		return dErrors.New(dErrors.CodeValidation, "weight must be positive")
	}
	return nil
}

// PatientRecord is immutable once built: BMI and Recommendation are derived
// at construction and never recomputed.
type PatientRecord struct {
	ID             int64     `json:"patient_id"`
	Age            int       `json:"age"`
	Height         float64   `json:"height"`
	Weight         float64   `json:"weight"`
	RecentSurgery  bool      `json:"recent_surgery"`
	ChronicPain    bool      `json:"chronic_pain"`
	BMI            float64   `json:"bmi"`
	Recommendation *string   `json:"recommendation"`
	CreatedAt      time.Time `json:"-"`
}

// Deriver computes BMI and the recommendation label from attributes.
type Deriver func(Attributes) (bmi float64, recommendation *string)

// NewPatientRecord builds a record for id, deriving BMI and recommendation once.
func NewPatientRecord(id int64, attrs Attributes, derive Deriver, now time.Time) *PatientRecord {
	bmi, rec := derive(attrs)
	return &PatientRecord{
		ID:             id,
		Age:            attrs.Age,
		Height:         attrs.Height,
		Weight:         attrs.Weight,
		RecentSurgery:  attrs.RecentSurgery,
		ChronicPain:    attrs.ChronicPain,
		BMI:            bmi,
		Recommendation: rec,
		CreatedAt:      now.UTC(),
	}
}

// RecommendationView is the read-path projection cached per record.
type RecommendationView struct {
	PatientID      int64   `json:"patient_id"`
	Recommendation *string `json:"recommendation"`
}

// View projects the record onto its recommendation.
func (p *PatientRecord) View() RecommendationView {
	return RecommendationView{PatientID: p.ID, Recommendation: p.Recommendation}
}

// RecordCreatedEvent announces a newly persisted record.
type RecordCreatedEvent struct {
	PatientID        int64     `json:"patient_id"`
	RecommendationID string    `json:"recommendation_id"`
	Recommendation   *string   `json:"recommendation"`
	Timestamp        time.Time `json:"timestamp"`
}

// RecommendationID derives the recommendation identifier for a patient.
func RecommendationID(patientID int64) string {
	return "rec-" + strconv.FormatInt(patientID, 10)
}

// NewRecordCreatedEvent builds the announcement for p.
func NewRecordCreatedEvent(p *PatientRecord, at time.Time) RecordCreatedEvent {
	return RecordCreatedEvent{
		PatientID:        p.ID,
		RecommendationID: RecommendationID(p.ID),
		Recommendation:   p.Recommendation,
		Timestamp:        at.UTC(),
	}
}
