package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subproject is an infrastructure subproject imported from the MIADP
// registry export. Code is the natural key. Every other attribute is
// nullable: nil (or an invalid NullDecimal) means the source had no usable
// value, which is not the same thing as an empty string or zero.
type Subproject struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`

	Title           *string `json:"title" db:"title"`
	AncestralDomain *string `json:"ancestral_domain" db:"ancestral_domain"`
	CADTNumber      *string `json:"cadt_number" db:"cadt_number"`
	Location        *string `json:"location" db:"location"`
	Description     *string `json:"description" db:"description"`
	ScopeOfWorks    *string `json:"scope_of_works" db:"scope_of_works"`

	TargetLength  decimal.NullDecimal `json:"target_length" db:"target_length"`
	UnitOfMeasure *string             `json:"unit_of_measure" db:"unit_of_measure"`

	SourceOfFund   *string             `json:"source_of_fund" db:"source_of_fund"`
	YearFunded     *int64              `json:"year_funded" db:"year_funded"`
	TotalBudget    decimal.NullDecimal `json:"total_budget" db:"total_budget"`
	ApprovedBudget decimal.NullDecimal `json:"approved_budget" db:"approved_budget"`

	ImplementingAgency *string `json:"implementing_agency" db:"implementing_agency"`
	Contractor         *string `json:"contractor" db:"contractor"`

	Latitude  decimal.NullDecimal `json:"latitude" db:"latitude"`
	Longitude decimal.NullDecimal `json:"longitude" db:"longitude"`

	Duration             *int64     `json:"duration" db:"duration"`
	StartDate            *time.Time `json:"start_date" db:"start_date"`
	TargetCompletionDate *time.Time `json:"target_completion_date" db:"target_completion_date"`
	ActualCompletionDate *time.Time `json:"actual_completion_date" db:"actual_completion_date"`

	Status *string `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
