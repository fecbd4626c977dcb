// Package domain defines the types and interfaces for the nightly service
package domain

import (
	"time"

	"obsledger/internal/core/accounting"
)

// NightInput selects one telescope night for accounting
type NightInput struct {
	Telescope string `json:"telescope" validate:"required"`
	UTDate    string `json:"ut_date" validate:"required,utdate"`

	// Project restricts the report to one project's observations
	Project string `json:"project,omitempty"`

	// IncludeCals keeps the calibrations relevant to Project; requires Project
	IncludeCals bool `json:"include_cals,omitempty"`
}

// GapSummary describes one synthesized gap in a night report
type GapSummary struct {
	Instrument string    `json:"instrument"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Seconds    int64     `json:"seconds"`
}

// AccountingReport is the per-project time accounting for one night
type AccountingReport struct {
	Telescope string             `json:"telescope"`
	UTDate    string             `json:"ut_date"`
	Entries   []accounting.Entry `json:"entries"`
	Warnings  []string           `json:"warnings,omitempty"`
	Gaps      []GapSummary       `json:"gaps,omitempty"`
}

// CommentInput records an operator comment against an instrument window
type CommentInput struct {
	Telescope  string    `json:"telescope" validate:"required"`
	Instrument string    `json:"instrument" validate:"required"`
	Author     string    `json:"author" validate:"required"`
	Text       string    `json:"text" validate:"required"`
	Status     string    `json:"status,omitempty" validate:"omitempty,oneof=UNKNOWN WEATHER INSTRUMENT FAULT NEXT_PROJECT PREV_PROJECT"`
	Date       time.Time `json:"date,omitempty"`
}

// CommentRecord is a stored operator comment
type CommentRecord struct {
	ID         string    `json:"id"`
	Telescope  string    `json:"telescope"`
	Instrument string    `json:"instrument"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	Status     string    `json:"status,omitempty"`
	Date       time.Time `json:"date"`
}
