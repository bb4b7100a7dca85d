package model

import (
	"strings"
	"time"
)

// NormalizeCompanyKey lowercases and trims a company name into the cache key
// shared by the enrichment table and the hot-company allowlist.
func NormalizeCompanyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CompanyEnrichment is the cached assessor verdict for one company. At most
// one live row per normalized company name; rows are superseded, never
// deleted.
type CompanyEnrichment struct {
	ID              int64     `json:"id"`
	CompanyKey      string    `json:"company_key"`
	ExcitementScore float64   `json:"excitement_score"`
	Reasoning       string    `json:"reasoning"`
	Signals         []string  `json:"signals,omitempty"`
	Model           string    `json:"model"`
	Context         string    `json:"context,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RoleEnrichment is the cached structured extraction for one role's free-text
// fields. At most one row per external id.
type RoleEnrichment struct {
	ID                 int64     `json:"id"`
	RoleExternalID     string    `json:"role_external_id"`
	Investors          []string  `json:"investors,omitempty"`
	Angels             []string  `json:"angels,omitempty"`
	FundingStage       string    `json:"funding_stage,omitempty"`
	FundingAmount      string    `json:"funding_amount,omitempty"`
	FounderBackground  string    `json:"founder_background,omitempty"`
	ProcessSignals     []string  `json:"process_signals,omitempty"`
	UrgencySignals     []string  `json:"urgency_signals,omitempty"`
	RunwaySignals      []string  `json:"runway_signals,omitempty"`
	PositiveSignals    []string  `json:"positive_signals,omitempty"`
	NegativeSignals    []string  `json:"negative_signals,omitempty"`
	ExtractedLocation  string    `json:"extracted_location,omitempty"`
	LocationConfidence string    `json:"location_confidence,omitempty"`
	SourceText         string    `json:"source_text,omitempty"`
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
}

// Overlay converts the stored extraction into the payload overlay used for
// re-qualification and scoring.
func (e *RoleEnrichment) Overlay() EnrichmentOverlay {
	return EnrichmentOverlay{
		ExtractedLocation:  e.ExtractedLocation,
		LocationConfidence: e.LocationConfidence,
		FundingStage:       e.FundingStage,
		PositiveSignals:    e.PositiveSignals,
		NegativeSignals:    e.NegativeSignals,
	}
}
