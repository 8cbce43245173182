package models

import "fmt"

// EntityColumn names a column of the canonical view holding referenceable entities.
type EntityColumn string

const (
	ColumnRegion          EntityColumn = "region"
	ColumnCirconscription EntityColumn = "circonscription"
	ColumnCandidat        EntityColumn = "candidat"
)

// EntityColumns is the scan order used when no category is presumed.
var EntityColumns = []EntityColumn{ColumnRegion, ColumnCirconscription, ColumnCandidat}

// IsValid returns true if c is one of the entity columns.
func (c EntityColumn) IsValid() bool {
	switch c {
	case ColumnRegion, ColumnCirconscription, ColumnCandidat:
		return true
	}
	return false
}

// Label returns the French display label for the column.
func (c EntityColumn) Label() string {
	switch c {
	case ColumnRegion:
		return "Région"
	case ColumnCirconscription:
		return "Circonscription"
	case ColumnCandidat:
		return "Candidat"
	default:
		return string(c)
	}
}

// ResolvedEntity is an entity value the pipeline filters on exactly.
// It comes either from the caller (a previously presented choice) or from
// an automatic disambiguation correction.
type ResolvedEntity struct {
	Value  string       `json:"value"`
	Column EntityColumn `json:"column,omitempty"`
}

// DisambiguationCandidate is a distinct data value fuzzy-matched against a user term.
type DisambiguationCandidate struct {
	Value        string       `json:"value"`
	SourceColumn EntityColumn `json:"source_column"`
	DisplayLabel string       `json:"display_label"`
}

// NewDisambiguationCandidate builds a candidate with its "Label: value" display form.
func NewDisambiguationCandidate(value string, column EntityColumn) DisambiguationCandidate {
	return DisambiguationCandidate{
		Value:        value,
		SourceColumn: column,
		DisplayLabel: fmt.Sprintf("%s: %s", column.Label(), value),
	}
}

// DisambiguationStatus tags the variant held by a DisambiguationOutcome.
type DisambiguationStatus string

const (
	DisambiguationNone     DisambiguationStatus = "none"
	DisambiguationResolved DisambiguationStatus = "resolved"
	DisambiguationChoices  DisambiguationStatus = "choices"
)

// DisambiguationOutcome is exactly one of Resolved, Choices or None.
type DisambiguationOutcome struct {
	Status DisambiguationStatus `json:"status"`

	// Set when Status is resolved.
	OriginalTerm   string       `json:"original_term,omitempty"`
	ResolvedValue  string       `json:"resolved_value,omitempty"`
	ResolvedColumn EntityColumn `json:"resolved_column,omitempty"`

	// Set when Status is choices.
	Choices []DisambiguationCandidate `json:"choices,omitempty"`
}

// NoDisambiguation is the None outcome.
func NoDisambiguation() DisambiguationOutcome {
	return DisambiguationOutcome{Status: DisambiguationNone}
}

// Resolved builds the outcome for a single unique candidate.
func Resolved(term string, candidate DisambiguationCandidate) DisambiguationOutcome {
	return DisambiguationOutcome{
		Status:         DisambiguationResolved,
		OriginalTerm:   term,
		ResolvedValue:  candidate.Value,
		ResolvedColumn: candidate.SourceColumn,
	}
}

// Choices builds the outcome for two or more candidates.
func Choices(candidates []DisambiguationCandidate) DisambiguationOutcome {
	return DisambiguationOutcome{Status: DisambiguationChoices, Choices: candidates}
}

// Entity returns the resolved entity, or nil unless Status is resolved.
func (o DisambiguationOutcome) Entity() *ResolvedEntity {
	if o.Status != DisambiguationResolved {
		return nil
	}
	return &ResolvedEntity{Value: o.ResolvedValue, Column: o.ResolvedColumn}
}
