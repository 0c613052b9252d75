package models

import "strings"

// RefType names the record fields a query can match against, in tier order.
type RefType string

const (
	RefTypeLabel          RefType = "label"
	RefTypeAlias          RefType = "alias"
	RefTypeXref           RefType = "xref"
	RefTypeAssociatedWith RefType = "associated_with"
)

// RefTypes lists match-target fields from strongest to weakest tier.
func RefTypes() []RefType {
	return []RefType{RefTypeLabel, RefTypeAlias, RefTypeXref, RefTypeAssociatedWith}
}

// MatchType grades how a query matched a record. Higher is stronger.
type MatchType int

const (
	MatchTypeConceptID      MatchType = 100
	MatchTypeLabel          MatchType = 80
	MatchTypeAlias          MatchType = 60
	MatchTypeXref           MatchType = 40
	MatchTypeAssociatedWith MatchType = 20
	MatchTypeNoMatch        MatchType = 0
)

// MatchTypeForRef maps a matched field to its match grade.
func MatchTypeForRef(ref RefType) MatchType {
	switch ref {
	case RefTypeLabel:
		return MatchTypeLabel
	case RefTypeAlias:
		return MatchTypeAlias
	case RefTypeXref:
		return MatchTypeXref
	case RefTypeAssociatedWith:
		return MatchTypeAssociatedWith
	default:
		return MatchTypeNoMatch
	}
}

func (m MatchType) String() string {
	switch m {
	case MatchTypeConceptID:
		return "CONCEPT_ID"
	case MatchTypeLabel:
		return "LABEL"
	case MatchTypeAlias:
		return "ALIAS"
	case MatchTypeXref:
		return "XREF"
	case MatchTypeAssociatedWith:
		return "ASSOCIATED_WITH"
	default:
		return "NO_MATCH"
	}
}

// SourceRecord is one disease concept as ingested from a single ontology.
// Tri-state flags stay nil when the source does not assert them.
type SourceRecord struct {
	ConceptID        string     `json:"concept_id" db:"concept_id"`
	SourceName       SourceName `json:"source_name" db:"source_name"`
	Label            string     `json:"label,omitempty" db:"label"`
	Aliases          []string   `json:"aliases,omitempty"`
	Xrefs            []string   `json:"xrefs,omitempty"`
	AssociatedWith   []string   `json:"associated_with,omitempty"`
	PediatricDisease *bool      `json:"pediatric_disease,omitempty" db:"pediatric_disease"`
	OncologicDisease *bool      `json:"oncologic_disease,omitempty" db:"oncologic_disease"`
	MergeRef         string     `json:"merge_ref,omitempty" db:"merge_ref"`
}

// RefValues returns the record's values for one match-target field.
func (r *SourceRecord) RefValues(ref RefType) []string {
	switch ref {
	case RefTypeLabel:
		if r.Label == "" {
			return nil
		}
		return []string{r.Label}
	case RefTypeAlias:
		return r.Aliases
	case RefTypeXref:
		return r.Xrefs
	case RefTypeAssociatedWith:
		return r.AssociatedWith
	default:
		return nil
	}
}

// HasRefValue reports whether the field contains the lowered value.
func (r *SourceRecord) HasRefValue(ref RefType, lowered string) bool {
	for _, v := range r.RefValues(ref) {
		if strings.ToLower(v) == lowered {
			return true
		}
	}
	return false
}

// MergeGroup is one connected component of the xref graph, keyed by the
// highest-priority member's concept ID.
type MergeGroup struct {
	MergeRef string   `json:"merge_ref"`
	Members  []string `json:"members"`
}

// MergedRecord is the canonical concept produced by merging a group.
type MergedRecord struct {
	ConceptID        string   `json:"concept_id" db:"concept_id"`
	Label            string   `json:"label,omitempty" db:"label"`
	Aliases          []string `json:"aliases,omitempty"`
	Xrefs            []string `json:"xrefs,omitempty"`
	AssociatedWith   []string `json:"associated_with,omitempty"`
	PediatricDisease *bool    `json:"pediatric_disease,omitempty" db:"pediatric_disease"`
	OncologicDisease *bool    `json:"oncologic_disease,omitempty" db:"oncologic_disease"`
}
