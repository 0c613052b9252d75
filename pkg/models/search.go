package models

// SourceSearchMatches holds one source's best-tier matches for a query.
type SourceSearchMatches struct {
	MatchType MatchType      `json:"match_type"`
	Records   []SourceRecord `json:"records"`
}

// SearchResult is the per-source outcome of a Search call.
type SearchResult struct {
	Query         string                             `json:"query"`
	Warnings      []string                           `json:"warnings,omitempty"`
	SourceMatches map[SourceName]SourceSearchMatches `json:"source_matches"`
}

// NormalizationResult is the corpus-wide outcome of a Normalize call.
// Disease is nil when MatchType is NO_MATCH.
type NormalizationResult struct {
	Query     string        `json:"query"`
	MatchType MatchType     `json:"match_type"`
	Disease   *MergedRecord `json:"disease,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// IntegrityReport aggregates data problems found during one rebuild.
type IntegrityReport struct {
	DanglingXrefs        int `json:"dangling_xrefs"`
	SelfXrefs            int `json:"self_xrefs"`
	UnknownSourceMembers int `json:"unknown_source_members"`
	DuplicateConceptIDs  int `json:"duplicate_concept_ids"`
	SameSourceComponents int `json:"same_source_components"`
}

// Empty reports whether the rebuild surfaced no integrity issues.
func (r IntegrityReport) Empty() bool {
	return r == IntegrityReport{}
}

// RebuildResult summarizes one completed merge rebuild.
type RebuildResult struct {
	SourceRecords int             `json:"source_records"`
	MergeGroups   int             `json:"merge_groups"`
	MergedRecords int             `json:"merged_records"`
	Integrity     IntegrityReport `json:"integrity"`
	DurationMS    int64           `json:"duration_ms"`
}
