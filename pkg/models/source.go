package models

import (
	"fmt"
	"strings"
)

// SourceName identifies one of the ingested disease ontologies.
type SourceName string

const (
	SourceNCIt     SourceName = "NCIt"
	SourceMondo    SourceName = "Mondo"
	SourceDO       SourceName = "DO"
	SourceOncoTree SourceName = "OncoTree"
	SourceOMIM     SourceName = "OMIM"
)

// sourceRanks orders sources for merge_ref selection and tie-breaking.
// Lower rank wins.
var sourceRanks = map[SourceName]int{
	SourceNCIt:     1,
	SourceMondo:    2,
	SourceOMIM:     3,
	SourceOncoTree: 4,
	SourceDO:       5,
}

// namespacePrefixes maps each source to the concept ID prefix it owns.
// Prefix comparison is case-insensitive; the canonical casing below is
// what storage and output use.
var namespacePrefixes = map[SourceName]string{
	SourceNCIt:     "ncit",
	SourceMondo:    "mondo",
	SourceDO:       "DOID",
	SourceOncoTree: "oncotree",
	SourceOMIM:     "MIM",
}

// prefixToSource is the reverse of namespacePrefixes, keyed on the
// lower-cased prefix.
var prefixToSource = func() map[string]SourceName {
	m := make(map[string]SourceName, len(namespacePrefixes))
	for src, prefix := range namespacePrefixes {
		m[strings.ToLower(prefix)] = src
	}
	return m
}()

// AllSources lists every ingested source in priority order.
func AllSources() []SourceName {
	return []SourceName{SourceNCIt, SourceMondo, SourceOMIM, SourceOncoTree, SourceDO}
}

// Rank returns the merge priority of the source. Unknown sources rank
// after every known source.
func (s SourceName) Rank() int {
	if r, ok := sourceRanks[s]; ok {
		return r
	}
	return len(sourceRanks) + 1
}

// Valid reports whether the source is one of the ingested ontologies.
func (s SourceName) Valid() bool {
	_, ok := sourceRanks[s]
	return ok
}

// NamespacePrefix returns the concept ID prefix the source owns.
func (s SourceName) NamespacePrefix() string {
	return namespacePrefixes[s]
}

// ParseSourceName resolves a case-insensitive source name. The bool is
// false for names that are not ingested sources.
func ParseSourceName(name string) (SourceName, bool) {
	for src := range sourceRanks {
		if strings.EqualFold(string(src), name) {
			return src, true
		}
	}
	return "", false
}

// SourceForConceptID resolves the owning source from a concept ID's
// namespace prefix. The bool is false when the prefix belongs to no
// ingested source (e.g. umls:, mesh:, efo:).
func SourceForConceptID(conceptID string) (SourceName, bool) {
	prefix, _, found := strings.Cut(conceptID, ":")
	if !found {
		return "", false
	}
	src, ok := prefixToSource[strings.ToLower(prefix)]
	return src, ok
}

// ValidateConceptID checks that the concept ID carries the namespace
// prefix of the given source.
func ValidateConceptID(conceptID string, source SourceName) error {
	src, ok := SourceForConceptID(conceptID)
	if !ok || src != source {
		return fmt.Errorf("concept ID %q does not belong to source %s", conceptID, source)
	}
	return nil
}

// SourceMeta records provenance for one loaded source.
type SourceMeta struct {
	SourceName     SourceName `json:"source_name" db:"source_name"`
	DataLicense    string     `json:"data_license" db:"data_license"`
	DataLicenseURL string     `json:"data_license_url" db:"data_license_url"`
	Version        string     `json:"version" db:"version"`
	DataURL        string     `json:"data_url" db:"data_url"`
	RecordCount    int        `json:"record_count" db:"record_count"`
}
