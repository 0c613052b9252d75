package etl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

// termLine is one line of a newline-delimited JSON term export.
type termLine struct {
	ConceptID        string   `json:"concept_id"`
	Label            string   `json:"label"`
	Aliases          []string `json:"aliases"`
	Xrefs            []string `json:"xrefs"`
	PediatricDisease *bool    `json:"pediatric_disease"`
	OncologicDisease *bool    `json:"oncologic_disease"`
}

// canonicalPrefixes maps lowered raw prefixes to the casing the ingested
// namespaces use. Prefixes outside this map belong to external
// vocabularies and route to associated_with.
var canonicalPrefixes = map[string]string{
	"ncit":     "ncit",
	"mondo":    "mondo",
	"doid":     "DOID",
	"oncotree": "oncotree",
	"mim":      "MIM",
	"omim":     "MIM",
}

// normalizeRef canonicalizes a reference's namespace prefix. The bool
// reports whether the reference targets an ingested source.
func normalizeRef(raw string) (string, bool) {
	prefix, rest, found := strings.Cut(raw, ":")
	if !found {
		return raw, false
	}
	lowered := strings.ToLower(prefix)
	if canonical, ok := canonicalPrefixes[lowered]; ok {
		return canonical + ":" + rest, true
	}
	return lowered + ":" + rest, false
}

// termSource reads newline-delimited JSON term exports. The per-source
// quirks live entirely in the namespace routing above; each ontology
// shares the line format.
type termSource struct {
	name models.SourceName
	meta models.SourceMeta
}

func (s *termSource) Name() models.SourceName {
	return s.name
}

func (s *termSource) Meta() models.SourceMeta {
	return s.meta
}

func (s *termSource) Transform(ctx context.Context, r io.Reader) ([]models.SourceRecord, error) {
	var records []models.SourceRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var term termLine
		if err := json.Unmarshal([]byte(line), &term); err != nil {
			return nil, fmt.Errorf("%s export line %d: %w", s.name, lineNo, err)
		}

		conceptID, _ := normalizeRef(term.ConceptID)
		rec := models.SourceRecord{
			ConceptID:        conceptID,
			SourceName:       s.name,
			Label:            term.Label,
			Aliases:          term.Aliases,
			PediatricDisease: term.PediatricDisease,
			OncologicDisease: term.OncologicDisease,
		}
		for _, raw := range term.Xrefs {
			ref, ingested := normalizeRef(raw)
			if ingested {
				rec.Xrefs = append(rec.Xrefs, ref)
			} else {
				rec.AssociatedWith = append(rec.AssociatedWith, ref)
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s export: %w", s.name, err)
	}

	return records, nil
}

// NewNCIt reads the NCI Thesaurus disease subset export.
func NewNCIt() Source {
	return &termSource{
		name: models.SourceNCIt,
		meta: models.SourceMeta{
			DataLicense:    "CC BY 4.0",
			DataLicenseURL: "https://creativecommons.org/licenses/by/4.0/legalcode",
			DataURL:        "https://evs.nci.nih.gov/ftp1/NCI_Thesaurus/",
		},
	}
}

// NewMondo reads the Mondo Disease Ontology export.
func NewMondo() Source {
	return &termSource{
		name: models.SourceMondo,
		meta: models.SourceMeta{
			DataLicense:    "CC BY 4.0",
			DataLicenseURL: "https://creativecommons.org/licenses/by/4.0/legalcode",
			DataURL:        "https://mondo.monarchinitiative.org/",
		},
	}
}

// NewDO reads the Human Disease Ontology export.
func NewDO() Source {
	return &termSource{
		name: models.SourceDO,
		meta: models.SourceMeta{
			DataLicense:    "CC0 1.0",
			DataLicenseURL: "https://creativecommons.org/publicdomain/zero/1.0/legalcode",
			DataURL:        "http://www.obofoundry.org/ontology/doid.html",
		},
	}
}

// NewOMIM reads the OMIM titles export. OMIM redistribution requires a
// license, so exports are user-supplied.
func NewOMIM() Source {
	return &termSource{
		name: models.SourceOMIM,
		meta: models.SourceMeta{
			DataLicense:    "custom",
			DataLicenseURL: "https://www.omim.org/help/agreement",
			DataURL:        "https://www.omim.org/downloads",
		},
	}
}
