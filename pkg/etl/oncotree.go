package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

// oncoTreeNode is one node of the OncoTree tissue tree API payload.
type oncoTreeNode struct {
	Code               string                  `json:"code"`
	Name               string                  `json:"name"`
	Level              int                     `json:"level"`
	ExternalReferences map[string][]string     `json:"externalReferences"`
	Children           map[string]oncoTreeNode `json:"children"`
}

// oncoTreeSource walks the OncoTree tissue tree. Level 0 is the root and
// level 1 nodes are tissue types, not diseases, so only levels 2 and
// deeper become records. Every OncoTree term is an oncologic disease.
type oncoTreeSource struct{}

// NewOncoTree reads the OncoTree tumor tissue tree API export.
func NewOncoTree() Source {
	return &oncoTreeSource{}
}

func (s *oncoTreeSource) Name() models.SourceName {
	return models.SourceOncoTree
}

func (s *oncoTreeSource) Meta() models.SourceMeta {
	return models.SourceMeta{
		DataLicense:    "CC BY 4.0",
		DataLicenseURL: "https://creativecommons.org/licenses/by/4.0/legalcode",
		DataURL:        "http://oncotree.mskcc.org/#/home?tab=api",
	}
}

func (s *oncoTreeSource) Transform(ctx context.Context, r io.Reader) ([]models.SourceRecord, error) {
	var tree map[string]oncoTreeNode
	if err := json.NewDecoder(r).Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode OncoTree export: %w", err)
	}

	root, ok := tree["TISSUE"]
	if !ok {
		return nil, fmt.Errorf("OncoTree export is missing the TISSUE root")
	}

	var records []models.SourceRecord
	s.walk(root, &records)
	return records, nil
}

func (s *oncoTreeSource) walk(node oncoTreeNode, records *[]models.SourceRecord) {
	if node.Level >= 2 {
		oncologic := true
		rec := models.SourceRecord{
			ConceptID:        "oncotree:" + node.Code,
			SourceName:       models.SourceOncoTree,
			Label:            node.Name,
			OncologicDisease: &oncologic,
		}
		for prefix, codes := range node.ExternalReferences {
			switch prefix {
			case "NCI":
				for _, code := range codes {
					rec.Xrefs = append(rec.Xrefs, "ncit:"+code)
				}
			case "UMLS":
				for _, code := range codes {
					rec.AssociatedWith = append(rec.AssociatedWith, "umls:"+code)
				}
			}
		}
		*records = append(*records, rec)
	}

	for _, child := range node.Children {
		s.walk(child, records)
	}
}
