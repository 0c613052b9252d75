package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// projectBatchSize bounds the rows per UNWIND statement.
const projectBatchSize = 500

// Projector materializes merge groups into the graph database. Each
// merged record becomes a :Disease node and each member concept a
// :Concept node with a :MEMBER_OF edge to its disease.
type Projector struct {
	client *Client
	logger ectologger.Logger
}

// NewProjector creates a new graph projector
func NewProjector(client *Client, logger ectologger.Logger) *Projector {
	return &Projector{
		client: client,
		logger: logger,
	}
}

// ProjectMergeGroups replaces the graph projection with the given merge
// groups and merged records
func (p *Projector) ProjectMergeGroups(ctx context.Context, groups []models.MergeGroup, merged []models.MergedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectMergeGroups")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"merge_groups":   len(groups),
		"merged_records": len(merged),
	})

	if err := p.clear(ctx); err != nil {
		log.WithError(err).Error("Failed to clear graph projection")
		return err
	}

	if err := p.projectDiseases(ctx, merged); err != nil {
		log.WithError(err).Error("Failed to project disease nodes")
		return err
	}

	if err := p.projectMembers(ctx, groups); err != nil {
		log.WithError(err).Error("Failed to project member edges")
		return err
	}

	log.Info("Projected merge groups into graph")
	return nil
}

func (p *Projector) clear(ctx context.Context) error {
	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (n) WHERE n:Disease OR n:Concept DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to clear graph projection: %w", err)
	}
	return nil
}

func (p *Projector) projectDiseases(ctx context.Context, merged []models.MergedRecord) error {
	cypher := `
		UNWIND $rows AS row
		MERGE (d:Disease {concept_id: row.concept_id})
		SET d.label = row.label,
		    d.aliases = row.aliases,
		    d.pediatric_disease = row.pediatric_disease,
		    d.oncologic_disease = row.oncologic_disease
	`

	for start := 0; start < len(merged); start += projectBatchSize {
		end := start + projectBatchSize
		if end > len(merged) {
			end = len(merged)
		}

		rows := make([]map[string]any, 0, end-start)
		for _, rec := range merged[start:end] {
			rows = append(rows, map[string]any{
				"concept_id":        rec.ConceptID,
				"label":             rec.Label,
				"aliases":           rec.Aliases,
				"pediatric_disease": flagProp(rec.PediatricDisease),
				"oncologic_disease": flagProp(rec.OncologicDisease),
			})
		}

		_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to project disease batch: %w", err)
		}
	}

	return nil
}

func (p *Projector) projectMembers(ctx context.Context, groups []models.MergeGroup) error {
	cypher := `
		UNWIND $rows AS row
		MATCH (d:Disease {concept_id: row.merge_ref})
		MERGE (c:Concept {concept_id: row.concept_id})
		MERGE (c)-[:MEMBER_OF]->(d)
	`

	var rows []map[string]any
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		batch := rows
		rows = nil

		_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, cypher, map[string]any{"rows": batch})
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to project member batch: %w", err)
		}
		return nil
	}

	for _, group := range groups {
		for _, member := range group.Members {
			rows = append(rows, map[string]any{
				"merge_ref":  group.MergeRef,
				"concept_id": member,
			})
			if len(rows) >= projectBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// flagProp maps an optional disease flag onto a nullable graph property
func flagProp(flag *bool) any {
	if flag == nil {
		return nil
	}
	return *flag
}
