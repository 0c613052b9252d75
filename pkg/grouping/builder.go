package grouping

import (
	"context"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// Builder computes merge groups as connected components of the
// cross-reference graph over all ingested source records.
type Builder struct {
	logger ectologger.Logger
}

func NewBuilder(logger ectologger.Logger) *Builder {
	return &Builder{logger: logger}
}

// BuildResult carries the groups plus the cleaned record snapshot the
// groups were computed from.
type BuildResult struct {
	// Groups holds one entry per component with two or more members,
	// sorted by merge ref. Singleton records carry no group.
	Groups []models.MergeGroup

	// Records is the deduplicated snapshot. Records from unknown
	// sources are removed.
	Records []models.SourceRecord

	Report models.IntegrityReport
}

// BuildGroups partitions the snapshot into merge groups. Xref edges are
// undirected; an edge pointing at a concept ID missing from the snapshot
// is dropped as dangling, an edge from a record to itself is dropped as
// a self reference. Both are counted once per occurrence in the report.
func (b *Builder) BuildGroups(ctx context.Context, records []models.SourceRecord) (*BuildResult, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Builder.BuildGroups")
	defer span.End()

	log := b.logger.WithContext(ctx).WithFields(map[string]any{
		"record_count": len(records),
	})

	result := &BuildResult{}

	// Drop records from sources we do not ingest. They cannot
	// participate in merging and their IDs stay out of the graph.
	known := make([]models.SourceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.SourceName.Valid() {
			result.Report.UnknownSourceMembers++
			continue
		}
		known = append(known, rec)
	}

	// Deduplicate on lowered concept ID, keeping the record from the
	// highest-priority source. Ordering by (rank, id) first makes the
	// survivor deterministic.
	sort.SliceStable(known, func(i, j int) bool {
		ri, rj := known[i].SourceName.Rank(), known[j].SourceName.Rank()
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(known[i].ConceptID) < strings.ToLower(known[j].ConceptID)
	})

	index := make(map[string]int, len(known))
	deduped := make([]models.SourceRecord, 0, len(known))
	for _, rec := range known {
		key := strings.ToLower(rec.ConceptID)
		if _, ok := index[key]; ok {
			result.Report.DuplicateConceptIDs++
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, rec)
	}
	result.Records = deduped

	// Union along xref edges. Edge direction is irrelevant; the
	// canonical (low, high) form keeps the edge set order-independent.
	uf := newUnionFind(len(deduped))
	seen := make(map[[2]string]struct{})
	for i, rec := range deduped {
		from := strings.ToLower(rec.ConceptID)
		for _, xref := range rec.Xrefs {
			to := strings.ToLower(xref)
			if to == from {
				result.Report.SelfXrefs++
				continue
			}
			j, ok := index[to]
			if !ok {
				result.Report.DanglingXrefs++
				continue
			}
			edge := [2]string{from, to}
			if edge[0] > edge[1] {
				edge[0], edge[1] = edge[1], edge[0]
			}
			if _, dup := seen[edge]; dup {
				continue
			}
			seen[edge] = struct{}{}
			uf.union(i, j)
		}
	}

	// Collect components with two or more members.
	components := make(map[int][]int)
	for i := range deduped {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	for _, memberIdx := range components {
		if len(memberIdx) < 2 {
			continue
		}

		// Members ordered by (source rank, concept ID); the first is
		// the merge ref.
		sort.Slice(memberIdx, func(a, b int) bool {
			ra, rb := deduped[memberIdx[a]].SourceName.Rank(), deduped[memberIdx[b]].SourceName.Rank()
			if ra != rb {
				return ra < rb
			}
			return strings.ToLower(deduped[memberIdx[a]].ConceptID) < strings.ToLower(deduped[memberIdx[b]].ConceptID)
		})

		members := make([]string, len(memberIdx))
		perSource := make(map[models.SourceName]int)
		for n, idx := range memberIdx {
			members[n] = deduped[idx].ConceptID
			perSource[deduped[idx].SourceName]++
		}
		for _, count := range perSource {
			if count > 1 {
				result.Report.SameSourceComponents++
				break
			}
		}

		result.Groups = append(result.Groups, models.MergeGroup{
			MergeRef: members[0],
			Members:  members,
		})
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		return strings.ToLower(result.Groups[i].MergeRef) < strings.ToLower(result.Groups[j].MergeRef)
	})

	log.WithFields(map[string]any{
		"group_count":    len(result.Groups),
		"dangling_xrefs": result.Report.DanglingXrefs,
		"self_xrefs":     result.Report.SelfXrefs,
	}).Info("Built merge groups")

	return result, nil
}
