package merging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// Merger folds the member records of a merge group into one canonical
// merged record. Output slices are sorted so a rebuild over the same
// snapshot is byte-identical.
type Merger struct {
	logger ectologger.Logger
}

func NewMerger(logger ectologger.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge builds the merged record for a group. Group members are expected
// in source-priority order with the merge ref first; byID must hold every
// member keyed on lowered concept ID.
func (m *Merger) Merge(ctx context.Context, group models.MergeGroup, byID map[string]models.SourceRecord) (models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Merger.Merge")
	defer span.End()

	members := make([]models.SourceRecord, 0, len(group.Members))
	for _, id := range group.Members {
		rec, ok := byID[strings.ToLower(id)]
		if !ok {
			return models.MergedRecord{}, fmt.Errorf("merge group %s references missing record %s", group.MergeRef, id)
		}
		members = append(members, rec)
	}
	if len(members) == 0 {
		return models.MergedRecord{}, fmt.Errorf("merge group %s has no members", group.MergeRef)
	}

	merged := models.MergedRecord{ConceptID: group.MergeRef}

	// Label comes from the merge ref when it has one, otherwise from
	// the first member with a label.
	for _, rec := range members {
		if rec.Label != "" {
			merged.Label = rec.Label
			break
		}
	}

	// Aliases are the union of member aliases plus the labels that lost
	// label selection. First casing in priority order wins.
	aliases := newCaseSet()
	for _, rec := range members {
		if rec.Label != "" && !strings.EqualFold(rec.Label, merged.Label) {
			aliases.add(rec.Label)
		}
		for _, alias := range rec.Aliases {
			if strings.EqualFold(alias, merged.Label) {
				continue
			}
			aliases.add(alias)
		}
	}
	merged.Aliases = aliases.sorted()

	// Xrefs are the non-primary member IDs plus every declared xref,
	// minus references back to the merged concept itself.
	xrefs := newCaseSet()
	for i, rec := range members {
		if i > 0 {
			xrefs.add(rec.ConceptID)
		}
		for _, xref := range rec.Xrefs {
			if strings.EqualFold(xref, group.MergeRef) {
				continue
			}
			xrefs.add(xref)
		}
	}
	merged.Xrefs = xrefs.sorted()

	associated := newCaseSet()
	for _, rec := range members {
		for _, ref := range rec.AssociatedWith {
			associated.add(ref)
		}
	}
	merged.AssociatedWith = associated.sorted()

	merged.PediatricDisease = reduceFlag(members, func(r models.SourceRecord) *bool { return r.PediatricDisease })
	merged.OncologicDisease = reduceFlag(members, func(r models.SourceRecord) *bool { return r.OncologicDisease })

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"merge_ref":    group.MergeRef,
		"member_count": len(members),
	}).Debug("Merged group")

	return merged, nil
}

// reduceFlag ORs a tri-state flag across members. Any true wins, an
// explicit false beats unset, all unset stays unset.
func reduceFlag(members []models.SourceRecord, get func(models.SourceRecord) *bool) *bool {
	var out *bool
	for _, rec := range members {
		v := get(rec)
		if v == nil {
			continue
		}
		if *v {
			t := true
			return &t
		}
		if out == nil {
			f := false
			out = &f
		}
	}
	return out
}

// caseSet deduplicates strings case-insensitively, keeping the casing of
// the first insertion.
type caseSet struct {
	seen   map[string]struct{}
	values []string
}

func newCaseSet() *caseSet {
	return &caseSet{seen: make(map[string]struct{})}
}

func (s *caseSet) add(value string) {
	key := strings.ToLower(value)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.values = append(s.values, value)
}

func (s *caseSet) sorted() []string {
	if len(s.values) == 0 {
		return nil
	}
	out := make([]string, len(s.values))
	copy(out, s.values)
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}
