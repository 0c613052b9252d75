package postgres

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/vicc-go/disease-normalizer/pkg/database"
	"github.com/vicc-go/disease-normalizer/pkg/models"
)

const (
	sourceRecordsTable = "source_records"
	mergedRecordsTable = "merged_records"
	recordRefsTable    = "record_refs"
	sourceMetaTable    = "source_meta"
)

type sourceRecordRow struct {
	ConceptID        string         `db:"concept_id"`
	SourceName       string         `db:"source_name"`
	Label            string         `db:"label"`
	Aliases          pq.StringArray `db:"aliases"`
	Xrefs            pq.StringArray `db:"xrefs"`
	AssociatedWith   pq.StringArray `db:"associated_with"`
	PediatricDisease sql.NullBool   `db:"pediatric_disease"`
	OncologicDisease sql.NullBool   `db:"oncologic_disease"`
	MergeRef         sql.NullString `db:"merge_ref"`
}

var sourceRecordStruct = database.NewStruct(new(sourceRecordRow))

func fromSourceRecord(rec models.SourceRecord) sourceRecordRow {
	return sourceRecordRow{
		ConceptID:        rec.ConceptID,
		SourceName:       string(rec.SourceName),
		Label:            rec.Label,
		Aliases:          rec.Aliases,
		Xrefs:            rec.Xrefs,
		AssociatedWith:   rec.AssociatedWith,
		PediatricDisease: fromFlag(rec.PediatricDisease),
		OncologicDisease: fromFlag(rec.OncologicDisease),
		MergeRef:         sql.NullString{String: rec.MergeRef, Valid: rec.MergeRef != ""},
	}
}

func (r sourceRecordRow) toModel() models.SourceRecord {
	return models.SourceRecord{
		ConceptID:        r.ConceptID,
		SourceName:       models.SourceName(r.SourceName),
		Label:            r.Label,
		Aliases:          r.Aliases,
		Xrefs:            r.Xrefs,
		AssociatedWith:   r.AssociatedWith,
		PediatricDisease: toFlag(r.PediatricDisease),
		OncologicDisease: toFlag(r.OncologicDisease),
		MergeRef:         r.MergeRef.String,
	}
}

type mergedRecordRow struct {
	ConceptID        string         `db:"concept_id"`
	Label            string         `db:"label"`
	Aliases          pq.StringArray `db:"aliases"`
	Xrefs            pq.StringArray `db:"xrefs"`
	AssociatedWith   pq.StringArray `db:"associated_with"`
	PediatricDisease sql.NullBool   `db:"pediatric_disease"`
	OncologicDisease sql.NullBool   `db:"oncologic_disease"`
}

var mergedRecordStruct = database.NewStruct(new(mergedRecordRow))

func fromMergedRecord(rec models.MergedRecord) mergedRecordRow {
	return mergedRecordRow{
		ConceptID:        rec.ConceptID,
		Label:            rec.Label,
		Aliases:          rec.Aliases,
		Xrefs:            rec.Xrefs,
		AssociatedWith:   rec.AssociatedWith,
		PediatricDisease: fromFlag(rec.PediatricDisease),
		OncologicDisease: fromFlag(rec.OncologicDisease),
	}
}

func (r mergedRecordRow) toModel() models.MergedRecord {
	return models.MergedRecord{
		ConceptID:        r.ConceptID,
		Label:            r.Label,
		Aliases:          r.Aliases,
		Xrefs:            r.Xrefs,
		AssociatedWith:   r.AssociatedWith,
		PediatricDisease: toFlag(r.PediatricDisease),
		OncologicDisease: toFlag(r.OncologicDisease),
	}
}

type sourceMetaRow struct {
	SourceName     string `db:"source_name"`
	DataLicense    string `db:"data_license"`
	DataLicenseURL string `db:"data_license_url"`
	Version        string `db:"version"`
	DataURL        string `db:"data_url"`
	RecordCount    int    `db:"record_count"`
}

var sourceMetaStruct = database.NewStruct(new(sourceMetaRow))

func fromSourceMeta(meta models.SourceMeta) sourceMetaRow {
	return sourceMetaRow{
		SourceName:     string(meta.SourceName),
		DataLicense:    meta.DataLicense,
		DataLicenseURL: meta.DataLicenseURL,
		Version:        meta.Version,
		DataURL:        meta.DataURL,
		RecordCount:    meta.RecordCount,
	}
}

func (r sourceMetaRow) toModel() models.SourceMeta {
	return models.SourceMeta{
		SourceName:     models.SourceName(r.SourceName),
		DataLicense:    r.DataLicense,
		DataLicenseURL: r.DataLicenseURL,
		Version:        r.Version,
		DataURL:        r.DataURL,
		RecordCount:    r.RecordCount,
	}
}

func fromFlag(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func toFlag(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
