package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// Case types.
const (
	CaseInvestigation = "investigation"
	CaseQuestionnaire = "questionnaire"
)

// CompletedStages are the investigation stages that count as complete.
var CompletedStages = []string{"completed", "closed", "approved"}

// Submission is a submitted form instance.
type Submission struct {
	ID          int64
	FormRef     string
	SubmittedAt time.Time
}

// FormQuery selects form submissions. A non-empty FormRef selects that form
// only; otherwise any form not listed in ExcludeRefs qualifies.
type FormQuery struct {
	FormRef     string
	ExcludeRefs []string
}

// CaseRecord is a completed investigation case.
type CaseRecord struct {
	ID          int64
	CompletedAt time.Time
}

// LatestFormSubmission returns the most recently submitted form instance of
// the entity matching fq. Submissions whose case was soft-deleted are
// ignored. Returns nil when nothing matches.
func (s *Store) LatestFormSubmission(ctx context.Context, tenantID, entityID int64, fq FormQuery) (*Submission, error) {
	preds := []queryir.Predicate{
		queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
		queryir.Equals{Field: "profile_id", Value: ir.IRInt(entityID)},
		queryir.IsNull{Field: "submitted_at", Negate: true},
		queryir.NotInSelect{Field: "case_id", Query: queryir.Select{
			From:    "cases",
			Columns: []queryir.Column{{Field: "id"}},
			Filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
				queryir.Equals{Field: "profile_id", Value: ir.IRInt(entityID)},
				queryir.Equals{Field: "deleted", Value: ir.IRBool(true)},
			}},
		}},
	}
	switch {
	case fq.FormRef != "":
		preds = append(preds, queryir.Equals{Field: "form_ref", Value: ir.IRString(fq.FormRef)})
	case len(fq.ExcludeRefs) > 0:
		preds = append(preds, queryir.In{Field: "form_ref", Values: queryir.Strings(fq.ExcludeRefs...), Negate: true})
	}

	row, err := s.queryRow(ctx, s.db, queryir.Select{
		From:    "form_submissions",
		Columns: []queryir.Column{{Field: "id"}, {Field: "form_ref"}, {Field: "submitted_at"}},
		Filter:  queryir.And{Predicates: preds},
		OrderBy: []queryir.Order{{Field: "submitted_at", Desc: true}, {Field: "id", Desc: true}},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("latest form submission: %w", err)
	}

	var (
		sub       Submission
		submitted string
	)
	if err := row.Scan(&sub.ID, &sub.FormRef, &submitted); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest form submission: %w", err)
	}
	if sub.SubmittedAt, err = ir.ParseDate(submitted); err != nil {
		return nil, fmt.Errorf("latest form submission %d: %w", sub.ID, err)
	}
	return &sub, nil
}

// LatestCompletedInvestigation returns the most recently completed
// investigation case of the entity, or nil.
func (s *Store) LatestCompletedInvestigation(ctx context.Context, tenantID, entityID int64) (*CaseRecord, error) {
	row, err := s.queryRow(ctx, s.db, queryir.Select{
		From:    "cases",
		Columns: []queryir.Column{{Field: "id"}, {Field: "completed_at"}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
			queryir.Equals{Field: "profile_id", Value: ir.IRInt(entityID)},
			queryir.Equals{Field: "case_type", Value: ir.IRString(CaseInvestigation)},
			queryir.Equals{Field: "deleted", Value: ir.IRBool(false)},
			queryir.In{Field: "stage", Values: queryir.Strings(CompletedStages...)},
			queryir.IsNull{Field: "completed_at", Negate: true},
		}},
		OrderBy: []queryir.Order{{Field: "completed_at", Desc: true}, {Field: "id", Desc: true}},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("latest investigation: %w", err)
	}

	var (
		rec       CaseRecord
		completed string
	)
	if err := row.Scan(&rec.ID, &completed); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest investigation: %w", err)
	}
	if rec.CompletedAt, err = ir.ParseDate(completed); err != nil {
		return nil, fmt.Errorf("latest investigation %d: %w", rec.ID, err)
	}
	return &rec, nil
}

// CustomDate returns the raw value of a custom date field on the entity.
// found is false when the entity has no value for the field.
func (s *Store) CustomDate(ctx context.Context, tenantID, entityID, fieldID int64) (value string, found bool, err error) {
	row, err := s.queryRow(ctx, s.db, queryir.Select{
		From:    "profile_custom_dates",
		Alias:   "d",
		Columns: []queryir.Column{{Field: "d.value"}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "d.tenant_id", Value: ir.IRInt(tenantID)},
			queryir.Equals{Field: "d.profile_id", Value: ir.IRInt(entityID)},
			queryir.Equals{Field: "d.field_id", Value: ir.IRInt(fieldID)},
		}},
		OrderBy: []queryir.Order{{Field: "d.field_id"}},
		Limit:   1,
	})
	if err != nil {
		return "", false, fmt.Errorf("custom date: %w", err)
	}
	if err := row.Scan(&value); err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("custom date: %w", err)
	}
	return value, true, nil
}
