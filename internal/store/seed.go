package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/renewal/internal/ir"
)

// Profile is a tracked third-party profile row as written by import tooling.
type Profile struct {
	ID              int64
	TenantID        int64
	Name            string
	EntityType      int
	EntityCategory  int
	Active          bool
	StatusChangedAt *time.Time
	Deleted         bool
}

// UpsertProfile inserts or replaces a profile.
func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	var changed, deleted any
	if p.StatusChangedAt != nil {
		changed = ir.FormatStamp(*p.StatusChangedAt)
	}
	if p.Deleted {
		deleted = ir.FormatStamp(time.Unix(0, 0))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, tenant_id, name, entity_type, entity_category, active, status_changed_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			entity_type = excluded.entity_type,
			entity_category = excluded.entity_category,
			active = excluded.active,
			status_changed_at = excluded.status_changed_at,
			deleted_at = excluded.deleted_at
	`, p.ID, p.TenantID, p.Name, p.EntityType, p.EntityCategory, boolToInt(p.Active), changed, deleted)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.ID, err)
	}
	return nil
}

// AddRiskAssessment records a risk tier for a profile.
func (s *Store) AddRiskAssessment(ctx context.Context, tenantID, profileID int64, tier int, at time.Time) (int64, error) {
	return s.insert(ctx, "add risk assessment", `
		INSERT INTO risk_assessments (tenant_id, profile_id, risk_tier, assessed_at)
		VALUES (?, ?, ?, ?)
	`, tenantID, profileID, tier, ir.FormatStamp(at))
}

// Case is a case row. CompletedAt is nil while the case is open.
type Case struct {
	TenantID    int64
	ProfileID   int64
	Type        string
	Stage       string
	CompletedAt *time.Time
	Deleted     bool
}

// AddCase inserts a case and returns its id.
func (s *Store) AddCase(ctx context.Context, c Case) (int64, error) {
	var completed any
	if c.CompletedAt != nil {
		completed = ir.FormatStamp(*c.CompletedAt)
	}
	return s.insert(ctx, "add case", `
		INSERT INTO cases (tenant_id, profile_id, case_type, stage, completed_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.TenantID, c.ProfileID, c.Type, c.Stage, completed, boolToInt(c.Deleted))
}

// AddFormSubmission inserts a form instance attached to a case. A nil
// submittedAt leaves the instance unsubmitted.
func (s *Store) AddFormSubmission(ctx context.Context, tenantID, profileID, caseID int64, formRef string, submittedAt *time.Time) (int64, error) {
	var submitted any
	if submittedAt != nil {
		submitted = ir.FormatStamp(*submittedAt)
	}
	return s.insert(ctx, "add form submission", `
		INSERT INTO form_submissions (tenant_id, profile_id, case_id, form_ref, submitted_at)
		VALUES (?, ?, ?, ?, ?)
	`, tenantID, profileID, caseID, formRef, submitted)
}

// AddCustomDateField defines a custom date attribute and returns its id.
func (s *Store) AddCustomDateField(ctx context.Context, tenantID int64, name string) (int64, error) {
	return s.insert(ctx, "add custom date field", `
		INSERT INTO custom_date_fields (tenant_id, name) VALUES (?, ?)
	`, tenantID, name)
}

// SetCustomDate stores the raw value of a custom date attribute.
func (s *Store) SetCustomDate(ctx context.Context, tenantID, profileID, fieldID int64, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_custom_dates (tenant_id, profile_id, field_id, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id, field_id) DO UPDATE SET value = excluded.value
	`, tenantID, profileID, fieldID, value)
	if err != nil {
		return fmt.Errorf("set custom date: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}
