package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/renewal/internal/ir"
)

func TestInsertRule_FillsDefaults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r, err := s.InsertRule(ctx, testRule("annual", ir.TrackStatusChange, 2, 0, 9), day(2024, 1, 1))
	require.NoError(t, err)

	assert.Positive(t, r.ID)
	assert.True(t, r.Active)
	assert.Equal(t, ir.DefaultRank(2, 0, 9), r.Rank)
	assert.Len(t, r.Fingerprint, 64)

	got, err := s.GetRule(ctx, testTenant, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestInsertRule_KeepsExplicitRank(t *testing.T) {
	s := createTestStore(t)

	in := testRule("r", ir.TrackFormSubmission, 0, 0, 9)
	in.Rank = 3
	r, err := s.InsertRule(context.Background(), in, day(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Rank)
}

func TestInsertRule_RejectsDuplicateFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.InsertRule(ctx, testRule("a", ir.TrackInvestigation, 1, 5, 9), day(2024, 1, 1))
	require.NoError(t, err)

	// Same effect, different name and days
	dup := testRule("b", ir.TrackInvestigation, 1, 5, 9)
	dup.Days = 90
	_, err = s.InsertRule(ctx, dup, day(2024, 1, 2))
	require.ErrorIs(t, err, ErrDuplicateRule)

	// Deactivating the first frees the fingerprint
	require.NoError(t, s.DeactivateRule(ctx, testTenant, first.ID))
	_, err = s.InsertRule(ctx, dup, day(2024, 1, 3))
	require.NoError(t, err)
}

func TestInsertRule_FormRefAndModifierDistinguishRules(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	anyForm := testRule("any", ir.TrackFormSubmission, 0, 0, 9)
	kyc := anyForm
	kyc.Name, kyc.FormRef = "kyc", "kyc"
	esg := anyForm
	esg.Name, esg.FormRef = "esg", "esg"

	for _, r := range []ir.Rule{anyForm, kyc, esg} {
		_, err := s.InsertRule(ctx, r, day(2024, 1, 1))
		require.NoError(t, err, r.Name)
	}

	f1 := testRule("f1", ir.TrackCustomDate, 0, 0, 9)
	f1.DateModifier = 1
	f2 := f1
	f2.Name, f2.DateModifier = "f2", 2
	_, err := s.InsertRule(ctx, f1, day(2024, 1, 1))
	require.NoError(t, err)
	_, err = s.InsertRule(ctx, f2, day(2024, 1, 1))
	require.NoError(t, err)
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ir.Rule)
		wantErr string
	}{
		{"valid", func(r *ir.Rule) {}, ""},
		{"no tenant", func(r *ir.Rule) { r.TenantID = 0 }, "tenant id"},
		{"no name", func(r *ir.Rule) { r.Name = "" }, "name is required"},
		{"bad track", func(r *ir.Rule) { r.Track = "weekly" }, "unknown track"},
		{"negative days", func(r *ir.Rule) { r.Days = -1 }, "days"},
		{"negative category", func(r *ir.Rule) { r.EntityCategory = -2 }, "must not be negative"},
		{"form ref on wrong track", func(r *ir.Rule) { r.FormRef = "kyc" }, "form_ref"},
		{"custom date without modifier", func(r *ir.Rule) { r.Track = ir.TrackCustomDate }, "need a date modifier"},
		{"absolute without modifier", func(r *ir.Rule) { r.ModifierIsAbsolute = true }, "modifier_absolute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRule("r", ir.TrackStatusChange, 0, 0, 9)
			tt.mutate(&r)
			err := ValidateRule(r)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDeactivateRule(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r, err := s.InsertRule(ctx, testRule("r", ir.TrackStatusChange, 0, 0, 9), day(2024, 1, 1))
	require.NoError(t, err)
	require.NoError(t, s.DeactivateRule(ctx, testTenant, r.ID))

	active, err := s.ListRules(ctx, testTenant, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.ListRules(ctx, testTenant, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	err = s.DeactivateRule(ctx, testTenant, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Other tenants cannot touch the rule
	err = s.DeactivateRule(ctx, 2, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCandidateRules(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed := []ir.Rule{
		testRule("wild", ir.TrackStatusChange, 0, 0, 0),
		testRule("cat9", ir.TrackInvestigation, 0, 0, 9),
		testRule("cat9-type5", ir.TrackFormSubmission, 0, 5, 9),
		testRule("cat9-risk2", ir.TrackCustomDate, 2, 0, 9),
		testRule("cat9-risk3", ir.TrackStatusChange, 3, 0, 9),
		testRule("cat8", ir.TrackStatusChange, 0, 0, 8),
		testRule("cat9-type6", ir.TrackStatusChange, 0, 6, 9),
	}
	seed[3].DateModifier = 1
	ids := map[string]int64{}
	for _, r := range seed {
		stored, err := s.InsertRule(ctx, r, day(2024, 1, 1))
		require.NoError(t, err, r.Name)
		ids[r.Name] = stored.ID
	}
	// Another tenant's rule never matches
	other := testRule("other-tenant", ir.TrackStatusChange, 0, 0, 9)
	other.TenantID = 2
	_, err := s.InsertRule(ctx, other, day(2024, 1, 1))
	require.NoError(t, err)

	names := func(rules []ir.Rule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.Name)
		}
		return out
	}

	rated, err := s.CandidateRules(ctx, testTenant, ir.ProfileGroup{RiskTier: 2, EntityType: 5, EntityCategory: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"wild", "cat9", "cat9-type5", "cat9-risk2"}, names(rated))

	// Unrated entities never match risk-specific rules
	unrated, err := s.CandidateRules(ctx, testTenant, ir.ProfileGroup{RiskTier: 0, EntityType: 5, EntityCategory: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"wild", "cat9", "cat9-type5"}, names(unrated))

	require.NoError(t, s.DeactivateRule(ctx, testTenant, ids["cat9"]))
	after, err := s.CandidateRules(ctx, testTenant, ir.ProfileGroup{RiskTier: 0, EntityType: 5, EntityCategory: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"wild", "cat9-type5"}, names(after))
}
