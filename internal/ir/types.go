package ir

import "time"

// Wildcard is the value of a rule dimension that matches any entity.
const Wildcard = 0

// Rule is an administrator-authored renewal policy row.
type Rule struct {
	ID                 int64  `json:"id"`
	TenantID           int64  `json:"tenant_id"`
	Name               string `json:"name"`
	Track              Track  `json:"track"`
	Days               int    `json:"days"`
	DateModifier       int64  `json:"date_modifier,omitempty"` // custom date field id, 0 = none
	ModifierIsAbsolute bool   `json:"modifier_is_absolute,omitempty"`
	FormRef            string `json:"form_ref,omitempty"` // form_submission only, "" = any form
	RiskTier           int    `json:"risk_tier"`          // 0 = any
	EntityType         int    `json:"entity_type"`        // 0 = any
	EntityCategory     int    `json:"entity_category"`    // 0 = any
	Rank               int    `json:"rank"`               // lower = more specific
	Active             bool   `json:"active"`
	Fingerprint        string `json:"fingerprint,omitempty"`
}

// Group returns the specificity tuple the rule is scoped to.
func (r Rule) Group() ProfileGroup {
	return ProfileGroup{RiskTier: r.RiskTier, EntityType: r.EntityType, EntityCategory: r.EntityCategory}
}

// IsExclude reports whether the rule suppresses renewal.
func (r Rule) IsExclude() bool {
	return r.Track == TrackExclude
}

// HasModifier reports whether the rule sources its date from a custom field.
func (r Rule) HasModifier() bool {
	return r.DateModifier > 0
}

// DefaultRank returns the specificity tier for a rule whose author left the
// rank unset. Pinned risk outranks pinned type; category-scoped rules
// outrank category wildcards.
func DefaultRank(riskTier, entityType, entityCategory int) int {
	r, t, c := riskTier != Wildcard, entityType != Wildcard, entityCategory != Wildcard
	switch {
	case r && t && c:
		return 1
	case r && c:
		return 2
	case t && c:
		return 3
	case c:
		return 4
	case r && t:
		return 5
	case r:
		return 6
	case t:
		return 7
	default:
		return 8
	}
}

// ProfileGroup is the (risk, type, category) triple that selects rules.
type ProfileGroup struct {
	RiskTier       int
	EntityType     int
	EntityCategory int
}

// Entity is the read-only projection of a tracked third-party profile.
type Entity struct {
	ID              int64
	EntityType      int
	EntityCategory  int
	RiskTier        int        // 0 = unrated
	StatusChangedAt *time.Time // nil when the status never changed
}

// Group returns the entity's profile group.
func (e Entity) Group() ProfileGroup {
	return ProfileGroup{RiskTier: e.RiskTier, EntityType: e.EntityType, EntityCategory: e.EntityCategory}
}

// Comparison names the record and date that supplied a trigger decision.
type Comparison struct {
	RecordID    int64     `json:"record_id"`
	CompareDate time.Time `json:"compare_date"`
	Track       Track     `json:"track"`
}

// ComparisonInfo is the outcome of a successful track evaluation.
// AlsoMark carries a co-occurring comparison that must be recorded in the
// ledger so it cannot trigger on its own in a later run.
type ComparisonInfo struct {
	RuleID int64 `json:"rule_id"`
	Comparison
	AlsoMark *Comparison `json:"also_mark,omitempty"`
}

// Marks returns the primary comparison followed by AlsoMark, if any.
func (ci ComparisonInfo) Marks() []Comparison {
	out := []Comparison{ci.Comparison}
	if ci.AlsoMark != nil {
		out = append(out, *ci.AlsoMark)
	}
	return out
}

// LedgerEntry records that a comparison already caused a renewal decision.
type LedgerEntry struct {
	TenantID    int64
	EntityID    int64
	RecordID    int64
	CompareDate time.Time
	Track       Track
	Hash        []byte
	CreatedAt   time.Time
}

// MarkResult is the outcome of an idempotent ledger insert.
type MarkResult int

const (
	// MarkInserted means a new ledger row was written.
	MarkInserted MarkResult = iota
	// MarkAlreadyExists means another run recorded the same comparison.
	MarkAlreadyExists
)

func (m MarkResult) String() string {
	if m == MarkAlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

// Transaction constants understood by the downstream workflow store.
const (
	TransactionTypeRenewal = "RENEWAL"
	TransactionOpCreate    = "CREATE"
	TransactionStatusNew   = "PENDING"
	TransactionStatusOpen  = "IN_PROGRESS"
	TriggerTypeRule        = "renewal_rule"
)

// TransactionRequest asks the transaction sink for a renewal workflow.
type TransactionRequest struct {
	TenantID    int64
	Op          string
	Type        string
	Status      string
	EntityID    int64
	EntityType  int
	TriggerID   int64
	TriggerType string
	RunID       string
	RequestedAt time.Time
}

// AuditEntry is one line appended to the audit log sink.
type AuditEntry struct {
	TenantID  int64
	Actor     string
	EventCode string
	Message   string
	EntityID  int64
	At        time.Time
}
