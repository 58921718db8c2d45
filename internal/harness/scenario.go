package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/renewal/internal/engine"
	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/store"
)

// DefaultTenant is used when a scenario does not name a tenant.
const DefaultTenant int64 = 1

// Scenario defines one renewal scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tenant defaults to DefaultTenant.
	Tenant int64 `yaml:"tenant,omitempty"`

	// FeatureDisabled leaves the renewal_triggers feature off.
	FeatureDisabled bool `yaml:"feature_disabled,omitempty"`

	// AtomicCommit defaults to true.
	AtomicCommit *bool `yaml:"atomic_commit,omitempty"`

	// PageSize defaults to the engine default.
	PageSize int `yaml:"page_size,omitempty"`

	// CustomFields defines custom date attributes in order; they receive
	// ids 1..n.
	CustomFields []string `yaml:"custom_fields,omitempty"`

	// RulesFile is a CUE rule file, relative to the scenario file.
	RulesFile string `yaml:"rules_file,omitempty"`

	Rules        []RuleDef        `yaml:"rules,omitempty"`
	Profiles     []ProfileDef     `yaml:"profiles"`
	Marks        []MarkDef        `yaml:"marks,omitempty"`
	Transactions []TransactionDef `yaml:"transactions,omitempty"`
	Runs         []RunStep        `yaml:"runs"`
	Assertions   []Assertion      `yaml:"assertions,omitempty"`
}

// RuleDef is an inline rule. DateModifier names a custom field.
type RuleDef struct {
	Name             string `yaml:"name"`
	Track            string `yaml:"track"`
	Days             int    `yaml:"days,omitempty"`
	RiskTier         int    `yaml:"risk_tier,omitempty"`
	EntityType       int    `yaml:"entity_type,omitempty"`
	EntityCategory   int    `yaml:"entity_category,omitempty"`
	Rank             int    `yaml:"rank,omitempty"`
	FormRef          string `yaml:"form_ref,omitempty"`
	DateModifier     string `yaml:"date_modifier,omitempty"`
	ModifierAbsolute bool   `yaml:"modifier_absolute,omitempty"`
}

// ProfileDef is a third-party profile with its evidence.
type ProfileDef struct {
	ID              int64             `yaml:"id"`
	Type            int               `yaml:"type"`
	Category        int               `yaml:"category"`
	Risk            *int              `yaml:"risk,omitempty"`
	StatusChangedAt string            `yaml:"status_changed_at,omitempty"`
	Inactive        bool              `yaml:"inactive,omitempty"`
	Deleted         bool              `yaml:"deleted,omitempty"`
	CustomDates     map[string]string `yaml:"custom_dates,omitempty"`
	Cases           []CaseDef         `yaml:"cases,omitempty"`
}

// CaseDef is a workflow case; questionnaire cases carry form submissions.
type CaseDef struct {
	Type        string    `yaml:"type"`
	Stage       string    `yaml:"stage,omitempty"`
	CompletedAt string    `yaml:"completed_at,omitempty"`
	Deleted     bool      `yaml:"deleted,omitempty"`
	Forms       []FormDef `yaml:"forms,omitempty"`
}

// FormDef is a form submission. An empty SubmittedAt is an unsubmitted form.
type FormDef struct {
	Ref         string `yaml:"ref"`
	SubmittedAt string `yaml:"submitted_at,omitempty"`
}

// MarkDef pre-populates the dedup ledger.
type MarkDef struct {
	Entity int64  `yaml:"entity"`
	Record int64  `yaml:"record"`
	Date   string `yaml:"date"`
	Track  string `yaml:"track"`
}

// TransactionDef pre-populates a renewal transaction.
type TransactionDef struct {
	Entity int64  `yaml:"entity"`
	Status string `yaml:"status,omitempty"`
}

// RunStep runs the engine once with the clock at At.
type RunStep struct {
	At     string     `yaml:"at"`
	Entity *int64     `yaml:"entity,omitempty"`
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// RunExpect checks run counters. Nil fields are not checked.
type RunExpect struct {
	Scanned   *int `yaml:"scanned,omitempty"`
	Triggered *int `yaml:"triggered,omitempty"`
	Failed    *int `yaml:"failed,omitempty"`
}

// Assertion validates decisions or final store contents.
type Assertion struct {
	Type    string `yaml:"type"`
	Run     int    `yaml:"run,omitempty"`
	Entity  int64  `yaml:"entity,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Rule    string `yaml:"rule,omitempty"`
	Track   string `yaml:"track,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDecision         = "decision"
	AssertTransactionCount = "transaction_count"
	AssertMarkCount        = "mark_count"
	AssertAuditCount       = "audit_count"
)

var validOutcomes = map[string]bool{
	string(engine.OutcomeNoRules):   true,
	string(engine.OutcomeExcluded):  true,
	string(engine.OutcomeActive):    true,
	string(engine.OutcomeNoMatch):   true,
	string(engine.OutcomeTriggered): true,
	string(engine.OutcomeFailed):    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.RulesFile != "" && !filepath.IsAbs(s.RulesFile) {
		s.RulesFile = filepath.Join(filepath.Dir(path), s.RulesFile)
	}
	if s.RulesFile != "" {
		if _, err := os.Stat(s.RulesFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: rules file: %w", err)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if s.Tenant == 0 {
		s.Tenant = DefaultTenant
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Tenant < 0 {
		return fmt.Errorf("tenant must be positive")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	fields := make(map[string]bool, len(s.CustomFields))
	for _, f := range s.CustomFields {
		fields[f] = true
	}
	for i, r := range s.Rules {
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required", i)
		}
		if _, err := ir.ParseTrack(r.Track); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		if r.DateModifier != "" && !fields[r.DateModifier] {
			return fmt.Errorf("rules[%d]: unknown custom field %q", i, r.DateModifier)
		}
	}

	ids := make(map[int64]bool, len(s.Profiles))
	for i, p := range s.Profiles {
		if p.ID <= 0 {
			return fmt.Errorf("profiles[%d]: id must be positive", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("profiles[%d]: duplicate id %d", i, p.ID)
		}
		ids[p.ID] = true
		if p.Type <= 0 || p.Category <= 0 {
			return fmt.Errorf("profiles[%d]: type and category must be positive", i)
		}
		for name := range p.CustomDates {
			if !fields[name] {
				return fmt.Errorf("profiles[%d]: unknown custom field %q", i, name)
			}
		}
		for j, c := range p.Cases {
			if c.Type != store.CaseInvestigation && c.Type != store.CaseQuestionnaire {
				return fmt.Errorf("profiles[%d].cases[%d]: type must be %s or %s",
					i, j, store.CaseInvestigation, store.CaseQuestionnaire)
			}
			for k, f := range c.Forms {
				if f.Ref == "" {
					return fmt.Errorf("profiles[%d].cases[%d].forms[%d]: ref is required", i, j, k)
				}
			}
		}
	}

	for i, m := range s.Marks {
		if !ids[m.Entity] {
			return fmt.Errorf("marks[%d]: unknown entity %d", i, m.Entity)
		}
		if _, err := ir.ParseTrack(m.Track); err != nil {
			return fmt.Errorf("marks[%d]: %w", i, err)
		}
		if _, err := ir.ParseDate(m.Date); err != nil {
			return fmt.Errorf("marks[%d]: %w", i, err)
		}
	}
	for i, tx := range s.Transactions {
		if !ids[tx.Entity] {
			return fmt.Errorf("transactions[%d]: unknown entity %d", i, tx.Entity)
		}
	}
	for i, r := range s.Runs {
		if _, err := ir.ParseDate(r.At); err != nil {
			return fmt.Errorf("runs[%d]: at: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Runs)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, runs int) error {
	switch a.Type {
	case AssertDecision:
		if a.Run < 0 || a.Run >= runs {
			return fmt.Errorf("assertions[%d]: run %d out of range", index, a.Run)
		}
		if a.Entity <= 0 {
			return fmt.Errorf("assertions[%d]: entity is required for decision", index)
		}
		if !validOutcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertTransactionCount, AssertAuditCount:
	case AssertMarkCount:
		if a.Entity <= 0 {
			return fmt.Errorf("assertions[%d]: entity is required for mark_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
