package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainLedger = "renewal/ledger/v1"
	DomainRule   = "renewal/rule/v1"
)

// sumWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func sumWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// LedgerHash computes the binary unique key of a ledger entry.
func LedgerHash(tenantID, entityID int64, c Comparison) ([]byte, error) {
	obj := IRObject{
		"tenant_id":    IRInt(tenantID),
		"entity_id":    IRInt(entityID),
		"record_id":    IRInt(c.RecordID),
		"compare_date": IRString(FormatStamp(c.CompareDate)),
		"track":        IRString(string(c.Track)),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("LedgerHash: failed to marshal: %w", err)
	}
	return sumWithDomain(DomainLedger, canonical), nil
}

// RuleFingerprint computes the uniqueness fingerprint of a rule.
// Two active rules with the same fingerprint would have the same effect.
//
// form_ref participates for form_submission rules; date_modifier
// participates for custom_date rules and whenever it is set.
func RuleFingerprint(r Rule) (string, error) {
	obj := IRObject{
		"tenant_id":       IRInt(r.TenantID),
		"risk_tier":       IRInt(int64(r.RiskTier)),
		"entity_type":     IRInt(int64(r.EntityType)),
		"entity_category": IRInt(int64(r.EntityCategory)),
		"track":           IRString(string(r.Track)),
	}
	if r.Track == TrackFormSubmission {
		obj["form_ref"] = IRString(r.FormRef)
	}
	if r.Track == TrackCustomDate || r.HasModifier() {
		obj["date_modifier"] = IRInt(r.DateModifier)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RuleFingerprint: failed to marshal: %w", err)
	}
	return hex.EncodeToString(sumWithDomain(DomainRule, canonical)), nil
}

// MustLedgerHash is like LedgerHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLedgerHash(tenantID, entityID int64, c Comparison) []byte {
	h, err := LedgerHash(tenantID, entityID, c)
	if err != nil {
		panic(err)
	}
	return h
}
