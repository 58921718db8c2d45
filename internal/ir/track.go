package ir

import "fmt"

// Track identifies one renewal signal in the date-track catalog.
type Track string

const (
	// TrackExclude suppresses renewal for equally or less specific rules.
	TrackExclude Track = "exclude"

	// TrackStatusChange compares against the profile's status-change timestamp.
	TrackStatusChange Track = "status_change"

	// TrackFormSubmission compares against the latest submitted form.
	TrackFormSubmission Track = "form_submission"

	// TrackInvestigation compares against the latest completed investigation case.
	TrackInvestigation Track = "investigation"

	// TrackCustomDate compares against a custom date attribute only.
	TrackCustomDate Track = "custom_date"
)

// TrackInfo is one row of the date-track catalog.
type TrackInfo struct {
	ID          Track
	Name        string
	Precedence  int  // lower is evaluated first
	MultiValued bool // several rules may apply at one specificity level
}

// catalog is ordered by precedence. The order never changes at runtime.
var catalog = []TrackInfo{
	{ID: TrackExclude, Name: "Exclude from renewal", Precedence: 0},
	{ID: TrackStatusChange, Name: "Status change date", Precedence: 1},
	{ID: TrackFormSubmission, Name: "Form submission date", Precedence: 2, MultiValued: true},
	{ID: TrackInvestigation, Name: "Investigation completion date", Precedence: 3},
	{ID: TrackCustomDate, Name: "Custom date field", Precedence: 4, MultiValued: true},
}

// Catalog returns a copy of the date-track catalog in precedence order.
func Catalog() []TrackInfo {
	out := make([]TrackInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParseTrack validates a track identifier.
func ParseTrack(s string) (Track, error) {
	for _, ti := range catalog {
		if string(ti.ID) == s {
			return ti.ID, nil
		}
	}
	return "", fmt.Errorf("unknown track %q", s)
}

// Valid reports whether t is in the catalog.
func (t Track) Valid() bool {
	_, err := ParseTrack(string(t))
	return err == nil
}

// Precedence returns the catalog precedence of t.
// Unknown tracks sort after every known track.
func (t Track) Precedence() int {
	for _, ti := range catalog {
		if ti.ID == t {
			return ti.Precedence
		}
	}
	return len(catalog)
}

// MultiValued reports whether several rules of this track may coexist at
// one specificity level (one per form, one per custom date field).
func (t Track) MultiValued() bool {
	for _, ti := range catalog {
		if ti.ID == t {
			return ti.MultiValued
		}
	}
	return false
}

// Evaluable reports whether the track produces trigger decisions.
// Exclude only shapes resolution.
func (t Track) Evaluable() bool {
	return t != TrackExclude && t.Valid()
}
