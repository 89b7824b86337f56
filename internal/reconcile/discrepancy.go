// Package reconcile compares the local order ledger against venue-reported
// state and repairs the drift it finds. Detection is pure; all writes go
// through the store.Resolver so repairs stay atomic.
package reconcile

import (
	"fmt"
	"strings"

	"parity/internal/store/model"
	"parity/internal/venue"

	"github.com/shopspring/decimal"
)

// DiscrepancyField is the closed set of drift kinds detection can emit.
// Anything outside the set is FieldUnknown: recorded, never auto-repaired.
type DiscrepancyField string

const (
	FieldStatus         DiscrepancyField = "status"
	FieldFilledQuantity DiscrepancyField = "filled_quantity"
	FieldMissingFills   DiscrepancyField = "missing_fills"
	FieldUnknown        DiscrepancyField = "unknown"
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Entry is one field-level divergence inside a discrepancy. Difference is
// the signed venue-minus-local fill delta on filled-quantity entries;
// MissingQuantity is the positive gap on missing-fills entries.
type Entry struct {
	Field      DiscrepancyField `json:"field"`
	Severity   Severity         `json:"severity"`
	LocalValue string           `json:"local_value"`
	VenueValue string           `json:"venue_value"`

	Difference      float64 `json:"difference,omitempty"`
	MissingQuantity float64 `json:"missing_quantity,omitempty"`
}

// Discrepancy is the detected divergence between one ledger row and the
// venue, as an ordered list of field entries. A single order can drift on
// several fields at once (a missed fill usually drags the status along).
// ExpectedFilled pins the local filled quantity the detection saw, so
// resolution can refuse to act on a row that moved underneath it.
type Discrepancy struct {
	OrderID   int64  `json:"order_id"`
	AccountID string `json:"account_id"`
	Venue     string `json:"venue"`
	Symbol    string `json:"symbol"`

	Entries []Entry `json:"entries"`

	ExpectedFilled float64        `json:"expected_filled"`
	Snapshot       venue.Snapshot `json:"snapshot"`
}

// ByField returns the entry for the given field, or nil.
func (d *Discrepancy) ByField(field DiscrepancyField) *Entry {
	for i := range d.Entries {
		if d.Entries[i].Field == field {
			return &d.Entries[i]
		}
	}
	return nil
}

func (d *Discrepancy) String() string {
	if d == nil {
		return "<none>"
	}
	fields := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		fields[i] = string(e.Field)
	}
	return fmt.Sprintf("order=%d account=%s fields=%s",
		d.OrderID, d.AccountID, strings.Join(fields, ","))
}

// DetectOrderDiscrepancy diffs a ledger row against a venue snapshot.
// It returns nil when the two agree within tolerance. Each drifting field
// contributes its own entry, status first, so combined drift reports both
// the status entry and the fill entry.
func DetectOrderDiscrepancy(local *model.ExchangeOrderModel, snap venue.Snapshot, tolerance float64) *Discrepancy {
	if local == nil {
		return nil
	}
	if tolerance < 0 {
		tolerance = 0
	}

	localFilled := decimal.NewFromFloat(local.FilledQuantity)
	venueFilled := decimal.NewFromFloat(snap.FilledQuantity)
	diff := venueFilled.Sub(localFilled)
	tol := decimal.NewFromFloat(tolerance)

	var entries []Entry
	if local.Status != string(snap.Status) {
		entries = append(entries, Entry{
			Field:      FieldStatus,
			Severity:   SeverityMedium,
			LocalValue: local.Status,
			VenueValue: string(snap.Status),
		})
	}
	switch {
	case diff.GreaterThan(tol):
		qty, _ := diff.Float64()
		entries = append(entries, Entry{
			Field:           FieldMissingFills,
			Severity:        SeverityHigh,
			LocalValue:      localFilled.String(),
			VenueValue:      venueFilled.String(),
			MissingQuantity: qty,
		})
	case diff.Neg().GreaterThan(tol):
		// The venue reporting less filled than the ledger has no safe
		// automatic repair; fills never un-happen.
		delta, _ := diff.Float64()
		entries = append(entries, Entry{
			Field:      FieldFilledQuantity,
			Severity:   SeverityHigh,
			LocalValue: localFilled.String(),
			VenueValue: venueFilled.String(),
			Difference: delta,
		})
	}
	if len(entries) == 0 {
		return nil
	}

	return &Discrepancy{
		OrderID:        local.ID,
		AccountID:      local.AccountID,
		Venue:          local.Venue,
		Symbol:         local.Symbol,
		Entries:        entries,
		ExpectedFilled: local.FilledQuantity,
		Snapshot:       snap,
	}
}
