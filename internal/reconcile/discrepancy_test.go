package reconcile

import (
	"testing"

	"parity/internal/store/model"
	"parity/internal/venue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerOrder(status string, filled float64) *model.ExchangeOrderModel {
	return &model.ExchangeOrderModel{
		ID:             7,
		AccountID:      "acct-1",
		Venue:          "mock",
		Symbol:         "BTC/USDT",
		Status:         status,
		Quantity:       100,
		FilledQuantity: filled,
	}
}

func TestDetectReturnsNilWhenInAgreement(t *testing.T) {
	snap := venue.Snapshot{Status: venue.OrderStatusOpen, FilledQuantity: 0}
	assert.Nil(t, DetectOrderDiscrepancy(ledgerOrder("open", 0), snap, 1e-8))

	snap = venue.Snapshot{Status: venue.OrderStatusPartiallyFilled, FilledQuantity: 40, AvgFillPrice: 50000}
	assert.Nil(t, DetectOrderDiscrepancy(ledgerOrder("partially_filled", 40), snap, 1e-8))
}

func TestDetectStatusDrift(t *testing.T) {
	snap := venue.Snapshot{Status: venue.OrderStatusCanceled, FilledQuantity: 0}
	d := DetectOrderDiscrepancy(ledgerOrder("open", 0), snap, 1e-8)
	require.NotNil(t, d)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, FieldStatus, d.Entries[0].Field)
	assert.Equal(t, SeverityMedium, d.Entries[0].Severity)
	assert.Equal(t, "open", d.Entries[0].LocalValue)
	assert.Equal(t, "canceled", d.Entries[0].VenueValue)
}

func TestDetectMissingFillsExactQuantity(t *testing.T) {
	// 0.3 - 0.1 is not exactly 0.2 in binary floats; the gap must be.
	snap := venue.Snapshot{Status: venue.OrderStatusPartiallyFilled, FilledQuantity: 0.3, AvgFillPrice: 50000}
	d := DetectOrderDiscrepancy(ledgerOrder("partially_filled", 0.1), snap, 1e-8)
	require.NotNil(t, d)
	require.Len(t, d.Entries, 1)
	ent := d.ByField(FieldMissingFills)
	require.NotNil(t, ent)
	assert.Equal(t, SeverityHigh, ent.Severity)
	assert.Equal(t, 0.2, ent.MissingQuantity)
	assert.Equal(t, 0.1, d.ExpectedFilled)
}

func TestDetectCombinedStatusAndFillDrift(t *testing.T) {
	// Venue says fully filled, ledger still shows an untouched open order:
	// one discrepancy, two entries, status first.
	snap := venue.Snapshot{Status: venue.OrderStatusFilled, FilledQuantity: 100, AvgFillPrice: 50000}
	d := DetectOrderDiscrepancy(ledgerOrder("open", 0), snap, 1e-8)
	require.NotNil(t, d)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, FieldStatus, d.Entries[0].Field)
	assert.Equal(t, "filled", d.Entries[0].VenueValue)
	assert.Equal(t, FieldMissingFills, d.Entries[1].Field)
	assert.Equal(t, 100.0, d.Entries[1].MissingQuantity)
	assert.Equal(t, venue.OrderStatusFilled, d.Snapshot.Status)
}

func TestDetectVenueReportingLessFilled(t *testing.T) {
	snap := venue.Snapshot{Status: venue.OrderStatusPartiallyFilled, FilledQuantity: 10}
	d := DetectOrderDiscrepancy(ledgerOrder("partially_filled", 40), snap, 1e-8)
	require.NotNil(t, d)
	ent := d.ByField(FieldFilledQuantity)
	require.NotNil(t, ent)
	assert.Equal(t, SeverityHigh, ent.Severity)
	assert.Equal(t, -30.0, ent.Difference)
	assert.Nil(t, d.ByField(FieldMissingFills))
}

func TestDetectRespectsFillTolerance(t *testing.T) {
	snap := venue.Snapshot{Status: venue.OrderStatusOpen, FilledQuantity: 10.000000001}
	assert.Nil(t, DetectOrderDiscrepancy(ledgerOrder("open", 10), snap, 1e-6))

	d := DetectOrderDiscrepancy(ledgerOrder("open", 10), snap, 0)
	require.NotNil(t, d)
	assert.NotNil(t, d.ByField(FieldMissingFills))
}
