package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderSpecValidate(t *testing.T) {
	valid := OrderSpec{
		Symbol:        "BTC/USDT",
		Side:          SideBuy,
		Type:          OrderTypeLimit,
		Quantity:      0.5,
		Price:         40000,
		ClientOrderID: "c-1",
	}

	tests := []struct {
		name    string
		mutate  func(*OrderSpec)
		wantErr bool
	}{
		{"valid limit order", func(s *OrderSpec) {}, false},
		{"valid market order without price", func(s *OrderSpec) {
			s.Type = OrderTypeMarket
			s.Price = 0
		}, false},
		{"empty symbol", func(s *OrderSpec) { s.Symbol = " " }, true},
		{"bad side", func(s *OrderSpec) { s.Side = "hold" }, true},
		{"unknown type", func(s *OrderSpec) { s.Type = "iceberg" }, true},
		{"zero quantity", func(s *OrderSpec) { s.Quantity = 0 }, true},
		{"negative quantity", func(s *OrderSpec) { s.Quantity = -1 }, true},
		{"limit without price", func(s *OrderSpec) { s.Price = 0 }, true},
		{"stop limit without price", func(s *OrderSpec) {
			s.Type = OrderTypeStopLimit
			s.Price = 0
		}, true},
		{"missing client order id", func(s *OrderSpec) { s.ClientOrderID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, CodeValidation, CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	open := []OrderStatus{OrderStatusNew, OrderStatusOpen, OrderStatusPartiallyFilled}
	for _, s := range open {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestOrderSnapshotProjection(t *testing.T) {
	o := Order{
		VenueOrderID:   "x-1",
		Status:         OrderStatusPartiallyFilled,
		Quantity:       10,
		FilledQuantity: 4,
		AvgFillPrice:   101.5,
	}
	snap := o.Snapshot()
	assert.Equal(t, OrderStatusPartiallyFilled, snap.Status)
	assert.Equal(t, 4.0, snap.FilledQuantity)
	assert.Equal(t, 101.5, snap.AvgFillPrice)
}
