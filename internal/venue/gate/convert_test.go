package gate

import (
	"testing"

	"parity/internal/venue"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestOrderFromJSON(t *testing.T) {
	raw := `{
		"id": "123456",
		"text": "t-abc",
		"currency_pair": "BTC_USDT",
		"side": "buy",
		"type": "limit",
		"status": "open",
		"amount": "1.5",
		"left": "0.5",
		"avg_deal_price": "49000.25",
		"create_time": 1718000000,
		"update_time": 1718000100
	}`
	order := orderFromJSON(gjson.Parse(raw))

	assert.Equal(t, "123456", order.VenueOrderID)
	assert.Equal(t, "t-abc", order.ClientOrderID)
	assert.Equal(t, "BTC/USDT", order.Symbol)
	assert.Equal(t, venue.SideBuy, order.Side)
	assert.Equal(t, venue.OrderTypeLimit, order.Type)
	// left < amount on an open order means partially filled.
	assert.Equal(t, venue.OrderStatusPartiallyFilled, order.Status)
	assert.Equal(t, 1.5, order.Quantity)
	assert.Equal(t, 1.0, order.FilledQuantity)
	assert.Equal(t, 49000.25, order.AvgFillPrice)
}

func TestOrderFromJSONFilledQuantityIsExact(t *testing.T) {
	// 0.3 - 0.1 drifts in binary floats; the decimal subtraction must not.
	order := orderFromJSON(gjson.Parse(`{"side":"buy","status":"open","amount":"0.3","left":"0.1"}`))
	assert.Equal(t, 0.2, order.FilledQuantity)
}

func TestFromGateStatus(t *testing.T) {
	assert.Equal(t, venue.OrderStatusOpen, fromGateStatus("open", 2, 2))
	assert.Equal(t, venue.OrderStatusPartiallyFilled, fromGateStatus("open", 2, 1))
	assert.Equal(t, venue.OrderStatusFilled, fromGateStatus("closed", 2, 0))
	assert.Equal(t, venue.OrderStatusCanceled, fromGateStatus("cancelled", 2, 2))
	assert.Equal(t, venue.OrderStatusNew, fromGateStatus("weird", 2, 2))
}

func TestSellSide(t *testing.T) {
	order := orderFromJSON(gjson.Parse(`{"side":"sell","amount":"1","left":"1","status":"open"}`))
	assert.Equal(t, venue.SideSell, order.Side)
}
