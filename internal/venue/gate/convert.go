package gate

import (
	"time"

	"parity/internal/pkg/convert"
	symbolpkg "parity/internal/pkg/symbol"
	"parity/internal/venue"

	"github.com/tidwall/gjson"
)

func fromGateStatus(status string, amount, left float64) venue.OrderStatus {
	switch status {
	case "open":
		if left < amount {
			return venue.OrderStatusPartiallyFilled
		}
		return venue.OrderStatusOpen
	case "closed":
		return venue.OrderStatusFilled
	case "cancelled":
		return venue.OrderStatusCanceled
	default:
		return venue.OrderStatusNew
	}
}

func fromGateType(t string) venue.OrderType {
	if t == "limit" {
		return venue.OrderTypeLimit
	}
	return venue.OrderTypeMarket
}

// orderFromJSON maps one Gate spot order object onto the canonical shape.
// Gate does not report the filled quantity directly; it is amount - left,
// subtracted as decimals so binary float noise never shows up as drift.
func orderFromJSON(o gjson.Result) venue.Order {
	amountDec := convert.ToDecimal(o.Get("amount").String())
	leftDec := convert.ToDecimal(o.Get("left").String())
	amount, _ := amountDec.Float64()
	left, _ := leftDec.Float64()
	filled, _ := amountDec.Sub(leftDec).Float64()
	side := venue.SideBuy
	if o.Get("side").String() == "sell" {
		side = venue.SideSell
	}
	return venue.Order{
		VenueOrderID:   o.Get("id").String(),
		ClientOrderID:  o.Get("text").String(),
		Symbol:         symbolpkg.Gate.FromVenue(o.Get("currency_pair").String()),
		Side:           side,
		Type:           fromGateType(o.Get("type").String()),
		Status:         fromGateStatus(o.Get("status").String(), amount, left),
		Quantity:       amount,
		FilledQuantity: filled,
		AvgFillPrice:   o.Get("avg_deal_price").Float(),
		CreatedAt:      time.Unix(o.Get("create_time").Int(), 0).UTC(),
		UpdatedAt:      time.Unix(o.Get("update_time").Int(), 0).UTC(),
	}
}
