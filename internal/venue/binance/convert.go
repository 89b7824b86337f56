package binance

import (
	"strconv"
	"time"

	"parity/internal/pkg/convert"
	symbolpkg "parity/internal/pkg/symbol"
	"parity/internal/venue"

	"github.com/adshao/go-binance/v2/futures"
)

func parseFloat(s string) float64 {
	return convert.ToFloat64(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toBinanceSide(side venue.Side) futures.SideType {
	if side == venue.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func toBinanceType(t venue.OrderType) futures.OrderType {
	switch t {
	case venue.OrderTypeLimit:
		return futures.OrderTypeLimit
	case venue.OrderTypeStopLoss:
		return futures.OrderTypeStopMarket
	case venue.OrderTypeStopLimit:
		return futures.OrderTypeStop
	default:
		return futures.OrderTypeMarket
	}
}

func fromBinanceStatus(s futures.OrderStatusType) venue.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew:
		return venue.OrderStatusOpen
	case futures.OrderStatusTypePartiallyFilled:
		return venue.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return venue.OrderStatusFilled
	case futures.OrderStatusTypeCanceled:
		return venue.OrderStatusCanceled
	case futures.OrderStatusTypeRejected:
		return venue.OrderStatusRejected
	case futures.OrderStatusTypeExpired:
		return venue.OrderStatusExpired
	default:
		return venue.OrderStatusNew
	}
}

func fromBinanceSide(s futures.SideType) venue.Side {
	if s == futures.SideTypeSell {
		return venue.SideSell
	}
	return venue.SideBuy
}

func fromBinanceType(t futures.OrderType) venue.OrderType {
	switch t {
	case futures.OrderTypeLimit:
		return venue.OrderTypeLimit
	case futures.OrderTypeStopMarket:
		return venue.OrderTypeStopLoss
	case futures.OrderTypeStop:
		return venue.OrderTypeStopLimit
	default:
		return venue.OrderTypeMarket
	}
}

func fromBinanceOrder(o *futures.Order) *venue.Order {
	if o == nil {
		return nil
	}
	return &venue.Order{
		VenueOrderID:   strconv.FormatInt(o.OrderID, 10),
		ClientOrderID:  o.ClientOrderID,
		Symbol:         symbolpkg.Binance.FromVenue(o.Symbol),
		Side:           fromBinanceSide(o.Side),
		Type:           fromBinanceType(o.Type),
		Status:         fromBinanceStatus(o.Status),
		Quantity:       parseFloat(o.OrigQuantity),
		FilledQuantity: parseFloat(o.ExecutedQuantity),
		AvgFillPrice:   parseFloat(o.AvgPrice),
		CreatedAt:      time.UnixMilli(o.Time).UTC(),
		UpdatedAt:      time.UnixMilli(o.UpdateTime).UTC(),
	}
}

func fromBinanceOrders(orders []*futures.Order) []venue.Order {
	out := make([]venue.Order, 0, len(orders))
	for _, o := range orders {
		converted := fromBinanceOrder(o)
		if converted == nil {
			continue
		}
		out = append(out, *converted)
	}
	return out
}
