package binance

import (
	"context"
	"errors"
	"net"
	"time"

	"parity/internal/venue"

	"github.com/adshao/go-binance/v2/common"
)

// classify maps go-binance errors onto the shared taxonomy. Binance error
// codes: https://binance-docs.github.io/apidocs/futures/en/#error-codes
func classify(err error, symbol string) error {
	if err == nil {
		return nil
	}
	var ve *venue.Error
	if errors.As(err, &ve) {
		return err
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1002, -1022, -2014, -2015:
			return venue.NewAuthenticationError(Name, apiErr.Message, err)
		case -1003, -1015:
			return venue.NewRateLimitError(Name, time.Minute)
		case -1121:
			return venue.NewInvalidSymbolError(Name, symbol)
		case -2018, -2019, -4046:
			return venue.NewInsufficientFundsError(Name, apiErr.Message)
		case -2013:
			return venue.NewNotFoundError(Name, apiErr.Message)
		default:
			return venue.NewOrderError(Name, apiErr.Message, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return venue.NewConnectionError(Name, err.Error(), err)
	}
	return venue.NewConnectionError(Name, err.Error(), err)
}
