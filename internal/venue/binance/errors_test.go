package binance

import (
	"context"
	"errors"
	"testing"

	"parity/internal/venue"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAPIErrors(t *testing.T) {
	tests := []struct {
		code int64
		want venue.ErrorCode
	}{
		{-2015, venue.CodeAuthentication},
		{-1022, venue.CodeAuthentication},
		{-1003, venue.CodeRateLimit},
		{-1121, venue.CodeInvalidSymbol},
		{-2019, venue.CodeInsufficientFunds},
		{-2013, venue.CodeNotFound},
		{-4164, venue.CodeOrder}, // anything unmapped is an order error
	}
	for _, tt := range tests {
		err := classify(&common.APIError{Code: tt.code, Message: "x"}, "BTCUSDT")
		assert.Equal(t, tt.want, venue.CodeOf(err), "binance code %d", tt.code)
	}
}

func TestClassifyPassesTaxonomyErrorsThrough(t *testing.T) {
	orig := venue.NewRateLimitError(Name, 0)
	assert.ErrorIs(t, classify(orig, ""), orig)
	assert.Nil(t, classify(nil, ""))
}

func TestClassifyNetworkErrors(t *testing.T) {
	err := classify(context.DeadlineExceeded, "")
	assert.Equal(t, venue.CodeConnection, venue.CodeOf(err))
	err = classify(errors.New("dial tcp: connection refused"), "")
	assert.Equal(t, venue.CodeConnection, venue.CodeOf(err))
}

func TestClassifyRateLimitCarriesRetryAfter(t *testing.T) {
	err := classify(&common.APIError{Code: -1003}, "")
	ra, ok := venue.RetryAfterOf(err)
	assert.True(t, ok)
	assert.Greater(t, ra.Seconds(), 0.0)
}
