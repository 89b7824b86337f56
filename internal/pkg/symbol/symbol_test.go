package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC/USDT", "BTC/USDT"},
		{"btc/usdt", "BTC/USDT"},
		{"BTC_USDT", "BTC/USDT"},
		{"BTCUSDT", "BTC/USDT"},
		{"ETH/USDT:USDT", "ETH/USDT"},
		{"solusdt", "SOL/USDT"},
		{"  BNB/BTC  ", "BNB/BTC"},
		{"", ""},
		{"XYZ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTC/USDT"))
	assert.True(t, IsValid("BTCUSDT"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("NOTASYMBOL"))
}

func TestNormalizeListDeduplicates(t *testing.T) {
	got := NormalizeList([]string{"BTC/USDT", "BTCUSDT", "btc_usdt", "ETH/USDT", ""})
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, got)
}

func TestBinanceConverter(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToVenue("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", Binance.FromVenue("BTCUSDT"))
	assert.Equal(t, FormatBinance, Binance.Format())
}

func TestGateConverter(t *testing.T) {
	assert.Equal(t, "BTC_USDT", Gate.ToVenue("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", Gate.FromVenue("BTC_USDT"))
	assert.Equal(t, "BTC/USDT", Gate.FromVenue("btc/usdt"))
	assert.Equal(t, FormatGate, Gate.Format())
}
