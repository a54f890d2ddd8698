package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormats(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USD"}, Parse("btc-usd"))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "USDT"}, Parse("ETH/USDT:USDT"))
	assert.Equal(t, Symbol{Base: "SOL", Quote: "USDT"}, Parse("SOLUSDT"))
	assert.Equal(t, Symbol{}, Parse(""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ARB-USD", Normalize(" arb-usd "))
	assert.Equal(t, "AVAX-USDT", Normalize("AVAXUSDT"))
	assert.Equal(t, "FOO", Normalize("foo"))
}

func TestBinanceMapping(t *testing.T) {
	m := BinanceMapping([]string{"BTC-USD", "ETH-USDT", "bogus"})
	assert.Equal(t, map[string]string{"BTCUSDT": "BTC-USD", "ETHUSDT": "ETH-USDT"}, m)
}
