package symbol

import (
	"strings"
)

// Symbol 拆分后的交易对。竞技场内部统一使用 BASE-QUOTE 形式，例如 BTC-USD。
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Arena() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "-" + s.Quote
}

// Binance 返回 USDⓈ-M 合约代码，USD 计价映射到 USDT。
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	quote := s.Quote
	if quote == "USD" {
		quote = "USDT"
	}
	return s.Base + quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "USD", "BTC", "ETH"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"-", "/"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{
				Base:  strings.TrimSpace(parts[0]),
				Quote: strings.TrimSpace(parts[1]),
			}
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize 统一成 BASE-QUOTE；无法识别时原样大写返回。
func Normalize(s string) string {
	if out := Parse(s).Arena(); out != "" {
		return out
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
