package symbol

// BinanceMapping 建立 合约代码 -> 竞技场代码 的映射，用于过滤批量行情。
func BinanceMapping(symbols []string) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, s := range symbols {
		sym := Parse(s)
		if code := sym.Binance(); code != "" {
			out[code] = sym.Arena()
		}
	}
	return out
}
