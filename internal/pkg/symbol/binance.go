package symbol

import "strings"

// BinanceConverter maps BTC/USDT to BTCUSDT.
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(internal string) string {
	if sym := Parse(internal); sym.Base != "" {
		return sym.Base + sym.Quote
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(internal)), "/", "")
}

// FromExchange prefers the exchange's own base/quote split when it is known.
func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (BinanceConverter) FromParts(base, quote string) string {
	return Symbol{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}.Internal()
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance = BinanceConverter{}
