package symbol

// GateConverter maps BTC/USDT to BTC_USDT.
type GateConverter struct{}

func (GateConverter) ToExchange(internal string) string {
	sym := Parse(internal)
	if sym.Base == "" {
		return ""
	}
	return sym.Base + "_" + sym.Quote
}

func (GateConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (GateConverter) Format() Format {
	return FormatGate
}

var Gate = GateConverter{}
