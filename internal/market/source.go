package market

import "context"

// Capability names a Source may advertise.
const (
	CapFetchOHLCV  = "fetchOHLCV"
	CapListSymbols = "listSymbols"
)

// Source is the exchange-client capability the acquisition pipeline consumes.
// Symbols are passed and returned in the internal BASE/QUOTE form.
type Source interface {
	Name() string

	// FetchBars returns up to limit bars opening at or after since (Unix ms).
	FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]Bar, error)

	HasCapability(name string) bool

	ListSymbols(ctx context.Context) ([]string, error)

	// MaxLimit is the largest bar count a single FetchBars call may request; 0 means unknown.
	MaxLimit() int
}
