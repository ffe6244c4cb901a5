package gateway

import (
	"context"
	"errors"

	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/circuit"
)

// Guarded fails fast while an exchange keeps returning transient errors.
// Only transient failures trip the breaker; a bad symbol or empty range does not.
type Guarded struct {
	market.Source
	breaker *circuit.CircuitBreaker
}

func NewGuarded(src market.Source, breaker *circuit.CircuitBreaker) *Guarded {
	return &Guarded{Source: src, breaker: breaker}
}

func (g *Guarded) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	var bars []market.Bar
	err := g.breaker.Execute(func() error {
		var err error
		bars, err = g.Source.FetchBars(ctx, symbol, interval, since, limit)
		return market.ClassifyError(err)
	}, isTransient)
	if errors.Is(err, circuit.ErrOpen) {
		return nil, market.MarkTransient(err)
	}
	return bars, err
}

func (g *Guarded) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := g.breaker.Execute(func() error {
		var err error
		symbols, err = g.Source.ListSymbols(ctx)
		return market.ClassifyError(err)
	}, isTransient)
	if errors.Is(err, circuit.ErrOpen) {
		return nil, market.MarkTransient(err)
	}
	return symbols, err
}

// Breaker exposes the breaker state for health reporting.
func (g *Guarded) Breaker() circuit.State {
	return g.breaker.State()
}

func isTransient(err error) bool {
	return errors.Is(err, market.ErrTransient)
}
