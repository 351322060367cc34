package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

// ErrOrderStateUnknown marks a write call that failed after the request
// may have reached the exchange. The caller must not assume the order is
// absent; next cycle's reconciliation is the authoritative backstop.
var ErrOrderStateUnknown = errors.New("order state unknown")

// GatewayConfig bounds the retry behavior.
type GatewayConfig struct {
	Attempts int
	WaitMin  time.Duration
	WaitMax  time.Duration
}

// Gateway wraps a Client with bounded, jitter-backoff retries for read
// calls. Write calls (order placement, position close) are sent exactly
// once: they are not idempotent, and a blind retry could double an entry.
type Gateway struct {
	client   Client
	attempts int
	waitMin  time.Duration
	waitMax  time.Duration
	info     map[string]SymbolInfo

	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(client Client, cfg GatewayConfig) *Gateway {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Gateway{
		client:   client,
		attempts: cfg.Attempts,
		waitMin:  cfg.WaitMin,
		waitMax:  cfg.WaitMax,
		sleep:    sleepCtx,
	}
}

// Init loads market metadata once and sets leverage per symbol,
// validating that every configured symbol is a tradable USDT perpetual.
// Separate from per-cycle calls; fatal-path errors belong to startup.
func (g *Gateway) Init(ctx context.Context, symbols []string, leverage int) error {
	info, err := retry(ctx, g, "exchange_info", "", func() (map[string]SymbolInfo, error) {
		return g.client.ExchangeInfo(ctx)
	})
	if err != nil {
		return err
	}
	g.info = info

	for _, symbol := range symbols {
		si, ok := info[symbol]
		if !ok {
			return fmt.Errorf("symbol %s is not tradable on this market", symbol)
		}
		if !si.Perpetual {
			return fmt.Errorf("symbol %s is not a linear perpetual", symbol)
		}
		// Idempotent, safe to retry.
		_, err := retry(ctx, g, "set_leverage", symbol, func() (struct{}, error) {
			return struct{}{}, g.client.SetLeverage(ctx, symbol, leverage)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SymbolInfo returns the metadata loaded by Init.
func (g *Gateway) SymbolInfo(symbol string) (SymbolInfo, bool) {
	si, ok := g.info[symbol]
	return si, ok
}

func (g *Gateway) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return retry(ctx, g, "fetch_candles", symbol, func() ([]models.Candle, error) {
		return g.client.Candles(ctx, symbol, interval, limit)
	})
}

func (g *Gateway) Balance(ctx context.Context) (models.Balance, error) {
	return retry(ctx, g, "fetch_balance", "", func() (models.Balance, error) {
		return g.client.Balance(ctx)
	})
}

func (g *Gateway) Ticker(ctx context.Context, symbol string) (float64, error) {
	return retry(ctx, g, "fetch_ticker", symbol, func() (float64, error) {
		return g.client.Ticker(ctx, symbol)
	})
}

func (g *Gateway) Positions(ctx context.Context) ([]models.ReportedPosition, error) {
	return retry(ctx, g, "fetch_positions", "", func() ([]models.ReportedPosition, error) {
		return g.client.Positions(ctx)
	})
}

// PlaceEntry sends the entry exactly once. On failure the true order
// state is unknowable from here, so the error wraps
// ErrOrderStateUnknown and the caller must leave local state untouched.
func (g *Gateway) PlaceEntry(ctx context.Context, order EntryOrder) error {
	if err := g.client.PlaceEntry(ctx, order); err != nil {
		logger.Error("order placement failed",
			zap.String("op", "place_entry"),
			zap.String("symbol", order.Symbol),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrOrderStateUnknown, err)
	}
	return nil
}

// ClosePosition sends a reduce-only market close exactly once.
func (g *Gateway) ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error {
	if err := g.client.ClosePosition(ctx, symbol, side, quantity); err != nil {
		logger.Error("position close failed",
			zap.String("op", "close_position"),
			zap.String("symbol", symbol),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrOrderStateUnknown, err)
	}
	return nil
}

// retry runs fn up to g.attempts times, sleeping a randomized duration
// drawn from [waitMin, waitMax] between attempts.
func retry[T any](ctx context.Context, g *Gateway, op, symbol string, fn func() (T, error)) (T, error) {
	var zero T
	b := &backoff.Backoff{
		Min:    g.waitMin,
		Max:    g.waitMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		logger.Warn("exchange call failed",
			zap.String("op", op),
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.attempts),
			zap.Error(err))
		if attempt == g.attempts {
			break
		}
		if err := g.sleep(ctx, b.Duration()); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s %s: %d attempts exhausted: %w", op, symbol, g.attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
