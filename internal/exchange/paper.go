package exchange

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

// PaperClient simulates the account side of the exchange while delegating
// market data (candles, tickers, metadata) to a real client. It lets the
// full loop run without write calls reaching the exchange.
//
// TP/SL fills are not simulated; paper positions stay open until closed
// through ClosePosition.
type PaperClient struct {
	data Client

	mu        sync.Mutex
	balance   float64
	positions map[string]models.ReportedPosition
}

func NewPaperClient(initialBalance float64, data Client) *PaperClient {
	return &PaperClient{
		data:      data,
		balance:   initialBalance,
		positions: make(map[string]models.ReportedPosition),
	}
}

func (p *PaperClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return p.data.Candles(ctx, symbol, interval, limit)
}

func (p *PaperClient) Ticker(ctx context.Context, symbol string) (float64, error) {
	return p.data.Ticker(ctx, symbol)
}

func (p *PaperClient) ExchangeInfo(ctx context.Context) (map[string]SymbolInfo, error) {
	return p.data.ExchangeInfo(ctx)
}

func (p *PaperClient) Balance(ctx context.Context) (models.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.Balance{Total: p.balance, Free: p.balance}, nil
}

func (p *PaperClient) Positions(ctx context.Context) ([]models.ReportedPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ReportedPosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}

func (p *PaperClient) PlaceEntry(ctx context.Context, order EntryOrder) error {
	price, err := p.data.Ticker(ctx, order.Symbol)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.positions[order.Symbol]; ok {
		return fmt.Errorf("paper position already open on %s", order.Symbol)
	}
	p.positions[order.Symbol] = models.ReportedPosition{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Contracts:  order.Quantity,
		EntryPrice: price,
	}
	logger.Info("paper entry filled",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("qty", order.Quantity),
		zap.Float64("price", price))
	return nil
}

func (p *PaperClient) ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error {
	price, err := p.data.Ticker(ctx, symbol)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("no paper position on %s", symbol)
	}

	pnl := (price - pos.EntryPrice) * pos.Contracts
	if pos.Side == models.SideShort {
		pnl = -pnl
	}
	p.balance += pnl
	delete(p.positions, symbol)

	logger.Info("paper position closed",
		zap.String("symbol", symbol),
		zap.Float64("exit", price),
		zap.Float64("pnl", pnl),
		zap.Float64("balance", p.balance))
	return nil
}

func (p *PaperClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
