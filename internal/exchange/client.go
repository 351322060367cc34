package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

// EntryOrder is a market entry with attached TP/SL targets. Quantity and
// prices must already be quantized to the symbol's steps.
type EntryOrder struct {
	Symbol     string
	Side       models.Side
	Quantity   float64
	TakeProfit float64
	StopLoss   float64
}

// SymbolInfo is the per-symbol market metadata loaded once at startup.
type SymbolInfo struct {
	QtyStep   float64
	MinQty    float64
	TickSize  float64
	Perpetual bool
}

// Client is the raw exchange contract. Calls may fail with network or
// exchange-side errors and do not retry internally; retrying is the
// gateway's job.
type Client interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	Balance(ctx context.Context) (models.Balance, error)
	Ticker(ctx context.Context, symbol string) (float64, error)
	Positions(ctx context.Context) ([]models.ReportedPosition, error)
	PlaceEntry(ctx context.Context, order EntryOrder) error
	ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	ExchangeInfo(ctx context.Context) (map[string]SymbolInfo, error)
}

// BinanceClient trades USDT-margined perpetuals on Binance futures.
type BinanceClient struct {
	client *futures.Client
}

func NewBinanceClient(apiKey, secretKey string, testnet bool) *BinanceClient {
	if testnet {
		futures.UseTestnet = true
	}
	return &BinanceClient{client: futures.NewClient(apiKey, secretKey)}
}

func (b *BinanceClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}

	candles := make([]models.Candle, len(klines))
	for i, k := range klines {
		candles[i] = models.Candle{
			OpenTime: time.Unix(k.OpenTime/1000, 0),
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		}
	}
	return candles, nil
}

func (b *BinanceClient) Balance(ctx context.Context) (models.Balance, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return models.Balance{}, fmt.Errorf("fetch account: %w", err)
	}
	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			return models.Balance{
				Total: parseFloat(asset.WalletBalance),
				Free:  parseFloat(asset.AvailableBalance),
			}, nil
		}
	}
	return models.Balance{}, nil
}

func (b *BinanceClient) Ticker(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

func (b *BinanceClient) Positions(ctx context.Context) ([]models.ReportedPosition, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	var out []models.ReportedPosition
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := models.SideLong
		if amt < 0 {
			side = models.SideShort
			amt = -amt
		}
		out = append(out, models.ReportedPosition{
			Symbol:     r.Symbol,
			Side:       side,
			Contracts:  amt,
			EntryPrice: parseFloat(r.EntryPrice),
		})
	}
	return out, nil
}

// PlaceEntry sends the market entry, then attaches close-position TP and
// SL trigger orders on the opposite side. The entry is the critical
// write: if it fails nothing else is sent. A TP/SL attach failure is
// reported even though the entry has already filled; reconciliation
// picks the position up on the next cycle.
func (b *BinanceClient) PlaceEntry(ctx context.Context, order EntryOrder) error {
	entrySide, exitSide := orderSides(order.Side)

	_, err := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(entrySide).
		Type(futures.OrderTypeMarket).
		Quantity(formatFloat(order.Quantity)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("market entry %s: %w", order.Symbol, err)
	}

	_, err = b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(exitSide).
		Type(futures.OrderTypeTakeProfitMarket).
		StopPrice(formatFloat(order.TakeProfit)).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("attach take-profit %s (entry filled): %w", order.Symbol, err)
	}

	_, err = b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(exitSide).
		Type(futures.OrderTypeStopMarket).
		StopPrice(formatFloat(order.StopLoss)).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("attach stop-loss %s (entry filled): %w", order.Symbol, err)
	}
	return nil
}

func (b *BinanceClient) ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error {
	_, exitSide := orderSides(side)
	_, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(exitSide).
		Type(futures.OrderTypeMarket).
		Quantity(formatFloat(quantity)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	return nil
}

func (b *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("set leverage %s: %w", symbol, err)
	}
	return nil
}

func (b *BinanceClient) ExchangeInfo(ctx context.Context) (map[string]SymbolInfo, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}

	out := make(map[string]SymbolInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != "USDT" || s.Status != "TRADING" {
			continue
		}
		si := SymbolInfo{Perpetual: s.ContractType == "PERPETUAL"}
		if lot := s.LotSizeFilter(); lot != nil {
			si.QtyStep = parseFloat(lot.StepSize)
			si.MinQty = parseFloat(lot.MinQuantity)
		}
		if pf := s.PriceFilter(); pf != nil {
			si.TickSize = parseFloat(pf.TickSize)
		}
		out[s.Symbol] = si
	}
	return out, nil
}

func orderSides(side models.Side) (entry, exit futures.SideType) {
	if side == models.SideLong {
		return futures.SideTypeBuy, futures.SideTypeSell
	}
	return futures.SideTypeSell, futures.SideTypeBuy
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
