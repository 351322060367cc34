package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/config"
	"github.com/stevejoo1637/quant-momentum-bot/internal/exchange"
	"github.com/stevejoo1637/quant-momentum-bot/internal/indicator"
	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
	"github.com/stevejoo1637/quant-momentum-bot/internal/position"
	"github.com/stevejoo1637/quant-momentum-bot/internal/risk"
	"github.com/stevejoo1637/quant-momentum-bot/internal/strategy"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

// Gateway is the slice of the execution gateway the scheduler needs.
type Gateway interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	Balance(ctx context.Context) (models.Balance, error)
	Ticker(ctx context.Context, symbol string) (float64, error)
	Positions(ctx context.Context) ([]models.ReportedPosition, error)
	PlaceEntry(ctx context.Context, order exchange.EntryOrder) error
	ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error
	SymbolInfo(symbol string) (exchange.SymbolInfo, bool)
}

// TradeLog receives one row per executed entry.
type TradeLog interface {
	Append(models.TradeEntry) error
}

// Notifier is told about position opens and closes. Optional.
type Notifier interface {
	TradeOpened(*models.Position)
	TradeClosed(*models.Position)
}

// Engine drives one evaluation cycle per symbol per interval:
// reconcile, then per symbol fetch → enrich → classify → gate → size →
// execute → record → log. Symbols are processed sequentially; exposure
// stays bounded by the slot count by construction.
type Engine struct {
	cfg        *config.Config
	gw         Gateway
	tracker    *position.Tracker
	classifier *strategy.Classifier
	sizer      *risk.Sizer
	params     indicator.Params
	tradeLog   TradeLog
	notifier   Notifier
}

func New(cfg *config.Config, gw Gateway, tracker *position.Tracker, tradeLog TradeLog) *Engine {
	return &Engine{
		cfg:        cfg,
		gw:         gw,
		tracker:    tracker,
		classifier: strategy.New(strategy.DefaultThresholds()),
		sizer:      risk.NewSizer(cfg.BaseTakeProfit, cfg.BaseStopLoss, cfg.SlotFraction()),
		params:     indicator.DefaultParams(),
		tradeLog:   tradeLog,
	}
}

// SetNotifier attaches an optional trade notifier.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Run executes cycles until the context is cancelled. A failed cycle is
// logged and followed by the short recovery sleep; the loop itself never
// terminates on a cycle error.
func (e *Engine) Run(ctx context.Context) {
	logger.Info("scheduler started",
		zap.Strings("symbols", e.cfg.Symbols),
		zap.String("timeframe", e.cfg.Timeframe),
		zap.Duration("interval", e.cfg.CycleInterval),
		zap.Int("max_slots", e.cfg.MaxSlots))

	for {
		err := e.RunCycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Error("cycle failed", zap.Error(err))
			if !e.wait(ctx, e.cfg.RecoverySleep) {
				break
			}
			continue
		}
		if !e.wait(ctx, e.cfg.CycleInterval) {
			break
		}
	}
	logger.Info("scheduler stopped")
}

// RunCycle performs one full evaluation pass. Reconciliation runs first:
// local position state can silently diverge from the exchange (TP/SL
// fills, manual closes, lost order acks), and every eligibility decision
// below depends on it.
func (e *Engine) RunCycle(ctx context.Context) error {
	reported, err := e.gw.Positions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, pos := range e.tracker.Reconcile(reported) {
		if e.notifier != nil {
			e.notifier.TradeClosed(pos)
		}
	}

	balance, err := e.gw.Balance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	logger.Info("cycle start",
		zap.Float64("balance_total", balance.Total),
		zap.Float64("balance_free", balance.Free),
		zap.Int("open_positions", e.tracker.OpenCount()))

	refATR := e.referenceATR(ctx)

	for _, symbol := range e.cfg.Symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Nothing actionable for a slotless symbol with no open position.
		if e.tracker.OpenCount() >= e.cfg.MaxSlots {
			if _, ok := e.tracker.Get(symbol); !ok {
				continue
			}
		}

		if err := e.evaluateSymbol(ctx, symbol, balance, refATR); err != nil {
			// Data and read errors degrade to skipping the symbol for
			// this cycle; they never take the loop down.
			logger.Warn("symbol skipped",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string, balance models.Balance, refATR float64) error {
	candles, err := e.gw.Candles(ctx, symbol, e.cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		return err
	}

	rows, err := indicator.Enrich(candles, e.params)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", symbol, err)
	}

	sig := e.classifier.ClassifySeries(rows)
	if sig == models.SignalNone {
		return nil
	}
	side := sig.Side()
	last := rows[len(rows)-1]
	logger.Info("signal",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("rsi", last.RSI),
		zap.Float64("macd", last.MACD),
		zap.Float64("macd_signal", last.MACDSignal),
		zap.Float64("score", last.Score))

	if pos, ok := e.tracker.Get(symbol); ok {
		if pos.Side == side {
			logger.Debug("duplicate signal ignored", zap.String("symbol", symbol))
			return nil
		}
		if !e.cfg.ReverseOnOpposite {
			logger.Debug("opposite signal ignored, reversal disabled",
				zap.String("symbol", symbol))
			return nil
		}
		// Explicit two-step reversal: the close must succeed before a
		// new entry is considered.
		if err := e.gw.ClosePosition(ctx, symbol, pos.Side, pos.Size); err != nil {
			return fmt.Errorf("reversal close %s: %w", symbol, err)
		}
		if closed := e.tracker.RecordClose(symbol); closed != nil && e.notifier != nil {
			e.notifier.TradeClosed(closed)
		}
	}

	if !e.tracker.CanOpen(symbol, side) {
		logger.Debug("no slot available", zap.String("symbol", symbol))
		return nil
	}
	return e.openPosition(ctx, symbol, side, last, balance, refATR)
}

func (e *Engine) openPosition(ctx context.Context, symbol string, side models.Side, last models.IndicatorRow, balance models.Balance, refATR float64) error {
	price, err := e.gw.Ticker(ctx, symbol)
	if err != nil {
		return err
	}

	size, err := e.sizer.Size(balance.Free, price)
	if err != nil {
		return fmt.Errorf("size %s: %w", symbol, err)
	}

	si, _ := e.gw.SymbolInfo(symbol)
	qty := risk.QuantizeQty(size, si.QtyStep)
	if qty <= 0 || qty < si.MinQty {
		logger.Warn("allocation below minimum quantity",
			zap.String("symbol", symbol),
			zap.Float64("size", size),
			zap.Float64("min_qty", si.MinQty))
		return nil
	}

	scale := risk.VolatilityScale(last.ATRShort, refATR)
	tp, sl, err := e.sizer.Levels(side, price, scale)
	if err != nil {
		return fmt.Errorf("levels %s: %w", symbol, err)
	}
	tp = risk.QuantizePrice(tp, si.TickSize)
	sl = risk.QuantizePrice(sl, si.TickSize)

	order := exchange.EntryOrder{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		TakeProfit: tp,
		StopLoss:   sl,
	}
	if err := e.gw.PlaceEntry(ctx, order); err != nil {
		if errors.Is(err, exchange.ErrOrderStateUnknown) {
			// The order may have landed. Record nothing; next cycle's
			// reconciliation adopts it if it did.
			logger.Error("entry state unknown, deferring to reconciliation",
				zap.String("symbol", symbol),
				zap.Error(err))
			return nil
		}
		return err
	}

	pos := position.NewPosition(symbol, side, price, qty, tp, sl)
	if !e.tracker.Open(pos) {
		logger.Warn("slot taken after placement, adopting via reconcile",
			zap.String("symbol", symbol))
		return nil
	}

	if err := e.tradeLog.Append(models.TradeEntry{
		Time:       pos.OpenedAt,
		Side:       side,
		Symbol:     symbol,
		EntryPrice: price,
		TakeProfit: tp,
		StopLoss:   sl,
	}); err != nil {
		logger.Error("trade log append failed",
			zap.String("symbol", symbol),
			zap.Error(err))
	}

	if e.notifier != nil {
		e.notifier.TradeOpened(pos)
	}
	return nil
}

// referenceATR fetches the short ATR of the reference symbol for
// volatility-adaptive sizing. Zero (fixed-risk fallback) when disabled
// or unavailable this cycle.
func (e *Engine) referenceATR(ctx context.Context) float64 {
	if e.cfg.ReferenceSymbol == "" {
		return 0
	}
	candles, err := e.gw.Candles(ctx, e.cfg.ReferenceSymbol, e.cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		logger.Warn("reference candles unavailable, using fixed risk",
			zap.String("symbol", e.cfg.ReferenceSymbol),
			zap.Error(err))
		return 0
	}
	rows, err := indicator.Enrich(candles, e.params)
	if err != nil {
		logger.Warn("reference enrich failed, using fixed risk",
			zap.String("symbol", e.cfg.ReferenceSymbol),
			zap.Error(err))
		return 0
	}
	return rows[len(rows)-1].ATRShort
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
