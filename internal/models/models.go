package models

import "time"

// Side is a position direction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the reverse direction.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Signal is the categorical output of the classifier.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalNone  Signal = "NONE"
)

// Side converts an actionable signal into a position direction.
// Only meaningful for SignalLong and SignalShort.
func (s Signal) Side() Side {
	if s == SignalShort {
		return SideShort
	}
	return SideLong
}

// Candle is one OHLCV bar, immutable once fetched.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// IndicatorRow is a candle enriched with derived indicator values.
// Rows are only produced for candles past the warm-up window, so every
// field is always defined.
type IndicatorRow struct {
	Candle     Candle
	RSI        float64
	MACD       float64
	MACDSignal float64
	ATRShort   float64
	ATRLong    float64
	Score      float64
}

// Position is an open position as tracked locally. Owned by the position
// tracker; recorded only after the exchange confirms the entry order and
// removed only when reconciliation reports zero contracts.
type Position struct {
	ID         string
	Symbol     string
	Side       Side
	EntryPrice float64
	Size       float64
	TakeProfit float64
	StopLoss   float64
	OpenedAt   time.Time
}

// ReportedPosition is the exchange's view of one symbol, used for
// reconciliation. Contracts is always non-negative; direction is in Side.
type ReportedPosition struct {
	Symbol     string
	Side       Side
	Contracts  float64
	EntryPrice float64
}

// Balance is the account balance in quote currency.
type Balance struct {
	Total float64
	Free  float64
}

// TradeEntry is one append-only trade log row.
type TradeEntry struct {
	Time       time.Time
	Side       Side
	Symbol     string
	EntryPrice float64
	TakeProfit float64
	StopLoss   float64
}
