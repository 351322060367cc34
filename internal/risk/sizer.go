package risk

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

// volatilityExponent dampens the ATR ratio sub-linearly so outlier
// instruments do not blow stops and targets out linearly.
const volatilityExponent = 0.6

var (
	ErrInvalidPrice   = errors.New("price must be positive")
	ErrInvalidBalance = errors.New("balance must be positive")
)

// Sizer computes order size and TP/SL levels from the account balance,
// the per-slot allocation fraction and the base target percentages.
type Sizer struct {
	BaseTakeProfit float64 // e.g. 0.025
	BaseStopLoss   float64 // e.g. 0.015
	SlotFraction   float64 // e.g. 1/MAX_SLOTS
}

func NewSizer(baseTP, baseSL, slotFraction float64) *Sizer {
	return &Sizer{BaseTakeProfit: baseTP, BaseStopLoss: baseSL, SlotFraction: slotFraction}
}

// Quote is the quote-currency allocation for one slot.
func (s *Sizer) Quote(balance float64) float64 {
	return balance * s.SlotFraction
}

// Size converts the slot allocation into a base-asset order size.
func (s *Sizer) Size(balance, price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) {
		return 0, ErrInvalidPrice
	}
	if balance <= 0 || math.IsNaN(balance) {
		return 0, ErrInvalidBalance
	}
	return s.Quote(balance) / price, nil
}

// VolatilityScale returns (symbolATR/referenceATR)^0.6, the factor TP and
// SL percentages are widened by for a relatively more volatile symbol.
// Non-positive or undefined inputs fall back to 1.0 (fixed-risk mode).
func VolatilityScale(symbolATR, referenceATR float64) float64 {
	if symbolATR <= 0 || referenceATR <= 0 ||
		math.IsNaN(symbolATR) || math.IsNaN(referenceATR) {
		return 1.0
	}
	return math.Pow(symbolATR/referenceATR, volatilityExponent)
}

// Levels computes take-profit and stop-loss prices for an entry at price,
// with TP/SL percentages scaled by the volatility factor.
func (s *Sizer) Levels(side models.Side, price, scale float64) (tp, sl float64, err error) {
	if price <= 0 || math.IsNaN(price) {
		return 0, 0, ErrInvalidPrice
	}
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1.0
	}
	tpPct := s.BaseTakeProfit * scale
	slPct := s.BaseStopLoss * scale
	if side == models.SideLong {
		return price * (1 + tpPct), price * (1 - slPct), nil
	}
	return price * (1 - tpPct), price * (1 + slPct), nil
}

// QuantizeQty rounds a quantity down to the exchange's lot step. A zero
// step leaves the quantity untouched.
func QuantizeQty(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	st := decimal.NewFromFloat(step)
	out, _ := q.Div(st).Floor().Mul(st).Float64()
	return out
}

// QuantizePrice rounds a price to the exchange tick size, toward the
// nearest tick. A zero tick leaves the price untouched.
func QuantizePrice(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	out, _ := p.Div(t).Round(0).Mul(t).Float64()
	return out
}
