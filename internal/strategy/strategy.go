package strategy

import "github.com/stevejoo1637/quant-momentum-bot/internal/models"

// Thresholds configure the classifier rules.
type Thresholds struct {
	RSILong  float64 // long only below this
	RSIShort float64 // short only above this
	MinScore float64 // minimum absolute candle-body score
}

// DefaultThresholds is the 40/60 RSI band with a ±5 body score.
func DefaultThresholds() Thresholds {
	return Thresholds{RSILong: 40, RSIShort: 60, MinScore: 5}
}

// Classifier turns the two most recent indicator rows of one symbol into
// a directional signal. Stateless; evaluated independently every cycle.
type Classifier struct {
	t Thresholds
}

func New(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Classify applies the threshold-and-crossover rules:
// long = oversold RSI, bullish MACD crossover on this candle, strong
// bullish body; short is the mirror. Anything else is NONE.
func (c *Classifier) Classify(prev, last models.IndicatorRow) models.Signal {
	crossedUp := prev.MACD < prev.MACDSignal && last.MACD > last.MACDSignal
	crossedDown := prev.MACD > prev.MACDSignal && last.MACD < last.MACDSignal

	if last.RSI < c.t.RSILong && crossedUp && last.Score >= c.t.MinScore {
		return models.SignalLong
	}
	if last.RSI > c.t.RSIShort && crossedDown && last.Score <= -c.t.MinScore {
		return models.SignalShort
	}
	return models.SignalNone
}

// ClassifySeries classifies the tail of an enriched series, returning
// NONE when fewer than two rows exist.
func (c *Classifier) ClassifySeries(rows []models.IndicatorRow) models.Signal {
	if len(rows) < 2 {
		return models.SignalNone
	}
	return c.Classify(rows[len(rows)-2], rows[len(rows)-1])
}
