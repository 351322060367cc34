package indicator

import (
	"errors"
	"math"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

// ErrInsufficientHistory is returned when a candle window is too short to
// produce at least two fully warmed-up rows.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// scoreEpsilon keeps the candle-body score finite on zero-range candles.
const scoreEpsilon = 1e-9

// Params configures the indicator periods.
type Params struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRShort   int
	ATRLong    int
}

// DefaultParams returns the standard 14 / 12-26-9 / 20-60 setup.
func DefaultParams() Params {
	return Params{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRShort:   20,
		ATRLong:    60,
	}
}

// WarmUp is the number of leading candles whose indicator values are
// undefined and must never reach the classifier.
func (p Params) WarmUp() int {
	w := p.RSIPeriod
	if p.MACDSlow > w {
		w = p.MACDSlow
	}
	if p.ATRLong > w {
		w = p.ATRLong
	}
	return w
}

// Enrich derives RSI, MACD (+signal), short/long ATR and the candle-body
// score for an oldest-first candle window, dropping the warm-up rows.
// Pure: no state is carried between calls; everything is recomputed from
// the window it is given.
func Enrich(candles []models.Candle, p Params) ([]models.IndicatorRow, error) {
	warmUp := p.WarmUp()
	if len(candles) < warmUp+2 {
		return nil, ErrInsufficientHistory
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := rsiSeries(closes, p.RSIPeriod)
	macd, signal := macdSeries(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	atrShort := atrSeries(candles, p.ATRShort)
	atrLong := atrSeries(candles, p.ATRLong)

	rows := make([]models.IndicatorRow, 0, len(candles)-warmUp)
	for i := warmUp; i < len(candles); i++ {
		rows = append(rows, models.IndicatorRow{
			Candle:     candles[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			ATRShort:   atrShort[i],
			ATRLong:    atrLong[i],
			Score:      Score(candles[i]),
		})
	}
	return rows, nil
}

// Score is the normalized candle-body score: body over range, scaled to
// roughly [-10, 10]. The epsilon in the divisor means the bound is soft on
// near-zero-range candles; callers must not assume a hard limit.
func Score(c models.Candle) float64 {
	return (c.Close - c.Open) / (c.High - c.Low + scoreEpsilon) * 10
}

// rsiSeries computes RSI over simple rolling means of per-step gains and
// losses (not Wilder's smoothing). Values before index period are zero and
// fall inside the warm-up window. When the window holds no losses the
// ratio is undefined; the documented policy is to clamp to 100 rather than
// propagate NaN.
func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := period; i < len(closes); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			change := closes[j] - closes[j-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// emaSeries is the standard recursive EMA seeded with the first value,
// no bias adjustment.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// macdSeries returns the MACD line (EMA fast − EMA slow) and its signal
// line (EMA of the MACD line). Each point depends only on closes[0..i].
func macdSeries(closes []float64, fast, slow, signalPeriod int) (macd, signal []float64) {
	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal = emaSeries(macd, signalPeriod)
	return macd, signal
}

// atrSeries is a simple rolling mean of true range. tr[0] degrades to
// high−low since there is no previous close; it can only influence values
// inside the warm-up window.
func atrSeries(candles []models.Candle, period int) []float64 {
	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}

	out := make([]float64, len(candles))
	var sum float64
	for i := range tr {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
			out[i] = sum / float64(period)
		}
	}
	return out
}
