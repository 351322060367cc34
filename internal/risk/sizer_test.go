package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

func defaultSizer() *Sizer {
	return NewSizer(0.025, 0.015, 1.0/3.0)
}

func TestQuote(t *testing.T) {
	s := defaultSizer()
	assert.InDelta(t, 1000.0, s.Quote(3000), 1e-9)
}

func TestSize(t *testing.T) {
	s := defaultSizer()

	size, err := s.Size(3000, 50)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, size, 1e-9)
}

func TestSizeRejectsBadInputs(t *testing.T) {
	s := defaultSizer()

	_, err := s.Size(3000, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = s.Size(3000, -1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = s.Size(3000, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = s.Size(0, 50)
	assert.ErrorIs(t, err, ErrInvalidBalance)
	_, err = s.Size(-100, 50)
	assert.ErrorIs(t, err, ErrInvalidBalance)
}

func TestVolatilityScale(t *testing.T) {
	// ATR ratio of 2 dampened by the 0.6 exponent.
	assert.InDelta(t, math.Pow(2, 0.6), VolatilityScale(40, 20), 1e-9)
	assert.InDelta(t, 1.0, VolatilityScale(20, 20), 1e-9)
	assert.InDelta(t, math.Pow(0.5, 0.6), VolatilityScale(10, 20), 1e-9)
}

func TestVolatilityScaleFallback(t *testing.T) {
	assert.Equal(t, 1.0, VolatilityScale(0, 20))
	assert.Equal(t, 1.0, VolatilityScale(40, 0))
	assert.Equal(t, 1.0, VolatilityScale(-1, 20))
	assert.Equal(t, 1.0, VolatilityScale(math.NaN(), 20))
	assert.Equal(t, 1.0, VolatilityScale(40, math.NaN()))
}

func TestLevelsLong(t *testing.T) {
	s := defaultSizer()

	tp, sl, err := s.Levels(models.SideLong, 100, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 102.5, tp, 1e-9)
	assert.InDelta(t, 98.5, sl, 1e-9)
}

func TestLevelsShort(t *testing.T) {
	s := defaultSizer()

	tp, sl, err := s.Levels(models.SideShort, 100, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 97.5, tp, 1e-9)
	assert.InDelta(t, 101.5, sl, 1e-9)
}

func TestLevelsScaled(t *testing.T) {
	s := defaultSizer()

	// Twice the reference ATR widens both targets by 2^0.6.
	scale := VolatilityScale(40, 20)
	tp, sl, err := s.Levels(models.SideLong, 100, scale)
	require.NoError(t, err)
	assert.InDelta(t, 100*(1+0.025*scale), tp, 1e-9)
	assert.InDelta(t, 100*(1-0.015*scale), sl, 1e-9)
	assert.Greater(t, tp, 102.5)
	assert.Less(t, sl, 98.5)
}

func TestLevelsInvalidScaleFallsBack(t *testing.T) {
	s := defaultSizer()

	tp, sl, err := s.Levels(models.SideLong, 100, 0)
	require.NoError(t, err)
	assert.InDelta(t, 102.5, tp, 1e-9)
	assert.InDelta(t, 98.5, sl, 1e-9)
}

func TestLevelsRejectsBadPrice(t *testing.T) {
	s := defaultSizer()
	_, _, err := s.Levels(models.SideLong, -5, 1.0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestQuantizeQty(t *testing.T) {
	// Always rounds down, never above the allocation.
	assert.InDelta(t, 0.123, QuantizeQty(0.12345, 0.001), 1e-12)
	assert.InDelta(t, 4.5, QuantizeQty(4.566, 0.5), 1e-12)
	assert.InDelta(t, 0.0, QuantizeQty(0.0009, 0.001), 1e-12)
	assert.InDelta(t, 7.0, QuantizeQty(7.0, 0.001), 1e-12)

	// Zero step is a pass-through.
	assert.Equal(t, 0.12345, QuantizeQty(0.12345, 0))
}

func TestQuantizePrice(t *testing.T) {
	assert.InDelta(t, 102.48, QuantizePrice(102.4751, 0.01), 1e-12)
	assert.InDelta(t, 102.47, QuantizePrice(102.474, 0.01), 1e-12)
	assert.Equal(t, 102.4751, QuantizePrice(102.4751, 0))
}
