package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

var errNetwork = errors.New("connection reset")

// scriptedClient fails a configured number of times per call site before
// succeeding, and counts every attempt.
type scriptedClient struct {
	candleFails   int
	candleCalls   int
	placeFails    int
	placeCalls    int
	closeFails    int
	closeCalls    int
	leverageCalls int
	info          map[string]SymbolInfo
}

func (s *scriptedClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	s.candleCalls++
	if s.candleCalls <= s.candleFails {
		return nil, errNetwork
	}
	return []models.Candle{{Close: 100}}, nil
}

func (s *scriptedClient) Balance(ctx context.Context) (models.Balance, error) {
	return models.Balance{Total: 5000, Free: 5000}, nil
}

func (s *scriptedClient) Ticker(ctx context.Context, symbol string) (float64, error) {
	return 100, nil
}

func (s *scriptedClient) Positions(ctx context.Context) ([]models.ReportedPosition, error) {
	return nil, nil
}

func (s *scriptedClient) PlaceEntry(ctx context.Context, order EntryOrder) error {
	s.placeCalls++
	if s.placeCalls <= s.placeFails {
		return errNetwork
	}
	return nil
}

func (s *scriptedClient) ClosePosition(ctx context.Context, symbol string, side models.Side, quantity float64) error {
	s.closeCalls++
	if s.closeCalls <= s.closeFails {
		return errNetwork
	}
	return nil
}

func (s *scriptedClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	s.leverageCalls++
	return nil
}

func (s *scriptedClient) ExchangeInfo(ctx context.Context) (map[string]SymbolInfo, error) {
	if s.info != nil {
		return s.info, nil
	}
	return map[string]SymbolInfo{}, nil
}

func newTestGateway(client Client, attempts int) (*Gateway, *int) {
	g := NewGateway(client, GatewayConfig{
		Attempts: attempts,
		WaitMin:  time.Millisecond,
		WaitMax:  5 * time.Millisecond,
	})
	sleeps := 0
	g.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	return g, &sleeps
}

func TestReadRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{candleFails: 2}
	g, sleeps := newTestGateway(client, 3)

	candles, err := g.Candles(context.Background(), "BTCUSDT", "1h", 200)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
	assert.Equal(t, 3, client.candleCalls)
	assert.Equal(t, 2, *sleeps, "two failures mean exactly two backoff sleeps")
}

func TestReadExhaustsAttempts(t *testing.T) {
	client := &scriptedClient{candleFails: 10}
	g, sleeps := newTestGateway(client, 3)

	_, err := g.Candles(context.Background(), "BTCUSDT", "1h", 200)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNetwork)
	assert.Contains(t, err.Error(), "3 attempts exhausted")
	assert.Equal(t, 3, client.candleCalls)
	// No sleep after the final attempt.
	assert.Equal(t, 2, *sleeps)
}

func TestReadStopsOnCancelledContext(t *testing.T) {
	client := &scriptedClient{candleFails: 10}
	g, _ := newTestGateway(client, 5)
	g.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Candles(ctx, "BTCUSDT", "1h", 200)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.candleCalls)
}

func TestPlaceEntryNeverRetries(t *testing.T) {
	client := &scriptedClient{placeFails: 10}
	g, sleeps := newTestGateway(client, 3)

	err := g.PlaceEntry(context.Background(), EntryOrder{
		Symbol: "BTCUSDT", Side: models.SideLong, Quantity: 0.1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderStateUnknown)
	assert.Equal(t, 1, client.placeCalls, "writes are sent exactly once")
	assert.Equal(t, 0, *sleeps)
}

func TestPlaceEntrySuccess(t *testing.T) {
	client := &scriptedClient{}
	g, _ := newTestGateway(client, 3)

	err := g.PlaceEntry(context.Background(), EntryOrder{
		Symbol: "BTCUSDT", Side: models.SideLong, Quantity: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, client.placeCalls)
}

func TestClosePositionNeverRetries(t *testing.T) {
	client := &scriptedClient{closeFails: 10}
	g, _ := newTestGateway(client, 3)

	err := g.ClosePosition(context.Background(), "BTCUSDT", models.SideLong, 0.1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderStateUnknown)
	assert.Equal(t, 1, client.closeCalls)
}

func TestInitValidatesSymbols(t *testing.T) {
	client := &scriptedClient{info: map[string]SymbolInfo{
		"BTCUSDT": {QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1, Perpetual: true},
	}}
	g, _ := newTestGateway(client, 3)

	err := g.Init(context.Background(), []string{"BTCUSDT", "DOGEUSDT"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGEUSDT")
}

func TestInitRejectsNonPerpetual(t *testing.T) {
	client := &scriptedClient{info: map[string]SymbolInfo{
		"BTCUSDT": {QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1, Perpetual: false},
	}}
	g, _ := newTestGateway(client, 3)

	err := g.Init(context.Background(), []string{"BTCUSDT"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a linear perpetual")
}

func TestInitLoadsInfoAndSetsLeverage(t *testing.T) {
	client := &scriptedClient{info: map[string]SymbolInfo{
		"BTCUSDT": {QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1, Perpetual: true},
		"ETHUSDT": {QtyStep: 0.01, MinQty: 0.01, TickSize: 0.01, Perpetual: true},
	}}
	g, _ := newTestGateway(client, 3)

	err := g.Init(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, client.leverageCalls)

	si, ok := g.SymbolInfo("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.001, si.QtyStep)

	_, ok = g.SymbolInfo("XRPUSDT")
	assert.False(t, ok)
}
