package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"time", "side", "symbol", "entry_price", "take_profit", "stop_loss"}, rows[0])
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)

	opened := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(models.TradeEntry{
		Time:       opened,
		Side:       models.SideLong,
		Symbol:     "BTCUSDT",
		EntryPrice: 50000,
		TakeProfit: 51250,
		StopLoss:   49250,
	}))
	require.NoError(t, w.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"2026-08-31T12:00:00Z", "LONG", "BTCUSDT", "50000", "51250", "49250",
	}, rows[1])
}

func TestHeaderWrittenOnceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	entry := models.TradeEntry{
		Time: time.Now(), Side: models.SideShort, Symbol: "ETHUSDT",
		EntryPrice: 3000, TakeProfit: 2925, StopLoss: 3045,
	}

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry))
	require.NoError(t, w.Close())

	// A restart reopens the same file; the header must not repeat and
	// existing rows must survive.
	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry))
	require.NoError(t, w.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "time", rows[0][0])
	assert.Equal(t, "ETHUSDT", rows[1][2])
	assert.Equal(t, "ETHUSDT", rows[2][2])
}
