package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
)

var header = []string{"time", "side", "symbol", "entry_price", "take_profit", "stop_loss"}

// Writer appends executed entries to a CSV file, one row per trade. The
// header is written once, when the file is created or empty; rows are
// never mutated or deleted.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}

	w := &Writer{file: f, csv: csv.NewWriter(f)}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trade log: %w", err)
	}
	if st.Size() == 0 {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write trade log header: %w", err)
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush trade log header: %w", err)
		}
	}
	return w, nil
}

// Append writes one entry and flushes it to disk.
func (w *Writer) Append(e models.TradeEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row := []string{
		e.Time.UTC().Format(time.RFC3339),
		string(e.Side),
		e.Symbol,
		formatPrice(e.EntryPrice),
		formatPrice(e.TakeProfit),
		formatPrice(e.StopLoss),
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("append trade log: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush trade log: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	return w.file.Close()
}

func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
