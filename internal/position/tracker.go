package position

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

// Tracker owns the set of open positions. It is the only component that
// mutates position state: opens are recorded after the exchange confirms
// the order, closes only when reconciliation reports zero contracts.
//
// The scheduler is the single writer today, but all access goes through
// the mutex so distributing symbol evaluation across workers stays safe;
// Open performs the slot check and the record atomically.
type Tracker struct {
	mu       sync.Mutex
	maxSlots int
	open     map[string]*models.Position
}

func NewTracker(maxSlots int) *Tracker {
	return &Tracker{
		maxSlots: maxSlots,
		open:     make(map[string]*models.Position),
	}
}

// NewPosition builds a tracked position with a fresh ID.
func NewPosition(symbol string, side models.Side, entry, size, tp, sl float64) *models.Position {
	return &models.Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		Size:       size,
		TakeProfit: tp,
		StopLoss:   sl,
		OpenedAt:   time.Now(),
	}
}

// CanOpen reports whether a new position on symbol in the given direction
// is currently admissible: false when the symbol already holds a
// same-direction position or all slots are taken.
func (t *Tracker) CanOpen(symbol string, side models.Side) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canOpenLocked(symbol, side)
}

func (t *Tracker) canOpenLocked(symbol string, side models.Side) bool {
	if existing, ok := t.open[symbol]; ok && existing.Side == side {
		return false
	}
	return len(t.open) < t.maxSlots
}

// RecordOpen transitions a symbol to OPEN. Call only after the exchange
// has accepted the entry order.
func (t *Tracker) RecordOpen(pos *models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordOpenLocked(pos)
}

func (t *Tracker) recordOpenLocked(pos *models.Position) {
	t.open[pos.Symbol] = pos
	logger.Info("position opened",
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("size", pos.Size),
		zap.Float64("tp", pos.TakeProfit),
		zap.Float64("sl", pos.StopLoss))
}

// Open re-checks admissibility and records in one critical section, so
// two concurrently evaluated symbols cannot both slip past the slot
// limit. Returns false if the position was not admitted.
func (t *Tracker) Open(pos *models.Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canOpenLocked(pos.Symbol, pos.Side) {
		return false
	}
	t.recordOpenLocked(pos)
	return true
}

// RecordClose removes the symbol's position, returning it (nil if none).
func (t *Tracker) RecordClose(symbol string) *models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.open[symbol]
	if !ok {
		return nil
	}
	delete(t.open, symbol)
	logger.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("side", string(pos.Side)))
	return pos
}

// Get returns the open position for symbol, if any.
func (t *Tracker) Get(symbol string) (*models.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.open[symbol]
	return pos, ok
}

// OpenCount is the number of open positions across all symbols.
func (t *Tracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// Snapshot returns the open positions sorted by symbol.
func (t *Tracker) Snapshot() []*models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.Position, 0, len(t.open))
	for _, p := range t.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Reconcile syncs local state against the exchange's authoritative
// report. Locally open symbols absent from the report (zero contracts)
// were closed externally — TP/SL fill, liquidation, manual intervention —
// and are dropped. Exchange positions unknown locally are adopted, which
// is the backstop for an entry order whose acknowledgment was lost.
// Returns the positions closed externally. Read-only against the
// exchange; never retries.
func (t *Tracker) Reconcile(reported []models.ReportedPosition) (closed []*models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := make(map[string]models.ReportedPosition, len(reported))
	for _, r := range reported {
		if r.Contracts > 0 {
			live[r.Symbol] = r
		}
	}

	for symbol, pos := range t.open {
		if _, ok := live[symbol]; ok {
			continue
		}
		delete(t.open, symbol)
		closed = append(closed, pos)
		logger.Info("position closed externally",
			zap.String("symbol", symbol),
			zap.String("side", string(pos.Side)),
			zap.Float64("entry", pos.EntryPrice))
	}

	for symbol, r := range live {
		if _, ok := t.open[symbol]; ok {
			continue
		}
		adopted := NewPosition(symbol, r.Side, r.EntryPrice, r.Contracts, 0, 0)
		t.open[symbol] = adopted
		logger.Warn("adopted position from exchange",
			zap.String("symbol", symbol),
			zap.String("side", string(r.Side)),
			zap.Float64("contracts", r.Contracts))
	}

	sort.Slice(closed, func(i, j int) bool { return closed[i].Symbol < closed[j].Symbol })
	return closed
}
