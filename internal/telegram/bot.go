package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"
	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/internal/models"
	"github.com/stevejoo1637/quant-momentum-bot/internal/position"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

// Bot pushes trade notifications to a single authorized chat and answers
// /status and /positions. Purely observational: it never places or
// closes orders.
type Bot struct {
	bot          *tele.Bot
	tracker      *position.Tracker
	authorizedID int64
	startTime    time.Time
}

func NewBot(token string, authorizedID int64, tracker *position.Tracker) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:          b,
		tracker:      tracker,
		authorizedID: authorizedID,
		startTime:    time.Now(),
	}
	bot.setupHandlers()
	return bot, nil
}

// Start runs the long poller. Blocking; run in its own goroutine.
func (b *Bot) Start() {
	logger.Info("telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/status", b.handleStatus)
	b.bot.Handle("/positions", b.handlePositions)
}

func (b *Bot) handleStatus(c tele.Context) error {
	msg := fmt.Sprintf("🤖 Quant momentum bot\n\nUptime: %s\nOpen positions: %d",
		time.Since(b.startTime).Round(time.Second), b.tracker.OpenCount())
	return c.Send(msg)
}

func (b *Bot) handlePositions(c tele.Context) error {
	positions := b.tracker.Snapshot()
	if len(positions) == 0 {
		return c.Send("No open positions")
	}

	var sb strings.Builder
	sb.WriteString("📋 Open positions:\n")
	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("\n%s %s\nEntry: %.4f | TP: %.4f | SL: %.4f | Size: %.4f\n",
			sideEmoji(p.Side), p.Symbol, p.EntryPrice, p.TakeProfit, p.StopLoss, p.Size))
	}
	return c.Send(sb.String())
}

// TradeOpened implements engine.Notifier.
func (b *Bot) TradeOpened(pos *models.Position) {
	msg := fmt.Sprintf("%s Opened %s %s\nEntry: %.4f\nTP: %.4f\nSL: %.4f\nSize: %.4f",
		sideEmoji(pos.Side), pos.Side, pos.Symbol, pos.EntryPrice, pos.TakeProfit, pos.StopLoss, pos.Size)
	b.send(msg)
}

// TradeClosed implements engine.Notifier.
func (b *Bot) TradeClosed(pos *models.Position) {
	msg := fmt.Sprintf("🎯 Closed %s %s\nEntry was: %.4f", pos.Side, pos.Symbol, pos.EntryPrice)
	b.send(msg)
}

func (b *Bot) send(msg string) {
	if _, err := b.bot.Send(&tele.User{ID: b.authorizedID}, msg); err != nil {
		logger.Warn("telegram send failed", zap.Error(err))
	}
}

func sideEmoji(side models.Side) string {
	if side == models.SideLong {
		return "📈"
	}
	return "📉"
}
