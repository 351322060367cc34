package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/stevejoo1637/quant-momentum-bot/config"
	"github.com/stevejoo1637/quant-momentum-bot/internal/engine"
	"github.com/stevejoo1637/quant-momentum-bot/internal/exchange"
	"github.com/stevejoo1637/quant-momentum-bot/internal/position"
	"github.com/stevejoo1637/quant-momentum-bot/internal/telegram"
	"github.com/stevejoo1637/quant-momentum-bot/internal/tradelog"
	"github.com/stevejoo1637/quant-momentum-bot/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	logger.Info("🚀 starting quant momentum bot")
	cfg := config.Load()

	var client exchange.Client = exchange.NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.Testnet)
	if cfg.DryRun {
		logger.Info("dry run enabled, orders stay on the paper client",
			zap.Float64("paper_balance", cfg.PaperBalance))
		client = exchange.NewPaperClient(cfg.PaperBalance, client)
	}

	gateway := exchange.NewGateway(client, exchange.GatewayConfig{
		Attempts: cfg.RetryAttempts,
		WaitMin:  cfg.RetryWaitMin,
		WaitMax:  cfg.RetryWaitMax,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// One-time market metadata load and leverage setup; a misconfigured
	// market is fatal, retrying it is meaningless.
	if err := gateway.Init(ctx, cfg.Symbols, cfg.Leverage); err != nil {
		logger.Fatal("exchange initialization failed", zap.Error(err))
	}

	tradeLog, err := tradelog.NewWriter(cfg.TradeLogPath)
	if err != nil {
		logger.Fatal("trade log initialization failed", zap.Error(err))
	}
	defer tradeLog.Close()

	tracker := position.NewTracker(cfg.MaxSlots)
	eng := engine.New(cfg, gateway, tracker, tradeLog)

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, tracker)
		if err != nil {
			logger.Fatal("telegram bot initialization failed", zap.Error(err))
		}
		eng.SetNotifier(bot)
		go bot.Start()
		defer bot.Stop()
	}

	eng.Run(ctx)
	logger.Info("👋 shutdown complete")
}
