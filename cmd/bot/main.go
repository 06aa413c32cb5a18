// Binary bot runs the trading decision engine: market data in, indicator
// and sentiment signals fused into decisions, orders out through the
// configured brokerage.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"stockbot-go/internal/broker"
	"stockbot-go/internal/cache"
	"stockbot-go/internal/config"
	"stockbot-go/internal/execution"
	"stockbot-go/internal/indicator"
	"stockbot-go/internal/loop"
	"stockbot-go/internal/market"
	"stockbot-go/internal/metrics"
	"stockbot-go/internal/observer"
	"stockbot-go/internal/paper"
	"stockbot-go/internal/policy"
	"stockbot-go/internal/risk"
	"stockbot-go/internal/sentiment"
	"stockbot-go/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	flag.Parse()

	config.LoadEnvFile(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	hub := observer.NewHub(log)
	broadcaster := observer.NewBroadcaster(log)
	hub.Register(broadcaster)
	_ = observer.Serve(cfg.App.ObserverAddr, broadcaster)
	log.Info().Str("addr", cfg.App.ObserverAddr).Msg("dashboard feed up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		brk  market.Broker
		data market.DataProvider
	)
	switch cfg.Broker.Mode {
	case "alpaca":
		client := broker.NewAlpaca(cfg.Alpaca.BaseURL, cfg.Alpaca.DataBaseURL, cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, log)
		brk, data = client, client
		log.Info().Str("base_url", cfg.Alpaca.BaseURL).Bool("paper", cfg.Alpaca.Paper).Msg("alpaca broker selected")
	default:
		opts := []paper.Option{}
		if cfg.Paper.FillsPath != "" {
			recorder, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
			if err != nil {
				log.Fatal().Err(err).Msg("open fills recorder")
			}
			defer recorder.Close()
			opts = append(opts, paper.WithRecorder(recorder))
		}
		offline := paper.NewBroker(cfg.Paper.StartingCash, log, opts...)
		brk, data = offline, offline
		log.Info().Float64("cash", cfg.Paper.StartingCash).Msg("paper broker selected")
	}

	quotes := cache.New(time.Duration(cfg.Cache.TTLSecs) * time.Second)

	var scorer loop.SentimentScorer
	if cfg.Trading.Mode == "sentiment" {
		searcher := sentiment.NewTwitterClient(cfg.Twitter.BaseURL, cfg.Twitter.BearerToken)
		analyzer := sentiment.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		scorer = sentiment.NewFusion(searcher, analyzer,
			time.Duration(cfg.Sentiment.MinRequestIntervalSecs)*time.Second, cfg.Sentiment.MaxItems, log)
	}

	pol, err := policy.Build(cfg.Trading.Mode, policy.Params{
		RSIOversold:        cfg.Trading.RSIOversold,
		RSIOverbought:      cfg.Trading.RSIOverbought,
		SentimentThreshold: cfg.Trading.SentimentThreshold,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build policy")
	}

	ctrl := execution.NewController(brk, data, quotes,
		cfg.Execution.MaxAttempts, time.Duration(cfg.Execution.BackoffBaseMs)*time.Millisecond, log)

	loc, err := cfg.MarketHours.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("resolve market timezone")
	}
	engine := indicator.NewEngine(indicator.WithLocation(loc))

	l := loop.New(loop.Config{
		Symbols:        cfg.Trading.Symbols,
		Keywords:       cfg.Trading.Keywords,
		Lookback:       time.Duration(cfg.Trading.LookbackHours) * time.Hour,
		BreadthBasket:  cfg.Trading.BreadthBasket,
		PassInterval:   time.Duration(cfg.Loop.PassIntervalSecs) * time.Second,
		ClosedInterval: time.Duration(cfg.Loop.ClosedIntervalSecs) * time.Second,
		Hours:          cfg.MarketHours,
		Limits: risk.Limits{
			MaxPositionDollars: cfg.Trading.MaxPositionDollars,
			MaxDailyLoss:       cfg.Trading.MaxDailyLoss,
		},
	}, data, brk, engine, scorer, pol, ctrl, quotes, hub, log)

	if err := l.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("engine stopped")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
