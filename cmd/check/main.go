// Binary check verifies configuration and collaborator connectivity
// before the engine is started: brokerage auth, market data, and the
// sentiment collaborators when the active policy needs them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"stockbot-go/internal/broker"
	"stockbot-go/internal/config"
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
		log.Fatal().Err(err).Msg("config invalid")
	}
	log.Info().Msg("config ok")

	if cfg.Broker.Mode != "alpaca" {
		log.Info().Msg("paper broker selected, no connectivity to verify")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	client := broker.NewAlpaca(cfg.Alpaca.BaseURL, cfg.Alpaca.DataBaseURL, cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, log)

	if account, err := client.GetAccount(ctx); err != nil {
		log.Error().Err(err).Msg("brokerage account check failed")
		failed = true
	} else {
		log.Info().Str("status", account.Status).Float64("equity", account.Equity).Msg("brokerage ok")
	}

	if clock, err := client.GetClock(ctx); err != nil {
		log.Error().Err(err).Msg("market clock check failed")
		failed = true
	} else {
		log.Info().Bool("is_open", clock.IsOpen).Time("next_open", clock.NextOpen).Msg("market clock ok")
	}

	symbol := cfg.Trading.Symbols[0]
	if quote, err := client.GetLatestQuote(ctx, symbol); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("market data check failed")
		failed = true
	} else {
		log.Info().Str("symbol", symbol).Float64("price", quote.Price).Msg("market data ok")
	}

	if cfg.Trading.Mode == "sentiment" {
		searcher := sentiment.NewTwitterClient(cfg.Twitter.BaseURL, cfg.Twitter.BearerToken)
		if _, err := searcher.SearchRecent(ctx, fmt.Sprintf("%s lang:en", symbol), time.Now().Add(-time.Hour), 10); err != nil {
			log.Error().Err(err).Msg("social search check failed")
			failed = true
		} else {
			log.Info().Msg("social search ok")
		}

		analyzer := sentiment.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if score, err := analyzer.ScoreSentiment(ctx, []string{"markets look steady today"}); err != nil {
			log.Error().Err(err).Msg("sentiment analysis check failed")
			failed = true
		} else {
			log.Info().Float64("score", score).Msg("sentiment analysis ok")
		}
	}

	if failed {
		os.Exit(1)
	}
	log.Info().Msg("all checks passed")
}
