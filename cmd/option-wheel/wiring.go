package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/config"
	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/premium"
	"github.com/contactkeval/option-wheel/internal/store"
)

// bind ties a flag to a viper key; only an explicitly set flag overrides
// file and environment values.
func (a *app) bind(f *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

// components are the collaborators built from configuration.
type components struct {
	engine  *engine.Engine
	store   store.Store
	cleanup []func()
}

func (c *components) Close() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
}

// build wires providers, engine and store. When needStore is false the
// store is skipped.
func build(ctx context.Context, cfg *config.Config, needStore bool) (*components, error) {
	c := &components{}

	prices, quotes, err := priceProviders(cfg.Data)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid cache.redis_url: %v", config.ErrConfigInvalid, err)
		}
		rdb := redis.NewClient(opt)
		c.cleanup = append(c.cleanup, func() { rdb.Close() })
		prices = data.NewCachedPriceProvider(prices, rdb, cfg.Cache.TTL)
		logger.Infof("event=cache_enabled ttl=%s", cfg.Cache.TTL)
	}

	var quoter premium.Quoter
	if cfg.Data.LiveQuotes && quotes != nil {
		quoter = premium.NewMarketQuoter(quotes)
		logger.Infof("event=live_quotes_enabled provider=%s", cfg.Data.Provider)
	}

	c.engine, err = engine.NewEngine(prices, premium.NewChain(quoter), cfg.Backtest.EngineOptions()...)
	if err != nil {
		c.Close()
		return nil, err
	}

	if needStore {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
		}
		c.store = st
		c.cleanup = append(c.cleanup, func() { st.Close() })
	}
	return c, nil
}

// priceProviders returns the configured price source and, when the source
// also lists option chains, the quote source.
func priceProviders(cfg config.DataConfig) (data.PriceProvider, data.QuoteProvider, error) {
	switch cfg.Provider {
	case "synthetic":
		logger.Infof("event=provider provider=synthetic seed=%d", cfg.Seed)
		return data.NewSyntheticProvider(cfg.Seed), nil, nil
	case "massive":
		logger.Infof("event=provider provider=massive base_url=%s", cfg.BaseURL)
		m := data.NewMassiveDataProvider(cfg.APIKey, cfg.BaseURL)
		return m, m, nil
	case "csv":
		var secondary data.PriceProvider
		var quotes data.QuoteProvider
		if cfg.APIKey != "" {
			m := data.NewMassiveDataProvider(cfg.APIKey, cfg.BaseURL)
			secondary, quotes = m, m
		}
		local := data.NewLocalFileDataProvider(cfg.CSVDir, secondary)
		logger.Infof("event=provider provider=csv dir=%s secondary=%v", cfg.CSVDir, local.Secondary() != nil)
		return local, quotes, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown data provider %q", config.ErrConfigInvalid, cfg.Provider)
}
