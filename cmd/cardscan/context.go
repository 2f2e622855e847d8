package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cardscan/internal/config"
	"cardscan/internal/identify"
	"cardscan/internal/logging"
	"cardscan/internal/pricing"
	"cardscan/internal/refindex"
	"cardscan/internal/scan"
	"cardscan/internal/services/cardmarket"
	"cardscan/internal/services/catalog"
	"cardscan/internal/services/fx"
	"cardscan/internal/services/vision"
	"cardscan/internal/setnumber"
	"cardscan/internal/store"
	"cardscan/internal/telemetry"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// app bundles the wired pipeline for one command invocation.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	index       *refindex.Index
	coordinator *scan.Coordinator
	pricer      *pricing.Resolver
}

// withApp opens the store, wires the pipeline, runs fn, and closes the
// store afterwards.
func (c *commandContext) withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cards, err := st.LoadReferenceCards(ctx)
	if err != nil {
		return fmt.Errorf("load reference cards: %w", err)
	}
	index := refindex.NewFromCards(cards)

	visionClient := vision.NewClient(vision.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})

	models := []string{cfg.Vision.PrimaryModel}
	if fallback := cfg.Vision.FallbackModel; fallback != "" && fallback != cfg.Vision.PrimaryModel {
		models = append(models, fallback)
	}
	identifier, err := identify.New(visionClient, st, st, index, identify.Options{
		Models:         models,
		Policy:         identify.ThresholdPolicy(cfg.Vision.ConfidenceThreshold),
		DailyBudgetUSD: cfg.Vision.DailyBudgetUSD,
		LanguageHint:   cfg.Vision.LanguageMode,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("wire identification: %w", err)
	}

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second, nil)
	numbers := setnumber.New(visionClient, catalogClient, setnumber.Options{
		Model:  cfg.Vision.PrimaryModel,
		Logger: logger,
	})

	pricingTimeout := time.Duration(cfg.Pricing.TimeoutSeconds) * time.Second
	marketClient := cardmarket.NewClient(cfg.Pricing.SearchBaseURL, pricingTimeout, nil)
	fxClient := fx.NewClient(cfg.Pricing.FXBaseURL, pricingTimeout, nil)
	pricer := pricing.New(marketClient, fxClient, pricing.Options{
		DisplayCurrency: cfg.Pricing.DisplayCurrency,
		Logger:          logger,
	})

	events := telemetry.NewService(cfg, logger)
	coordinator, err := scan.New(identifier, numbers, pricer, st, events, scan.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("wire scan pipeline: %w", err)
	}

	return fn(ctx, &app{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		index:       index,
		coordinator: coordinator,
		pricer:      pricer,
	})
}
