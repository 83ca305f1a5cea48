package cmd

import (
	"fmt"
	"os"

	"github.com/gaurav-prasanna/policypipe/core/compose"
	"github.com/gaurav-prasanna/policypipe/core/fetch"
	"github.com/gaurav-prasanna/policypipe/core/normalize"
	"github.com/gaurav-prasanna/policypipe/core/pipeline"
	"github.com/gaurav-prasanna/policypipe/core/render"
	"github.com/gaurav-prasanna/policypipe/core/storage"
	"github.com/gaurav-prasanna/policypipe/internal/config"
	"github.com/gaurav-prasanna/policypipe/internal/logger"
	"github.com/gaurav-prasanna/policypipe/internal/metrics"
)

// loadConfig reads --config, or returns the defaults when it is unset.
// Defaults are not validated: conversion needs no secret.
func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		cfg := config.DefaultConfig()
		cfg.SigningSecret = os.Getenv("POLICYPIPE_SIGNING_SECRET")
		return cfg, nil
	}
	return config.LoadConfig(flagConfig)
}

// app is the wired pipeline plus whatever must be closed afterwards.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	pipeline   *pipeline.Pipeline
	rasterizer *compose.RodRasterizer
	store      *storage.PolicyStore
	blobs      *storage.FSBlobStore
}

// newApp wires the pipeline from cfg. withStorage opens the database and
// blob store, which requires a valid configuration.
func newApp(cfg *config.Config, withStorage bool) (*app, error) {
	log := logger.InitGlobal(cfg.Log)
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	a.rasterizer = compose.NewRodRasterizer(cfg.Rasterizer, log.Component("rasterizer"))
	decorator := compose.NewDecorator(cfg.Layout, fetch.New(), compose.DecoratorOptions{Compress: true}, log.Component("decorator"))
	compositor := compose.New(cfg.Layout, a.rasterizer, decorator, log.Component("compositor"))

	pc := pipeline.Config{
		Normalizer: normalize.NewWithOptions(cfg.Normalizer),
		Shell:      render.NewShell(cfg.Layout),
		Composer:   compositor,
		Chrome:     cfg.Chrome.Chrome(),
		SignedTTL:  cfg.SignedURLTTL,
		Diff:       cfg.Diff,
		Log:        log,
		Metrics:    a.metrics,
	}

	if withStorage {
		if err := cfg.Validate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		db, err := storage.OpenDB(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = storage.NewPolicyStore(db)
		a.blobs, err = storage.NewFSBlobStore(cfg.BlobRoot, cfg.PublicBaseURL, []byte(cfg.SigningSecret))
		if err != nil {
			a.Close()
			return nil, err
		}
		pc.Store = a.store
		pc.Blobs = a.blobs
	}

	a.pipeline = pipeline.New(pc)
	return a, nil
}

// Close releases the browser and the database.
func (a *app) Close() {
	if a.rasterizer != nil {
		a.rasterizer.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
