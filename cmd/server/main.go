/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"spend-ledger-go/internal/api"
	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/config"
	"spend-ledger-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting spend ledger server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Server.WebhookSecret == "" {
		zap.L().Warn("WEBHOOK_SECRET not set - webhook signatures are not verified")
	}

	var primeListener *listener.Listener
	if services.PrimeService != nil {
		primeListener = listener.New(listener.Config{
			Source:          services.PrimeService,
			Deposits:        services.Processor,
			Withdrawals:     services.Ledger,
			Users:           services.DbService,
			PortfolioId:     services.DefaultPortfolio.Id,
			AssetsFile:      cfg.Listener.AssetsFile,
			LookbackWindow:  cfg.Listener.LookbackWindow,
			PollingInterval: cfg.Listener.PollingInterval,
			CleanupInterval: cfg.Listener.CleanupInterval,
		})
		if err := primeListener.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start Prime listener", zap.Error(err))
		}
	}

	handler := api.NewHandler(services.Api, services.Processor, cfg.Server.WebhookSecret)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received")
	case err := <-serverErr:
		zap.L().Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced HTTP shutdown after timeout", zap.Error(err))
	}
	if primeListener != nil {
		primeListener.Stop()
	}
	cancel()

	zap.L().Info("Spend ledger server stopped")
}
