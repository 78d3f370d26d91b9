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

package api

import (
	"net/http"
	"time"

	"spend-ledger-go/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires every route onto a chi mux.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/card", h.CardWebhook)
		r.Post("/deposit", h.DepositWebhook)
	})

	r.Route("/users/{userId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalance)
		r.Get("/tank", h.GetTank)
		r.Get("/threshold", h.GetThreshold)
		r.Get("/transactions", h.GetTransactions)
		r.Get("/available", h.GetAvailable)
		r.Get("/locks", h.ListLocks)
		r.Post("/locks", h.CreateLock)
	})

	r.Get("/transactions/{transactionId}/chunks", h.GetTransactionChunks)
	r.Post("/locks/{lockId}/release", h.ReleaseLock)

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		zap.L().Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func requestId(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
