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
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"spend-ledger-go/internal/fundslock"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/webhook"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxBodyBytes    = 1 << 20
)

var errBadSignature = errors.New("invalid webhook signature")

type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the webhook and query endpoints.
type Handler struct {
	ledger    *LedgerService
	processor *webhook.Processor
	secret    []byte
}

// NewHandler builds the HTTP handler. An empty secret disables signature checks.
func NewHandler(ledger *LedgerService, processor *webhook.Processor, secret string) *Handler {
	h := &Handler{ledger: ledger, processor: processor}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

func (h *Handler) CardWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, "")
}

func (h *Handler) DepositWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, webhook.EventDepositSuccess)
}

// handleWebhook verifies and decodes an event. forceEvent, when set, is the
// only event name the endpoint accepts and the default when none is given.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request, forceEvent string) {
	body, err := h.readVerifiedBody(w, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	ev, err := webhook.DecodeEvent(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if forceEvent != "" {
		if ev.Event == "" {
			ev.Event = forceEvent
		}
		if ev.Event != forceEvent {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unexpected event %q", webhook.ErrInvalidPayload, ev.Event))
			return
		}
	}

	ctx := models.WithEventContext(r.Context(), &models.EventContext{
		Event:      ev.Event,
		DeliveryId: requestId(r),
		Source:     "webhook",
		ReceivedAt: nowUTC(),
	})

	result, err := h.processor.Process(ctx, ev)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("Webhook processing failed",
				zap.String("event", ev.Event),
				zap.String("delivery_id", requestId(r)),
				zap.Error(err))
			result.Error = http.StatusText(status)
		}
		writeJSON(w, status, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) readVerifiedBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("unable to read body: %w", err)
	}
	if h.secret == nil {
		return body, nil
	}

	got, err := hex.DecodeString(r.Header.Get(signatureHeader))
	if err != nil {
		return nil, errBadSignature
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return nil, errBadSignature
	}
	return body, nil
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetSpendingBalance(r.Context(), chi.URLParam(r, "userId"))
	respond(w, balance, err)
}

func (h *Handler) GetTank(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.GetTank(r.Context(), chi.URLParam(r, "userId"))
	respond(w, view, err)
}

func (h *Handler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.CheckThreshold(r.Context(), chi.URLParam(r, "userId"))
	respond(w, result, err)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.ledger.GetTransactionHistory(r.Context(), chi.URLParam(r, "userId"), limit, offset)
	respond(w, records, err)
}

func (h *Handler) GetTransactionChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.ledger.GetTransactionChunks(r.Context(), chi.URLParam(r, "transactionId"))
	respond(w, chunks, err)
}

func (h *Handler) ListLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.ledger.ListFundsLocks(r.Context(), chi.URLParam(r, "userId"), r.URL.Query().Get("status"))
	respond(w, locks, err)
}

func (h *Handler) CreateLock(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.UserId = chi.URLParam(r, "userId")

	lock, err := h.ledger.LockFunds(r.Context(), req)
	if err != nil {
		respond(w, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, lock)
}

func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	lock, err := h.ledger.ReleaseFunds(r.Context(), chi.URLParam(r, "lockId"))
	respond(w, lock, err)
}

func (h *Handler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	available, err := h.ledger.AvailableBalance(r.Context(), fundslock.BalanceQuery{
		UserId:      chi.URLParam(r, "userId"),
		Address:     q.Get("address"),
		TokenSymbol: q.Get("token"),
		Chain:       q.Get("chain"),
		Network:     q.Get("network"),
	})
	if err != nil {
		respond(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"available": available.String()})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("Request failed", zap.Error(err))
			err = errors.New(http.StatusText(status))
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var insufficient *store.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrLockNotFound):
		return http.StatusNotFound
	case webhook.IsClientError(err),
		errors.Is(err, ErrMissingParameter),
		errors.Is(err, store.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrActiveLockExists),
		errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, store.ErrConfiguration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
