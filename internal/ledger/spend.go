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

package ledger

import (
	"context"
	"errors"
	"fmt"

	"spend-ledger-go/internal/allocation"
	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nairaAsset = "NGN"

type SpendParams struct {
	UserId               string
	Amount               decimal.Decimal
	AuthorizationId      string
	TransactionReference string
	MerchantName         string
	Channel              string
	Category             string
	RecipientAddress     string
	Status               string
}

type SpendResult struct {
	Transaction *models.Transaction
	Chunks      []models.TransactionChunk
	// Duplicate is set when the authorization was already recorded; the
	// returned transaction is the original one.
	Duplicate bool
	// InvalidRateLimits lists limits drawn from with a non-positive fx_rate.
	InvalidRateLimits []string
}

// RecordSpend drains the user's spending limits oldest-first to cover the
// spend. Transaction, chunks and limit updates commit together or not at all.
func (s *Service) RecordSpend(ctx context.Context, params SpendParams) (result *SpendResult, err error) {
	done := metrics.ObserveOp("spend")
	defer func() { done(err) }()

	amount := params.Amount.Abs()
	if amount.IsZero() {
		return nil, store.ErrInvalidAmount
	}
	status := params.Status
	if status == "" {
		status = models.TransactionStatusPending
	}

	zap.L().Info("Recording spend",
		zap.String("user_id", params.UserId),
		zap.String("amount", amount.String()),
		zap.String("authorization_id", params.AuthorizationId),
		zap.String("status", status))

	unlock := s.lockUser(params.UserId)
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, params.UserId); err != nil {
			return err
		}

		if params.AuthorizationId != "" {
			existing, err := tx.GetTransactionByAuthorization(ctx, params.UserId, params.AuthorizationId)
			if err == nil {
				result = &SpendResult{Transaction: existing, Duplicate: true}
				return nil
			}
			if !errors.Is(err, store.ErrTransactionNotFound) {
				return err
			}
		}

		limits, err := tx.ListUsableSpendingLimits(ctx, params.UserId)
		if err != nil {
			return err
		}
		if len(limits) == 0 {
			return &store.InsufficientFundsError{Requested: amount, Available: decimal.Zero, Asset: nairaAsset}
		}

		alloc := allocation.Allocate(amount, limits)
		if !alloc.FullyAllocated() {
			return &store.InsufficientFundsError{
				Requested: amount,
				Available: allocation.TotalRemaining(limits),
				Asset:     nairaAsset,
			}
		}

		now := s.now()
		txn := &models.Transaction{
			Id:                   uuid.New().String(),
			UserId:               params.UserId,
			NairaAmount:          alloc.Allocated,
			UsdAmount:            alloc.UsdTotal,
			EffectiveFxRate:      alloc.EffectiveFxRate,
			Type:                 models.TransactionTypeSpending,
			Status:               status,
			AuthorizationId:      params.AuthorizationId,
			TransactionReference: params.TransactionReference,
			MerchantName:         params.MerchantName,
			Channel:              params.Channel,
			Category:             params.Category,
			TokenInfo:            alloc.TokenInfo(),
			RecipientAddress:     params.RecipientAddress,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		chunks := make([]models.TransactionChunk, 0, len(alloc.Chunks))
		for _, c := range alloc.Chunks {
			chunks = append(chunks, models.TransactionChunk{
				Id:              uuid.New().String(),
				TransactionId:   txn.Id,
				SpendingLimitId: c.SpendingLimitId,
				NairaUsed:       c.NairaUsed,
				UsdEquivalent:   c.UsdEquivalent,
				CreatedAt:       now,
			})
		}
		if err := tx.InsertTransactionChunks(ctx, chunks); err != nil {
			return err
		}

		// alloc.Chunks[i] was drawn from alloc.UpdatedLimits[i].
		for i, updated := range alloc.UpdatedLimits {
			expected := updated.NairaRemaining.Add(alloc.Chunks[i].NairaUsed)
			if err := tx.UpdateSpendingLimitRemaining(ctx, updated.Id, expected, updated.NairaRemaining); err != nil {
				return fmt.Errorf("failed to update spending limit %s: %w", updated.Id, err)
			}
		}

		result = &SpendResult{Transaction: txn, Chunks: chunks, InvalidRateLimits: alloc.InvalidRateIds}
		return nil
	})

	if errors.Is(err, store.ErrDuplicateTransaction) && params.AuthorizationId != "" {
		// Lost a race against another writer; return the winner.
		existing, getErr := s.store.GetTransactionByAuthorization(ctx, params.UserId, params.AuthorizationId)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load concurrent duplicate: %w", getErr)
		}
		result, err = &SpendResult{Transaction: existing, Duplicate: true}, nil
	}
	if err != nil {
		var ife *store.InsufficientFundsError
		if errors.As(err, &ife) {
			zap.L().Warn("Spend rejected for insufficient funds",
				zap.String("user_id", params.UserId),
				zap.String("requested", ife.Requested.String()),
				zap.String("available", ife.Available.String()),
				zap.String("shortfall", ife.Shortfall().String()))
		}
		return nil, err
	}

	if result.Duplicate {
		metrics.DuplicateEventsTotal.WithLabelValues("spend").Inc()
		zap.L().Info("Duplicate authorization, returning existing transaction",
			zap.String("user_id", params.UserId),
			zap.String("authorization_id", params.AuthorizationId),
			zap.String("transaction_id", result.Transaction.Id))
		return result, nil
	}

	for _, limitId := range result.InvalidRateLimits {
		metrics.InvalidFxRateTotal.Inc()
		zap.L().Warn("Spend drew from spending limit with non-positive fx rate",
			zap.String("user_id", params.UserId),
			zap.String("spending_limit_id", limitId),
			zap.String("transaction_id", result.Transaction.Id))
	}

	zap.L().Info("Spend recorded",
		zap.String("user_id", params.UserId),
		zap.String("transaction_id", result.Transaction.Id),
		zap.String("naira_amount", result.Transaction.NairaAmount.String()),
		zap.String("usd_amount", result.Transaction.UsdAmount.String()),
		zap.String("effective_fx_rate", result.Transaction.EffectiveFxRate.String()),
		zap.Int("chunks", len(result.Chunks)))

	s.mirrorPost("spend", func(m Mirror) error {
		return m.PostSpend(ctx, result.Transaction, result.Chunks)
	})
	return result, nil
}
