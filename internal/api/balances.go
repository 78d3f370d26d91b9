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
	"context"
	"errors"
	"fmt"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/tank"

	"go.uber.org/zap"
)

// ErrMissingParameter is returned when a required query argument is empty.
var ErrMissingParameter = errors.New("missing required parameter")

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetSpendingBalance returns the user's remaining limits in naira and USD.
func (s *LedgerService) GetSpendingBalance(ctx context.Context, userId string) (*models.SpendingBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}

	balance, err := s.tanks.Balance(ctx, userId)
	if err != nil {
		logQueryError("Failed to get spending balance", userId, err)
		return nil, err
	}
	return balance, nil
}

// GetTank returns today's tank view for the user.
func (s *LedgerService) GetTank(ctx context.Context, userId string) (*tank.View, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}

	view, err := s.tanks.Tank(ctx, userId)
	if err != nil {
		logQueryError("Failed to compute tank", userId, err)
		return nil, err
	}
	return view, nil
}

// CheckThreshold evaluates the tank against the configured thresholds.
func (s *LedgerService) CheckThreshold(ctx context.Context, userId string) (*tank.ThresholdResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}
	return s.tanks.Check(ctx, userId)
}

// GetTransactionHistory returns the user's transactions, newest first.
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}

	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.db.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	transactions, err := s.db.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		logQueryError("Failed to get transaction history", userId, err)
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = toRecord(tx)
	}
	return result, nil
}

// GetTransactionChunks returns the per-limit breakdown of a spend.
func (s *LedgerService) GetTransactionChunks(ctx context.Context, transactionId string) ([]models.TransactionChunk, error) {
	if transactionId == "" {
		return nil, fmt.Errorf("%w: transaction_id", ErrMissingParameter)
	}

	chunks, err := s.db.GetTransactionChunks(ctx, transactionId)
	if err != nil {
		zap.L().Error("Failed to get transaction chunks",
			zap.String("transaction_id", transactionId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction chunks: %w", err)
	}
	return chunks, nil
}

func toRecord(tx models.Transaction) models.TransactionRecord {
	return models.TransactionRecord{
		Id:                   tx.Id,
		Type:                 tx.Type,
		Status:               tx.Status,
		NairaAmount:          tx.NairaAmount,
		UsdAmount:            tx.UsdAmount,
		EffectiveFxRate:      tx.EffectiveFxRate,
		AuthorizationId:      tx.AuthorizationId,
		TransactionReference: tx.TransactionReference,
		MerchantName:         tx.MerchantName,
		Channel:              tx.Channel,
		Category:             tx.Category,
		TokenInfo:            tx.TokenInfo,
		ToAddress:            tx.ToAddress,
		TransactionHash:      tx.TransactionHash,
		CreatedAt:            tx.CreatedAt,
	}
}

// logQueryError keeps not-found lookups out of the error log.
func logQueryError(msg, userId string, err error) {
	if errors.Is(err, store.ErrUserNotFound) {
		zap.L().Debug(msg, zap.String("user_id", userId), zap.Error(err))
		return
	}
	zap.L().Error(msg, zap.String("user_id", userId), zap.Error(err))
}
