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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"go.uber.org/zap"
)

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var tokenInfo string
	err := row.Scan(&t.Id, &t.UserId, &t.NairaAmount, &t.UsdAmount, &t.EffectiveFxRate, &t.Type, &t.Status,
		&t.AuthorizationId, &t.TransactionReference, &t.MerchantName, &t.Channel, &t.Category, &tokenInfo,
		&t.RecipientAddress, &t.ToAddress, &t.TransactionHash, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tokenInfo != "" {
		if err := json.Unmarshal([]byte(tokenInfo), &t.TokenInfo); err != nil {
			return nil, fmt.Errorf("failed to parse token_info '%s': %w", tokenInfo, err)
		}
	}
	return &t, nil
}

func getTransaction(ctx context.Context, q querier, query string, args ...any) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("unable to query transaction: %w", err)
	}
	return t, nil
}

func (s *Service) GetTransactionByAuthorization(ctx context.Context, userId, authorizationId string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, queryGetTransactionByAuthorization, userId, authorizationId)
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Querying transaction history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func (s *Service) GetTransactionChunks(ctx context.Context, transactionId string) ([]models.TransactionChunk, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTransactionChunks, transactionId)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction chunks: %w", err)
	}
	defer closeRows(rows)

	var chunks []models.TransactionChunk
	for rows.Next() {
		var c models.TransactionChunk
		if err := rows.Scan(&c.Id, &c.TransactionId, &c.SpendingLimitId, &c.NairaUsed, &c.UsdEquivalent, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return chunks, nil
}

func (t *sqlTx) GetTransactionByAuthorization(ctx context.Context, userId, authorizationId string) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, queryGetTransactionByAuthorization, userId, authorizationId)
}

func (t *sqlTx) GetTransactionByReference(ctx context.Context, userId, txType, reference string) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, queryGetTransactionByReference, userId, txType, reference)
}

func (t *sqlTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	tokenInfo := txn.TokenInfo
	if tokenInfo == nil {
		tokenInfo = []models.TokenInfo{}
	}
	tokenJSON, err := json.Marshal(tokenInfo)
	if err != nil {
		return fmt.Errorf("failed to encode token_info: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, queryInsertTransaction,
		txn.Id, txn.UserId, txn.NairaAmount.String(), txn.UsdAmount.String(), txn.EffectiveFxRate.String(),
		txn.Type, txn.Status, txn.AuthorizationId, txn.TransactionReference, txn.MerchantName,
		txn.Channel, txn.Category, string(tokenJSON), txn.RecipientAddress, txn.ToAddress,
		txn.TransactionHash, txn.CreatedAt.UTC(), txn.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertTransactionChunks(ctx context.Context, chunks []models.TransactionChunk) error {
	for _, c := range chunks {
		_, err := t.tx.ExecContext(ctx, queryInsertTransactionChunk,
			c.Id, c.TransactionId, c.SpendingLimitId, c.NairaUsed.String(), c.UsdEquivalent.String(), c.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert transaction chunk: %w", err)
		}
	}
	return nil
}

func (t *sqlTx) UpdateTransactionStatus(ctx context.Context, transactionId, status string) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateTransactionStatus, status, time.Now().UTC(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTransactionNotFound
	}
	return nil
}
