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
	"errors"
	"fmt"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanSpendingLimit(row rowScanner) (*models.SpendingLimit, error) {
	var l models.SpendingLimit
	err := row.Scan(&l.Id, &l.UserId, &l.OrderId, &l.UsdAmount, &l.FxRate, &l.NairaAmount, &l.NairaRemaining,
		&l.ChainType, &l.TokenSymbol, &l.BlockchainNetwork, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func listSpendingLimits(ctx context.Context, q querier, query, userId string) ([]models.SpendingLimit, error) {
	rows, err := q.QueryContext(ctx, query, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query spending limits: %w", err)
	}
	defer closeRows(rows)

	var limits []models.SpendingLimit
	for rows.Next() {
		l, err := scanSpendingLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan spending limit row: %w", err)
		}
		limits = append(limits, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spending limit rows: %w", err)
	}
	return limits, nil
}

// ListSpendingLimits returns every limit of the user, drained or not, oldest first.
func (s *Service) ListSpendingLimits(ctx context.Context, userId string) ([]models.SpendingLimit, error) {
	limits, err := listSpendingLimits(ctx, s.db, queryListSpendingLimits, userId)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("Retrieved spending limits", zap.String("user_id", userId), zap.Int("count", len(limits)))
	return limits, nil
}

func (t *sqlTx) ListUsableSpendingLimits(ctx context.Context, userId string) ([]models.SpendingLimit, error) {
	limits, err := listSpendingLimits(ctx, t.tx, queryListUsableSpendingLimits, userId)
	if err != nil {
		return nil, err
	}

	usable := limits[:0]
	for _, l := range limits {
		if l.NairaRemaining.IsPositive() {
			usable = append(usable, l)
		}
	}
	return usable, nil
}

func (t *sqlTx) GetSpendingLimitByOrder(ctx context.Context, orderId string) (*models.SpendingLimit, error) {
	l, err := scanSpendingLimit(t.tx.QueryRowContext(ctx, queryGetSpendingLimitByOrder, orderId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSpendingLimitNotFound
		}
		return nil, fmt.Errorf("unable to query spending limit by order: %w", err)
	}
	return l, nil
}

func (t *sqlTx) InsertSpendingLimit(ctx context.Context, l *models.SpendingLimit) error {
	_, err := t.tx.ExecContext(ctx, queryInsertSpendingLimit,
		l.Id, l.UserId, l.OrderId, l.UsdAmount.String(), l.FxRate.String(), l.NairaAmount.String(),
		l.NairaRemaining.String(), l.ChainType, l.TokenSymbol, l.BlockchainNetwork, l.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: spending limit for order already exists", store.ErrDuplicateTransaction)
		}
		return fmt.Errorf("unable to insert spending limit: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateSpendingLimitRemaining(ctx context.Context, limitId string, expected, remaining decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateSpendingLimitRemaining, remaining.String(), limitId, expected.String())
	if err != nil {
		return fmt.Errorf("unable to update spending limit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrConcurrentModification
	}
	return nil
}
