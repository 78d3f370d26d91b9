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
	"time"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func scanFundsLock(row rowScanner) (*models.FundsLock, error) {
	var l models.FundsLock
	err := row.Scan(&l.Id, &l.UserId, &l.SubUserId, &l.AmountLocked, &l.TokenSymbolLocked, &l.Chain,
		&l.BlockchainNetwork, &l.Type, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func getFundsLock(ctx context.Context, q querier, query string, args ...any) (*models.FundsLock, error) {
	l, err := scanFundsLock(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrLockNotFound
		}
		return nil, fmt.Errorf("unable to query funds lock: %w", err)
	}
	return l, nil
}

func (s *Service) GetFundsLock(ctx context.Context, lockId string) (*models.FundsLock, error) {
	return getFundsLock(ctx, s.db, queryGetFundsLock, lockId)
}

// ListFundsLocks returns the user's locks; an empty status means every status.
func (s *Service) ListFundsLocks(ctx context.Context, userId, status string) ([]models.FundsLock, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, queryListFundsLocks, userId)
	} else {
		rows, err = s.db.QueryContext(ctx, queryListFundsLocksByStatus, userId, status)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query funds locks: %w", err)
	}
	defer closeRows(rows)

	var locks []models.FundsLock
	for rows.Next() {
		l, err := scanFundsLock(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan funds lock row: %w", err)
		}
		locks = append(locks, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds lock rows: %w", err)
	}
	return locks, nil
}

// SumLockedFunds totals LOCKED amounts in Go to keep decimal precision.
func (s *Service) SumLockedFunds(ctx context.Context, filter store.LockedFundsFilter) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryListLockedAmounts, filter.UserId, filter.TokenSymbol, filter.Chain, filter.Network)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to query locked funds: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("unable to scan locked amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating locked amounts: %w", err)
	}
	return total, nil
}

func (t *sqlTx) GetFundsLock(ctx context.Context, lockId string) (*models.FundsLock, error) {
	return getFundsLock(ctx, t.tx, queryGetFundsLock, lockId)
}

func (t *sqlTx) GetActiveFundsLock(ctx context.Context, userId, subUserId, lockType string) (*models.FundsLock, error) {
	return getFundsLock(ctx, t.tx, queryGetActiveFundsLock, userId, subUserId, lockType)
}

func (t *sqlTx) InsertFundsLock(ctx context.Context, l *models.FundsLock) error {
	_, err := t.tx.ExecContext(ctx, queryInsertFundsLock,
		l.Id, l.UserId, l.SubUserId, l.AmountLocked.String(), l.TokenSymbolLocked, l.Chain,
		l.BlockchainNetwork, l.Type, l.Status, l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrActiveLockExists
		}
		return fmt.Errorf("unable to insert funds lock: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateFundsLockStatus(ctx context.Context, lockId, status string) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateFundsLockStatus, status, time.Now().UTC(), lockId)
	if err != nil {
		return fmt.Errorf("unable to update funds lock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrLockNotFound
	}
	return nil
}
