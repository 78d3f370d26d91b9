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
	"fmt"

	"spend-ledger-go/internal/fundslock"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/tank"
)

// Store is the read side of the ledger the query API serves from.
type Store interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
	GetTransactionChunks(ctx context.Context, transactionId string) ([]models.TransactionChunk, error)
	ListFundsLocks(ctx context.Context, userId, status string) ([]models.FundsLock, error)
	Ping(ctx context.Context) error
}

// LedgerService answers balance, tank, history and lock queries.
type LedgerService struct {
	db    Store
	tanks *tank.Service
	funds *fundslock.Service
}

func NewLedgerService(db Store, tanks *tank.Service, funds *fundslock.Service) *LedgerService {
	return &LedgerService{
		db:    db,
		tanks: tanks,
		funds: funds,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
