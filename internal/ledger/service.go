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

// Package ledger owns every write to spending limits, transactions and
// their chunks. Each mutating operation runs under the user's serialization
// key and inside one store transaction.
package ledger

import (
	"context"
	"time"

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/syncutil"

	"go.uber.org/zap"
)

// Mirror receives committed ledger effects. Postings are best-effort: a
// failure is logged and counted, never rolled back into the local ledger.
type Mirror interface {
	PostSpend(ctx context.Context, txn *models.Transaction, chunks []models.TransactionChunk) error
	PostStatusChange(ctx context.Context, txn *models.Transaction, previous string) error
	PostDeposit(ctx context.Context, txn *models.Transaction) error
	PostWithdrawal(ctx context.Context, txn *models.Transaction) error
	PostSpendingLimit(ctx context.Context, limit *models.SpendingLimit) error
}

type Service struct {
	store          store.LedgerStore
	locks          *syncutil.ShardedMutex
	mirror         Mirror
	defaultNetwork string
	now            func() time.Time
}

// NewService wires the ledger. locks must be shared with every other
// component that mutates the same users; mirror may be nil.
func NewService(st store.LedgerStore, locks *syncutil.ShardedMutex, cfg models.LedgerConfig, mirror Mirror) *Service {
	if locks == nil {
		locks = &syncutil.ShardedMutex{}
	}
	return &Service{
		store:          st,
		locks:          locks,
		mirror:         mirror,
		defaultNetwork: cfg.DefaultNetwork,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) lockUser(userId string) func() {
	return s.locks.Lock("user:" + userId)
}

func (s *Service) mirrorPost(op string, fn func(m Mirror) error) {
	if s.mirror == nil {
		return
	}
	if err := fn(s.mirror); err != nil {
		metrics.MirrorFailuresTotal.WithLabelValues(op).Inc()
		zap.L().Warn("Mirror ledger posting failed", zap.String("operation", op), zap.Error(err))
	}
}
