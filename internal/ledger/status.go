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
	"fmt"

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"go.uber.org/zap"
)

// forward lists the statuses reachable from each status. refund and failed
// are terminal.
var forward = map[string]map[string]bool{
	models.TransactionStatusPending: {
		models.TransactionStatusCompleted: true,
		models.TransactionStatusRefund:    true,
		models.TransactionStatusFailed:    true,
	},
	models.TransactionStatusCompleted: {
		models.TransactionStatusRefund: true,
	},
}

// CanTransition reports whether a transaction may move from one status to another.
func CanTransition(from, to string) bool {
	return forward[from][to]
}

type TransitionResult struct {
	Transaction *models.Transaction
	Previous    string
	Changed     bool
}

// TransitionStatus moves the spend identified by (user, authorization) to
// newStatus. Re-applying the current status is a no-op.
func (s *Service) TransitionStatus(ctx context.Context, userId, authorizationId, newStatus string) (result *TransitionResult, err error) {
	done := metrics.ObserveOp("transition")
	defer func() { done(err) }()

	switch newStatus {
	case models.TransactionStatusCompleted, models.TransactionStatusRefund, models.TransactionStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransition, newStatus)
	}

	unlock := s.lockUser(userId)
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		txn, err := tx.GetTransactionByAuthorization(ctx, userId, authorizationId)
		if err != nil {
			return err
		}

		previous := txn.Status
		if previous == newStatus {
			result = &TransitionResult{Transaction: txn, Previous: previous}
			return nil
		}
		if !CanTransition(previous, newStatus) {
			return fmt.Errorf("%w: %s to %s", store.ErrInvalidTransition, previous, newStatus)
		}

		if err := tx.UpdateTransactionStatus(ctx, txn.Id, newStatus); err != nil {
			return err
		}
		txn.Status = newStatus
		txn.UpdatedAt = s.now()
		result = &TransitionResult{Transaction: txn, Previous: previous, Changed: true}
		return nil
	})
	if err != nil {
		zap.L().Warn("Status transition failed",
			zap.String("user_id", userId),
			zap.String("authorization_id", authorizationId),
			zap.String("new_status", newStatus),
			zap.Error(err))
		return nil, err
	}

	if !result.Changed {
		zap.L().Debug("Status already applied",
			zap.String("transaction_id", result.Transaction.Id),
			zap.String("status", newStatus))
		return result, nil
	}

	zap.L().Info("Transaction status updated",
		zap.String("user_id", userId),
		zap.String("transaction_id", result.Transaction.Id),
		zap.String("from", result.Previous),
		zap.String("to", newStatus))

	s.mirrorPost("transition", func(m Mirror) error {
		return m.PostStatusChange(ctx, result.Transaction, result.Previous)
	})
	return result, nil
}
