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

package listener

import (
	"context"
	"fmt"

	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// processWithdrawal records a completed withdrawal against the user its
// idempotency key was issued for.
func (l *Listener) processWithdrawal(ctx context.Context, tx models.PrimeTransaction, wallet models.WalletInfo) error {
	if tx.IsTerminalFailure() {
		zap.L().Warn("Withdrawal ended without completing",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status),
			zap.String("symbol", tx.Symbol),
			zap.String("amount", tx.Amount))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	if tx.Status != models.PrimeStatusDone {
		zap.L().Debug("Skipping non-completed withdrawal",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status))
		return nil
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	amount = amount.Abs()
	if amount.IsZero() {
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	symbol := normalizeSymbol(tx.Symbol)
	if !usdPegged[symbol] {
		zap.L().Warn("Skipping withdrawal with no USD valuation",
			zap.String("transaction_id", tx.Id),
			zap.String("symbol", tx.Symbol))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	userId, err := l.findUserByIdempotencyKeyPrefix(ctx, tx.IdempotencyKey)
	if err != nil {
		zap.L().Debug("Could not match withdrawal to user - skipping",
			zap.String("transaction_id", tx.Id),
			zap.String("idempotency_key", tx.IdempotencyKey),
			zap.Error(err))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	reference := tx.IdempotencyKey
	if reference == "" {
		reference = tx.Id
	}

	params := ledger.WithdrawalParams{
		UserId:          userId,
		UsdAmount:       amount,
		Reference:       reference,
		TransactionHash: tx.ChainHash(),
		ToAddress:       tx.TransferTo.Address,
		Token: models.TokenInfo{
			Token:   symbol,
			Network: tx.Network,
		},
	}
	if subUserId, lockType, ok := obligationFromIdempotencyKey(tx.IdempotencyKey); ok {
		params.SubUserId = subUserId
		params.LockType = lockType
	}

	result, err := l.withdrawals.RecordWithdrawal(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to record withdrawal: %w", err)
	}

	l.markTransactionProcessed(tx.Id)
	zap.L().Info("Withdrawal recorded",
		zap.String("transaction_id", tx.Id),
		zap.String("wallet_id", wallet.Id),
		zap.String("user_id", userId),
		zap.String("ledger_transaction_id", result.Transaction.Id),
		zap.String("amount", amount.String()),
		zap.Bool("duplicate", result.Duplicate))
	return nil
}
