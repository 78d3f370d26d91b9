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
	"errors"
	"fmt"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/webhook"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// processDeposit credits an imported deposit to the owner of its destination
// address. Deposits to addresses we don't know are marked seen and skipped.
func (l *Listener) processDeposit(ctx context.Context, tx models.PrimeTransaction, wallet models.WalletInfo) error {
	if tx.Status != models.PrimeStatusImported {
		zap.L().Debug("Skipping deposit that is not imported yet",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status))
		return nil
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		zap.L().Debug("Skipping zero/negative amount deposit",
			zap.String("transaction_id", tx.Id),
			zap.String("amount", amount.String()))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	symbol := normalizeSymbol(tx.Symbol)
	if !usdPegged[symbol] {
		zap.L().Warn("Skipping deposit with no USD valuation",
			zap.String("transaction_id", tx.Id),
			zap.String("symbol", tx.Symbol))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	address := tx.DestinationAddress()
	if address == "" {
		zap.L().Debug("No destination address on deposit",
			zap.String("transaction_id", tx.Id),
			zap.String("transfer_to_type", tx.TransferTo.Type))
		l.markTransactionProcessed(tx.Id)
		return nil
	}

	result, err := l.deposits.ProcessDeposit(ctx, webhook.Deposit{
		Address:         address,
		UsdAmount:       amount,
		Reference:       tx.Id,
		TransactionHash: tx.ChainHash(),
		Token: models.TokenInfo{
			Token:   symbol,
			Network: tx.Network,
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			zap.L().Debug("Deposit address belongs to no user",
				zap.String("transaction_id", tx.Id),
				zap.String("address", address))
			l.markTransactionProcessed(tx.Id)
			return nil
		}
		return fmt.Errorf("failed to record deposit: %w", err)
	}

	l.markTransactionProcessed(tx.Id)
	zap.L().Info("Deposit recorded",
		zap.String("transaction_id", tx.Id),
		zap.String("wallet_id", wallet.Id),
		zap.String("user_id", result.UserId),
		zap.String("ledger_transaction_id", result.TransactionId),
		zap.String("symbol", symbol),
		zap.String("amount", amount.String()),
		zap.Bool("duplicate", result.Duplicate))
	return nil
}
