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
	"sync"
	"time"

	"spend-ledger-go/internal/models"

	"go.uber.org/zap"
)

// Start loads the wallets, replays the lookback window and begins polling.
func (l *Listener) Start(ctx context.Context) error {
	zap.L().Info("Starting Prime transfer listener")

	if err := l.LoadMonitoredWallets(ctx); err != nil {
		return fmt.Errorf("failed to load monitored wallets: %w", err)
	}

	if len(l.monitoredWallets) == 0 {
		zap.L().Warn("No wallets to monitor - check the portfolio and assets file")
		return fmt.Errorf("no wallets to monitor")
	}

	if err := l.performStartupRecovery(ctx); err != nil {
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	go l.pollLoop(ctx)
	go l.cleanupLoop(ctx)

	zap.L().Info("Prime transfer listener started",
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Duration("lookback_window", l.lookbackWindow))

	return nil
}

// Stop ends polling and waits for the loop to exit. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		zap.L().Info("Stopping Prime transfer listener")
		close(l.stopChan)
		<-l.doneChan
		zap.L().Info("Prime transfer listener stopped")
	})
}

func (l *Listener) pollLoop(ctx context.Context) {
	defer close(l.doneChan)

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.pollWallets(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollWallets polls every monitored wallet concurrently.
func (l *Listener) pollWallets(ctx context.Context) {
	since := l.now().Add(-l.lookbackWindow)

	zap.L().Debug("Polling wallets",
		zap.Int("wallets", len(l.monitoredWallets)),
		zap.Duration("lookback", l.lookbackWindow))

	var wg sync.WaitGroup
	for _, wallet := range l.monitoredWallets {
		wg.Add(1)
		go func(w models.WalletInfo) {
			defer wg.Done()
			if _, err := l.pollWallet(ctx, w, since); err != nil {
				zap.L().Error("Failed to poll wallet",
					zap.String("wallet_id", w.Id),
					zap.String("asset_symbol", w.AssetSymbol),
					zap.Error(err))
			}
		}(wallet)
	}
	wg.Wait()
}

// pollWallet processes the wallet's unseen transactions and returns how many
// were handled without error.
func (l *Listener) pollWallet(ctx context.Context, wallet models.WalletInfo, since time.Time) (int, error) {
	transactions, err := l.source.ListWalletTransactions(ctx, l.portfolioId, wallet.Id, since)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	handled := 0
	for _, tx := range transactions {
		if l.isTransactionProcessed(tx.Id) {
			continue
		}
		if err := l.processTransaction(ctx, tx, wallet); err != nil {
			zap.L().Error("Failed to process transaction",
				zap.String("transaction_id", tx.Id),
				zap.String("wallet_id", wallet.Id),
				zap.String("type", tx.Type),
				zap.String("status", tx.Status),
				zap.Error(err))
			continue
		}
		handled++
	}

	if handled == 0 && len(transactions) > 0 {
		zap.L().Debug("No new transactions",
			zap.String("wallet_id", wallet.Id),
			zap.String("asset", wallet.AssetSymbol),
			zap.Int("total", len(transactions)))
	}
	return handled, nil
}

func (l *Listener) processTransaction(ctx context.Context, tx models.PrimeTransaction, wallet models.WalletInfo) error {
	switch tx.Type {
	case models.PrimeTypeDeposit:
		return l.processDeposit(ctx, tx, wallet)
	case models.PrimeTypeWithdrawal:
		return l.processWithdrawal(ctx, tx, wallet)
	default:
		zap.L().Debug("Ignoring transaction type",
			zap.String("transaction_id", tx.Id),
			zap.String("type", tx.Type))
		l.markTransactionProcessed(tx.Id)
		return nil
	}
}

// performStartupRecovery replays the lookback window once before polling so
// transfers completed during downtime are recorded. The ledger absorbs replays.
func (l *Listener) performStartupRecovery(ctx context.Context) error {
	recoveryStart := l.now().Add(-l.lookbackWindow)
	zap.L().Info("Starting startup recovery",
		zap.Time("recovery_start", recoveryStart),
		zap.Duration("lookback_window", l.lookbackWindow))

	var totalRecovered int
	var failedWallets []string
	for _, wallet := range l.monitoredWallets {
		recovered, err := l.pollWallet(ctx, wallet, recoveryStart)
		if err != nil {
			zap.L().Error("Failed to recover transactions for wallet",
				zap.String("wallet_id", wallet.Id),
				zap.String("asset_symbol", wallet.AssetSymbol),
				zap.Error(err))
			failedWallets = append(failedWallets, fmt.Sprintf("%s(%s)", wallet.AssetSymbol, wallet.Id))
			continue
		}
		totalRecovered += recovered
	}

	if len(failedWallets) > 0 {
		zap.L().Warn("Startup recovery completed with some failures",
			zap.Int("total_transactions_recovered", totalRecovered),
			zap.Int("total_wallets", len(l.monitoredWallets)),
			zap.Strings("failed_wallets", failedWallets))

		if len(failedWallets) > len(l.monitoredWallets)/2 {
			return fmt.Errorf("recovery failed for majority of wallets (%d/%d): %v",
				len(failedWallets), len(l.monitoredWallets), failedWallets)
		}
		return nil
	}

	zap.L().Info("Startup recovery completed",
		zap.Int("total_transactions_recovered", totalRecovered),
		zap.Int("total_wallets", len(l.monitoredWallets)))
	return nil
}
