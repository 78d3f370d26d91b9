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

// Package listener polls Prime wallets and feeds completed transfers into the ledger.
package listener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/webhook"

	"go.uber.org/zap"
)

const walletTypeTrading = "TRADING"

// TransactionSource is the part of the Prime API the listener reads.
type TransactionSource interface {
	ListWallets(ctx context.Context, portfolioId, walletType string, symbols []string) ([]models.Wallet, error)
	ListWalletTransactions(ctx context.Context, portfolioId, walletId string, startTime time.Time) ([]models.PrimeTransaction, error)
}

// DepositHandler credits a deposit to the user owning the destination address.
type DepositHandler interface {
	ProcessDeposit(ctx context.Context, d webhook.Deposit) (*models.EventResult, error)
}

// WithdrawalRecorder records a completed outbound transfer.
type WithdrawalRecorder interface {
	RecordWithdrawal(ctx context.Context, params ledger.WithdrawalParams) (*ledger.TransferResult, error)
}

// UserLister lists every user, for matching withdrawals by idempotency key.
type UserLister interface {
	GetUsers(ctx context.Context) ([]models.User, error)
}

// Config contains configuration for Listener
type Config struct {
	Source          TransactionSource
	Deposits        DepositHandler
	Withdrawals     WithdrawalRecorder
	Users           UserLister
	PortfolioId     string
	AssetsFile      string
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// Listener polls Prime for new transfers and records them
type Listener struct {
	source      TransactionSource
	deposits    DepositHandler
	withdrawals WithdrawalRecorder
	users       UserLister

	processedTxIds  map[string]time.Time
	mutex           sync.RWMutex
	lookbackWindow  time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	portfolioId      string
	assetsFile       string
	monitoredWallets []models.WalletInfo

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// New creates a listener. Zero intervals fall back to sane defaults.
func New(cfg Config) *Listener {
	l := &Listener{
		source:          cfg.Source,
		deposits:        cfg.Deposits,
		withdrawals:     cfg.Withdrawals,
		users:           cfg.Users,
		processedTxIds:  make(map[string]time.Time),
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		now:             func() time.Time { return time.Now().UTC() },
		portfolioId:     cfg.PortfolioId,
		assetsFile:      cfg.AssetsFile,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
	if l.lookbackWindow <= 0 {
		l.lookbackWindow = 6 * time.Hour
	}
	if l.pollingInterval <= 0 {
		l.pollingInterval = 30 * time.Second
	}
	if l.cleanupInterval <= 0 {
		l.cleanupInterval = 15 * time.Minute
	}
	return l
}

// LoadMonitoredWallets discovers the trading wallets to poll. With no assets
// file every trading wallet in the portfolio is monitored; otherwise only
// wallets for the listed symbols.
func (l *Listener) LoadMonitoredWallets(ctx context.Context) error {
	var symbols []string
	if l.assetsFile != "" {
		assetConfigs, err := common.LoadAssetConfig(l.assetsFile)
		if err != nil {
			return fmt.Errorf("failed to load assets from %s: %w", l.assetsFile, err)
		}
		symbols = uniqueSymbols(assetConfigs)
	}

	zap.L().Info("Discovering wallets from Prime portfolio",
		zap.String("portfolio_id", l.portfolioId),
		zap.Strings("symbols", symbols))

	wallets, err := l.source.ListWallets(ctx, l.portfolioId, walletTypeTrading, symbols)
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}

	l.monitoredWallets = make([]models.WalletInfo, 0, len(wallets))
	seen := make(map[string]bool)
	for _, w := range wallets {
		if seen[w.Id] {
			continue
		}
		seen[w.Id] = true
		l.monitoredWallets = append(l.monitoredWallets, models.WalletInfo{
			Id:          w.Id,
			AssetSymbol: w.Symbol,
		})
	}

	zap.L().Info("Monitoring Prime wallets", zap.Int("count", len(l.monitoredWallets)))
	for _, w := range l.monitoredWallets {
		zap.L().Debug("  Wallet",
			zap.String("id", w.Id),
			zap.String("asset", w.AssetSymbol))
	}
	return nil
}

func uniqueSymbols(assetConfigs []common.AssetConfig) []string {
	symbols := make([]string, 0, len(assetConfigs))
	seen := make(map[string]bool)
	for _, ac := range assetConfigs {
		if !seen[ac.Symbol] {
			seen[ac.Symbol] = true
			symbols = append(symbols, ac.Symbol)
		}
	}
	return symbols
}

// MonitoredWallets returns a copy of the wallets being polled.
func (l *Listener) MonitoredWallets() []models.WalletInfo {
	out := make([]models.WalletInfo, len(l.monitoredWallets))
	copy(out, l.monitoredWallets)
	return out
}

func (l *Listener) isTransactionProcessed(txId string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, exists := l.processedTxIds[txId]
	return exists
}

func (l *Listener) markTransactionProcessed(txId string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.processedTxIds[txId] = l.now()
}

// cleanupLoop periodically cleans old processed transaction IDs
func (l *Listener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupProcessedTransactions()
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessedTransactions forgets ids older than the lookback window.
// Anything older can no longer come back from a poll.
func (l *Listener) cleanupProcessedTransactions() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := l.now().Add(-l.lookbackWindow)
	cleaned := 0

	for txId, processedTime := range l.processedTxIds {
		if processedTime.Before(cutoff) {
			delete(l.processedTxIds, txId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed transactions",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(l.processedTxIds)))
	}
}

// findUserByIdempotencyKeyPrefix matches the first segment of a withdrawal's
// idempotency key against the first segment of each user id.
func (l *Listener) findUserByIdempotencyKeyPrefix(ctx context.Context, idempotencyKey string) (string, error) {
	if idempotencyKey == "" {
		return "", fmt.Errorf("empty idempotency key")
	}

	prefix, _, _ := strings.Cut(idempotencyKey, "-")
	if prefix == "" {
		return "", fmt.Errorf("invalid idempotency key format: %s", idempotencyKey)
	}

	users, err := l.users.GetUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get users: %w", err)
	}

	for _, user := range users {
		userPrefix, _, _ := strings.Cut(user.Id, "-")
		if userPrefix == prefix {
			zap.L().Debug("Matched withdrawal to user by id prefix",
				zap.String("user_id", user.Id),
				zap.String("idempotency_key", idempotencyKey))
			return user.Id, nil
		}
	}

	return "", fmt.Errorf("no user matches idempotency key prefix %s", prefix)
}

// settledLockTypes are the funds lock types a withdrawal key may name.
var settledLockTypes = map[string]bool{
	models.FundsLockTypeSubUserCardOrder: true,
}

// obligationFromIdempotencyKey extracts the sub-user obligation a withdrawal
// settles. Keys of the form <userPrefix>-<subUserId>-<LOCK_TYPE> name one;
// any other key yields ok == false.
func obligationFromIdempotencyKey(idempotencyKey string) (subUserId, lockType string, ok bool) {
	_, rest, found := strings.Cut(idempotencyKey, "-")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", "", false
	}
	subUserId, lockType = rest[:i], rest[i+1:]
	if !settledLockTypes[lockType] {
		return "", "", false
	}
	return subUserId, lockType, true
}

// symbolMapping folds network-prefixed Prime symbols into one canonical token.
var symbolMapping = map[string]string{
	"USDC":     "USDC",
	"BASEUSDC": "USDC",
	"SPLUSDC":  "USDC",
	"AVAUSDC":  "USDC",
	"ARBUSDC":  "USDC",
	"ETH":      "ETH",
	"BASEETH":  "ETH",
}

// usdPegged are the canonical tokens whose amount is booked 1:1 as USD.
var usdPegged = map[string]bool{
	"USDC":  true,
	"USDT":  true,
	"PYUSD": true,
	"USD":   true,
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if canonical, ok := symbolMapping[symbol]; ok {
		return canonical
	}
	return symbol
}
