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
	"errors"
	"fmt"
	"strings"

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettledOrder is the result handed over by the offramp service once an
// order backing a new spending limit has settled.
type SettledOrder struct {
	OrderId           string
	UserId            string
	UsdAmount         decimal.Decimal
	FxRate            decimal.Decimal
	Status            string
	ChainType         string
	TokenSymbol       string
	BlockchainNetwork string
}

var settledStatuses = map[string]bool{
	"settled":   true,
	"completed": true,
	"success":   true,
}

// IsSettled reports whether status is one of the offramp settlement states.
func IsSettled(status string) bool {
	return settledStatuses[strings.ToLower(status)]
}

type LimitResult struct {
	Limit     *models.SpendingLimit
	Duplicate bool
}

// CreateSpendingLimit turns a settled order into a spending limit with
// naira_amount = usd_amount * fx_rate. Replaying the same order returns the
// existing limit.
func (s *Service) CreateSpendingLimit(ctx context.Context, order SettledOrder) (result *LimitResult, err error) {
	done := metrics.ObserveOp("create_limit")
	defer func() { done(err) }()

	if order.OrderId == "" {
		return nil, fmt.Errorf("%w: order id is required", store.ErrConfiguration)
	}
	if !IsSettled(order.Status) {
		return nil, fmt.Errorf("order %s is not settled (status %q)", order.OrderId, order.Status)
	}
	if !order.FxRate.IsPositive() {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidRate, order.FxRate.String())
	}
	if !order.UsdAmount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	network := order.BlockchainNetwork
	if network == "" {
		network = s.defaultNetwork
	}
	if network == "" {
		return nil, fmt.Errorf("%w: blockchain network is not set for order and no default is configured", store.ErrConfiguration)
	}

	unlock := s.lockUser(order.UserId)
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, order.UserId); err != nil {
			return err
		}

		existing, err := tx.GetSpendingLimitByOrder(ctx, order.OrderId)
		if err == nil {
			if existing.UserId != order.UserId {
				return fmt.Errorf("%w: order already used", store.ErrDuplicateTransaction)
			}
			result = &LimitResult{Limit: existing, Duplicate: true}
			return nil
		}
		if !errors.Is(err, store.ErrSpendingLimitNotFound) {
			return err
		}

		naira := order.UsdAmount.Mul(order.FxRate)
		limit := &models.SpendingLimit{
			Id:                uuid.New().String(),
			UserId:            order.UserId,
			OrderId:           order.OrderId,
			UsdAmount:         order.UsdAmount,
			FxRate:            order.FxRate,
			NairaAmount:       naira,
			NairaRemaining:    naira,
			ChainType:         order.ChainType,
			TokenSymbol:       order.TokenSymbol,
			BlockchainNetwork: network,
			CreatedAt:         s.now(),
		}
		if err := tx.InsertSpendingLimit(ctx, limit); err != nil {
			return err
		}
		result = &LimitResult{Limit: limit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		zap.L().Info("Spending limit already exists for order",
			zap.String("order_id", order.OrderId),
			zap.String("spending_limit_id", result.Limit.Id))
		return result, nil
	}

	zap.L().Info("Spending limit created",
		zap.String("user_id", order.UserId),
		zap.String("order_id", order.OrderId),
		zap.String("spending_limit_id", result.Limit.Id),
		zap.String("usd_amount", result.Limit.UsdAmount.String()),
		zap.String("fx_rate", result.Limit.FxRate.String()),
		zap.String("naira_amount", result.Limit.NairaAmount.String()))

	s.mirrorPost("create_limit", func(m Mirror) error { return m.PostSpendingLimit(ctx, result.Limit) })
	return result, nil
}
