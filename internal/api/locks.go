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

	"github.com/shopspring/decimal"
)

// LockRequest reserves part of a sponsor's balance. When Address is set the
// lock is only granted if the unobligated on-chain balance covers Amount.
type LockRequest struct {
	UserId      string          `json:"-"`
	SubUserId   string          `json:"sub_user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	TokenSymbol string          `json:"token_symbol"`
	Chain       string          `json:"chain"`
	Network     string          `json:"network"`
	Address     string          `json:"address"`
}

func (s *LedgerService) ListFundsLocks(ctx context.Context, userId, status string) ([]models.FundsLock, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}
	if _, err := s.db.GetUserById(ctx, userId); err != nil {
		return nil, err
	}
	return s.db.ListFundsLocks(ctx, userId, status)
}

func (s *LedgerService) LockFunds(ctx context.Context, req LockRequest) (*models.FundsLock, error) {
	if req.UserId == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}

	params := fundslock.LockParams{
		UserId:      req.UserId,
		SubUserId:   req.SubUserId,
		Type:        req.Type,
		Amount:      req.Amount,
		TokenSymbol: req.TokenSymbol,
		Chain:       req.Chain,
		Network:     req.Network,
	}
	if req.Address == "" {
		return s.funds.Lock(ctx, params)
	}

	return s.funds.LockIfAvailable(ctx, fundslock.BalanceQuery{
		UserId:      req.UserId,
		Address:     req.Address,
		TokenSymbol: req.TokenSymbol,
		Chain:       req.Chain,
		Network:     req.Network,
	}, params)
}

func (s *LedgerService) ReleaseFunds(ctx context.Context, lockId string) (*models.FundsLock, error) {
	if lockId == "" {
		return nil, fmt.Errorf("%w: lock_id", ErrMissingParameter)
	}
	return s.funds.Release(ctx, lockId)
}

// AvailableBalance returns the on-chain balance less LOCKED reservations.
func (s *LedgerService) AvailableBalance(ctx context.Context, q fundslock.BalanceQuery) (decimal.Decimal, error) {
	if q.UserId == "" || q.Address == "" {
		return decimal.Zero, fmt.Errorf("%w: user_id and address", ErrMissingParameter)
	}
	return s.funds.AvailableBalance(ctx, q)
}
