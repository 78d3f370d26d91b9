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

// Package fundslock reserves part of a sponsor's on-chain balance for a
// pending sub-user obligation.
package fundslock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/money"
	"spend-ledger-go/internal/store"
	"spend-ledger-go/internal/syncutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceOracle reports the raw on-chain balance of an address.
type BalanceOracle interface {
	GetOnChainBalance(ctx context.Context, address, token, chain, network string) (decimal.Decimal, error)
}

// Store is the persistence a funds lock service needs.
type Store interface {
	store.FundsLockStore
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
}

type LockParams struct {
	UserId      string
	SubUserId   string
	Type        string
	Amount      decimal.Decimal
	TokenSymbol string
	Chain       string
	Network     string
}

// BalanceQuery identifies the balance a lock is taken against.
type BalanceQuery struct {
	UserId      string
	Address     string
	TokenSymbol string
	Chain       string
	Network     string
}

type Service struct {
	store  Store
	oracle BalanceOracle
	locks  *syncutil.ShardedMutex
	now    func() time.Time
}

// NewService wires the funds lock service. locks must be the same sharded
// mutex the ledger uses; oracle may be nil when only Lock and Release are needed.
func NewService(st Store, oracle BalanceOracle, locks *syncutil.ShardedMutex) *Service {
	if locks == nil {
		locks = &syncutil.ShardedMutex{}
	}
	return &Service{
		store:  st,
		oracle: oracle,
		locks:  locks,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) lockUser(userId string) func() {
	return s.locks.Lock("user:" + userId)
}

// Lock creates a LOCKED reservation. A second active lock for the same
// (sponsor, sub-user, type) fails with store.ErrActiveLockExists.
func (s *Service) Lock(ctx context.Context, params LockParams) (lock *models.FundsLock, err error) {
	done := metrics.ObserveOp("funds_lock")
	defer func() { done(err) }()

	unlock := s.lockUser(params.UserId)
	defer unlock()

	return s.lock(ctx, params)
}

func (s *Service) lock(ctx context.Context, params LockParams) (*models.FundsLock, error) {
	if !params.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	if params.Type == "" {
		params.Type = models.FundsLockTypeSubUserCardOrder
	}

	now := s.now()
	lock := &models.FundsLock{
		Id:                uuid.New().String(),
		UserId:            params.UserId,
		SubUserId:         params.SubUserId,
		AmountLocked:      params.Amount,
		TokenSymbolLocked: params.TokenSymbol,
		Chain:             params.Chain,
		BlockchainNetwork: params.Network,
		Type:              params.Type,
		Status:            models.FundsLockStatusLocked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, params.UserId); err != nil {
			return err
		}
		_, err := tx.GetActiveFundsLock(ctx, params.UserId, params.SubUserId, params.Type)
		if err == nil {
			return store.ErrActiveLockExists
		}
		if !errors.Is(err, store.ErrLockNotFound) {
			return err
		}
		return tx.InsertFundsLock(ctx, lock)
	})
	if err != nil {
		zap.L().Warn("Funds lock refused",
			zap.String("user_id", params.UserId),
			zap.String("sub_user_id", params.SubUserId),
			zap.String("type", params.Type),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Funds locked",
		zap.String("lock_id", lock.Id),
		zap.String("user_id", lock.UserId),
		zap.String("sub_user_id", lock.SubUserId),
		zap.String("amount", lock.AmountLocked.String()),
		zap.String("token_symbol", lock.TokenSymbolLocked))
	return lock, nil
}

// Release frees a lock. Releasing an already FREE lock is a no-op.
func (s *Service) Release(ctx context.Context, lockId string) (lock *models.FundsLock, err error) {
	done := metrics.ObserveOp("funds_release")
	defer func() { done(err) }()

	current, err := s.store.GetFundsLock(ctx, lockId)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(current.UserId)
	defer unlock()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := tx.GetFundsLock(ctx, lockId)
		if err != nil {
			return err
		}
		lock = l
		if l.Status == models.FundsLockStatusFree {
			return nil
		}
		if err := tx.UpdateFundsLockStatus(ctx, lockId, models.FundsLockStatusFree); err != nil {
			return err
		}
		lock.Status = models.FundsLockStatusFree
		lock.UpdatedAt = s.now()
		zap.L().Info("Funds lock released",
			zap.String("lock_id", lockId),
			zap.String("user_id", l.UserId),
			zap.String("amount", l.AmountLocked.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// LockedAmount sums the user's LOCKED reservations for one token/chain/network.
func (s *Service) LockedAmount(ctx context.Context, q BalanceQuery) (decimal.Decimal, error) {
	return s.store.SumLockedFunds(ctx, store.LockedFundsFilter{
		UserId:      q.UserId,
		TokenSymbol: q.TokenSymbol,
		Chain:       q.Chain,
		Network:     q.Network,
	})
}

// AvailableBalance is the on-chain balance minus every matching LOCKED
// reservation, floored at zero.
func (s *Service) AvailableBalance(ctx context.Context, q BalanceQuery) (decimal.Decimal, error) {
	if s.oracle == nil {
		return decimal.Zero, fmt.Errorf("%w: no balance oracle configured", store.ErrConfiguration)
	}

	raw, err := s.oracle.GetOnChainBalance(ctx, q.Address, q.TokenSymbol, q.Chain, q.Network)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get on-chain balance: %w", err)
	}
	locked, err := s.LockedAmount(ctx, q)
	if err != nil {
		return decimal.Zero, err
	}

	available := money.ClampZero(raw.Sub(locked))
	zap.L().Debug("Computed available balance",
		zap.String("user_id", q.UserId),
		zap.String("token_symbol", q.TokenSymbol),
		zap.String("on_chain", raw.String()),
		zap.String("locked", locked.String()),
		zap.String("available", available.String()))
	return available, nil
}

// LockIfAvailable takes the lock only when the unobligated balance covers
// the amount. Check and insert happen under the user's serialization key.
func (s *Service) LockIfAvailable(ctx context.Context, q BalanceQuery, params LockParams) (lock *models.FundsLock, err error) {
	done := metrics.ObserveOp("funds_lock_if_available")
	defer func() { done(err) }()

	params.UserId = q.UserId
	params.TokenSymbol = q.TokenSymbol
	params.Chain = q.Chain
	params.Network = q.Network

	unlock := s.lockUser(q.UserId)
	defer unlock()

	available, err := s.AvailableBalance(ctx, q)
	if err != nil {
		return nil, err
	}
	if available.LessThan(params.Amount) {
		return nil, &store.InsufficientFundsError{
			Requested: params.Amount,
			Available: available,
			Asset:     q.TokenSymbol,
		}
	}
	return s.lock(ctx, params)
}
