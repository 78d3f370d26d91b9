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

	"spend-ledger-go/internal/metrics"
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepositParams describes a verified external credit. Reference is the
// idempotency key, normally the on-chain hash or the provider's transfer id.
type DepositParams struct {
	UserId          string
	UsdAmount       decimal.Decimal
	NairaAmount     decimal.Decimal
	Reference       string
	TransactionHash string
	ToAddress       string
	Token           models.TokenInfo
}

// WithdrawalParams describes the ledger effect of a completed outbound transfer.
type WithdrawalParams struct {
	UserId          string
	UsdAmount       decimal.Decimal
	NairaAmount     decimal.Decimal
	Reference       string
	TransactionHash string
	ToAddress       string
	Token           models.TokenInfo
	// SubUserId and LockType identify a funds lock this transfer settles.
	SubUserId string
	LockType  string
}

type TransferResult struct {
	Transaction *models.Transaction
	Duplicate   bool
	// ReleasedLock is the funds lock freed by a withdrawal, if any.
	ReleasedLock *models.FundsLock
}

// RecordDeposit records a completed deposit. A deposit whose reference was
// already recorded for the user returns the original transaction.
func (s *Service) RecordDeposit(ctx context.Context, params DepositParams) (result *TransferResult, err error) {
	done := metrics.ObserveOp("deposit")
	defer func() { done(err) }()

	result, err = s.recordTransfer(ctx, models.TransactionTypeDeposit, transferFields{
		userId:    params.UserId,
		usd:       params.UsdAmount,
		naira:     params.NairaAmount,
		reference: params.Reference,
		hash:      params.TransactionHash,
		toAddress: params.ToAddress,
		token:     params.Token,
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		s.mirrorPost("deposit", func(m Mirror) error { return m.PostDeposit(ctx, result.Transaction) })
	}
	return result, nil
}

// RecordWithdrawal records a completed withdrawal and, when the transfer
// settles a sub-user obligation, frees the matching LOCKED funds lock in the
// same unit of work.
func (s *Service) RecordWithdrawal(ctx context.Context, params WithdrawalParams) (result *TransferResult, err error) {
	done := metrics.ObserveOp("withdrawal")
	defer func() { done(err) }()

	result, err = s.recordTransfer(ctx, models.TransactionTypeWithdrawal, transferFields{
		userId:    params.UserId,
		usd:       params.UsdAmount,
		naira:     params.NairaAmount,
		reference: params.Reference,
		hash:      params.TransactionHash,
		toAddress: params.ToAddress,
		token:     params.Token,
		subUserId: params.SubUserId,
		lockType:  params.LockType,
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		s.mirrorPost("withdrawal", func(m Mirror) error { return m.PostWithdrawal(ctx, result.Transaction) })
	}
	return result, nil
}

type transferFields struct {
	userId    string
	usd       decimal.Decimal
	naira     decimal.Decimal
	reference string
	hash      string
	toAddress string
	token     models.TokenInfo
	subUserId string
	lockType  string
}

func (s *Service) recordTransfer(ctx context.Context, txType string, f transferFields) (*TransferResult, error) {
	usd := f.usd.Abs()
	naira := f.naira.Abs()
	if usd.IsZero() && naira.IsZero() {
		return nil, store.ErrInvalidAmount
	}
	if f.reference == "" {
		f.reference = f.hash
	}

	zap.L().Info("Recording transfer",
		zap.String("type", txType),
		zap.String("user_id", f.userId),
		zap.String("usd_amount", usd.String()),
		zap.String("naira_amount", naira.String()),
		zap.String("reference", f.reference))

	unlock := s.lockUser(f.userId)
	defer unlock()

	var result *TransferResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, f.userId); err != nil {
			return err
		}

		if f.reference != "" {
			existing, err := tx.GetTransactionByReference(ctx, f.userId, txType, f.reference)
			if err == nil {
				result = &TransferResult{Transaction: existing, Duplicate: true}
				return nil
			}
			if !errors.Is(err, store.ErrTransactionNotFound) {
				return err
			}
		}

		rate := decimal.Zero
		if usd.IsPositive() && naira.IsPositive() {
			rate = naira.Div(usd)
		}

		var tokenInfo []models.TokenInfo
		if f.token != (models.TokenInfo{}) {
			tokenInfo = []models.TokenInfo{f.token}
		}

		now := s.now()
		txn := &models.Transaction{
			Id:                   uuid.New().String(),
			UserId:               f.userId,
			NairaAmount:          naira,
			UsdAmount:            usd,
			EffectiveFxRate:      rate,
			Type:                 txType,
			Status:               models.TransactionStatusCompleted,
			TransactionReference: f.reference,
			TokenInfo:            tokenInfo,
			ToAddress:            f.toAddress,
			TransactionHash:      f.hash,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		result = &TransferResult{Transaction: txn}

		if f.subUserId == "" {
			return nil
		}
		lockType := f.lockType
		if lockType == "" {
			lockType = models.FundsLockTypeSubUserCardOrder
		}
		lock, err := tx.GetActiveFundsLock(ctx, f.userId, f.subUserId, lockType)
		if errors.Is(err, store.ErrLockNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateFundsLockStatus(ctx, lock.Id, models.FundsLockStatusFree); err != nil {
			return fmt.Errorf("failed to release funds lock: %w", err)
		}
		lock.Status = models.FundsLockStatusFree
		lock.UpdatedAt = now
		result.ReleasedLock = lock
		return nil
	})

	if errors.Is(err, store.ErrDuplicateTransaction) && f.reference != "" {
		existing, getErr := s.getTransferByReference(ctx, f.userId, txType, f.reference)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load concurrent duplicate: %w", getErr)
		}
		result, err = &TransferResult{Transaction: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		metrics.DuplicateEventsTotal.WithLabelValues(txType).Inc()
		zap.L().Info("Duplicate transfer reference, returning existing transaction",
			zap.String("type", txType),
			zap.String("user_id", f.userId),
			zap.String("reference", f.reference),
			zap.String("transaction_id", result.Transaction.Id))
		return result, nil
	}

	fields := []zap.Field{
		zap.String("type", txType),
		zap.String("user_id", f.userId),
		zap.String("transaction_id", result.Transaction.Id),
	}
	if result.ReleasedLock != nil {
		fields = append(fields, zap.String("released_lock_id", result.ReleasedLock.Id))
	}
	zap.L().Info("Transfer recorded", fields...)
	return result, nil
}

func (s *Service) getTransferByReference(ctx context.Context, userId, txType, reference string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = tx.GetTransactionByReference(ctx, userId, txType, reference)
		return err
	})
	return txn, err
}
