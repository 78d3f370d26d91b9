package store

import (
	"context"
	"errors"
	"fmt"

	"spend-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
// Not-found messages deliberately carry no identifiers.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrSpendingLimitNotFound  = errors.New("spending limit not found")
	ErrLockNotFound           = errors.New("funds lock not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidAmount          = errors.New("amount must be non-zero")
	ErrInvalidRate            = errors.New("invalid fx rate")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConfiguration          = errors.New("configuration error")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrActiveLockExists       = errors.New("active funds lock already exists")
)

// InsufficientFundsError reports how far short a request fell.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
	Asset     string
}

// Shortfall is the amount still missing to satisfy the request.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: requested %s %s, available %s, shortfall %s",
		ErrInsufficientFunds.Error(), e.Requested.String(), e.Asset, e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// LockedFundsFilter selects the LOCKED funds locks counted against a balance.
type LockedFundsFilter struct {
	UserId      string
	TokenSymbol string
	Chain       string
	Network     string
}

// UserStore resolves users from the identifiers external systems hand us.
type UserStore interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	FindUserByExternalId(ctx context.Context, externalId string) (*models.User, error)
	FindUserByCustomerId(ctx context.Context, customerId string) (*models.User, error)
	FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error)
}

// FundsLockStore reads funds locks outside of a unit of work.
type FundsLockStore interface {
	GetFundsLock(ctx context.Context, lockId string) (*models.FundsLock, error)
	ListFundsLocks(ctx context.Context, userId, status string) ([]models.FundsLock, error)
	SumLockedFunds(ctx context.Context, filter LockedFundsFilter) (decimal.Decimal, error)
}

// Tx is one atomic, isolated unit of work. Everything written through a Tx
// commits together or not at all.
type Tx interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)

	// --- Spending limits ---
	// ListUsableSpendingLimits returns limits with naira_remaining > 0, oldest first.
	ListUsableSpendingLimits(ctx context.Context, userId string) ([]models.SpendingLimit, error)
	GetSpendingLimitByOrder(ctx context.Context, orderId string) (*models.SpendingLimit, error)
	InsertSpendingLimit(ctx context.Context, limit *models.SpendingLimit) error
	// UpdateSpendingLimitRemaining fails with ErrConcurrentModification when
	// the stored remaining no longer equals expected.
	UpdateSpendingLimitRemaining(ctx context.Context, limitId string, expected, remaining decimal.Decimal) error

	// --- Transactions ---
	GetTransactionByAuthorization(ctx context.Context, userId, authorizationId string) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, userId, txType, reference string) (*models.Transaction, error)
	// InsertTransaction returns ErrDuplicateTransaction on a uniqueness conflict.
	InsertTransaction(ctx context.Context, transaction *models.Transaction) error
	InsertTransactionChunks(ctx context.Context, chunks []models.TransactionChunk) error
	UpdateTransactionStatus(ctx context.Context, transactionId, status string) error

	// --- Funds locks ---
	GetActiveFundsLock(ctx context.Context, userId, subUserId, lockType string) (*models.FundsLock, error)
	GetFundsLock(ctx context.Context, lockId string) (*models.FundsLock, error)
	InsertFundsLock(ctx context.Context, lock *models.FundsLock) error
	UpdateFundsLockStatus(ctx context.Context, lockId, status string) error
}

// LedgerStore defines the contract every backend must satisfy.
type LedgerStore interface {
	UserStore
	FundsLockStore

	// RunInTx executes fn inside one unit of work. A non-nil error from fn
	// rolls back every write made through tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// --- Reads ---
	ListSpendingLimits(ctx context.Context, userId string) ([]models.SpendingLimit, error)
	GetTransactionByAuthorization(ctx context.Context, userId, authorizationId string) (*models.Transaction, error)
	GetTransactionChunks(ctx context.Context, transactionId string) ([]models.TransactionChunk, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)

	// --- Lifecycle ---
	Close()
}
