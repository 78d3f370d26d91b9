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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeSpending   = "spending"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeDeposit    = "deposit"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusRefund    = "refund"
	TransactionStatusFailed    = "failed"
)

// Funds lock statuses and types
const (
	FundsLockStatusLocked = "LOCKED"
	FundsLockStatusFree   = "FREE"

	FundsLockTypeSubUserCardOrder = "SUB_USER_CARD_ORDER"
)

// User represents a user in the system
type User struct {
	Id         string    `db:"id"`
	ExternalId string    `db:"external_id"`
	CustomerId string    `db:"customer_id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Timezone   string    `db:"timezone"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Address represents a user's crypto deposit address
type Address struct {
	Id          string    `db:"id"`
	UserId      string    `db:"user_id"`
	TokenSymbol string    `db:"token_symbol"`
	Chain       string    `db:"chain"`
	Network     string    `db:"network"`
	Address     string    `db:"address"`
	CreatedAt   time.Time `db:"created_at"`
}

// SpendingLimit is a prepaid, rate-locked ticket of local currency.
// NairaRemaining only ever decreases after creation.
type SpendingLimit struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	OrderId           string          `db:"order_id"`
	UsdAmount         decimal.Decimal `db:"usd_amount"`
	FxRate            decimal.Decimal `db:"fx_rate"`
	NairaAmount       decimal.Decimal `db:"naira_amount"`
	NairaRemaining    decimal.Decimal `db:"naira_remaining"`
	ChainType         string          `db:"chain_type"`
	TokenSymbol       string          `db:"token_symbol"`
	BlockchainNetwork string          `db:"blockchain_network"`
	CreatedAt         time.Time       `db:"created_at"`
}

// TokenInfo identifies the chain/network/token a transaction drew from
type TokenInfo struct {
	Chain   string `json:"chain"`
	Network string `json:"network"`
	Token   string `json:"token"`
}

// Transaction is one user-facing financial event
type Transaction struct {
	Id                   string          `db:"id"`
	UserId               string          `db:"user_id"`
	NairaAmount          decimal.Decimal `db:"naira_amount"`
	UsdAmount            decimal.Decimal `db:"usd_amount"`
	EffectiveFxRate      decimal.Decimal `db:"effective_fx_rate"`
	Type                 string          `db:"type"`
	Status               string          `db:"status"`
	AuthorizationId      string          `db:"authorization_id"`
	TransactionReference string          `db:"transaction_reference"`
	MerchantName         string          `db:"merchant_name"`
	Channel              string          `db:"channel"`
	Category             string          `db:"category"`
	TokenInfo            []TokenInfo     `db:"token_info"`
	RecipientAddress     string          `db:"recipient_address"`
	ToAddress            string          `db:"to_address"`
	TransactionHash      string          `db:"transaction_hash"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// TransactionChunk is the slice of a spend drawn from one spending limit
type TransactionChunk struct {
	Id              string          `db:"id" json:"id"`
	TransactionId   string          `db:"transaction_id" json:"transaction_id"`
	SpendingLimitId string          `db:"spending_limit_id" json:"spending_limit_id"`
	NairaUsed       decimal.Decimal `db:"naira_used" json:"naira_used"`
	UsdEquivalent   decimal.Decimal `db:"usd_equivalent" json:"usd_equivalent"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// FundsLock reserves part of a sponsor's balance for a pending obligation
type FundsLock struct {
	Id                string          `db:"id" json:"id"`
	UserId            string          `db:"user_id" json:"user_id"`
	SubUserId         string          `db:"sub_user_id" json:"sub_user_id"`
	AmountLocked      decimal.Decimal `db:"amount_locked" json:"amount_locked"`
	TokenSymbolLocked string          `db:"token_symbol_locked" json:"token_symbol_locked"`
	Chain             string          `db:"chain" json:"chain"`
	BlockchainNetwork string          `db:"blockchain_network" json:"blockchain_network"`
	Type              string          `db:"type" json:"type"`
	Status            string          `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
