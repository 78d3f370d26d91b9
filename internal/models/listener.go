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

import "time"

// Prime wallet transaction types and statuses the listener acts on.
const (
	PrimeTypeDeposit    = "DEPOSIT"
	PrimeTypeWithdrawal = "WITHDRAWAL"

	PrimeStatusImported  = "TRANSACTION_IMPORTED"
	PrimeStatusDone      = "TRANSACTION_DONE"
	PrimeStatusCancelled = "TRANSACTION_CANCELLED"
	PrimeStatusRejected  = "TRANSACTION_REJECTED"
	PrimeStatusFailed    = "TRANSACTION_FAILED"
	PrimeStatusExpired   = "TRANSACTION_EXPIRED"
)

// WalletInfo is a Prime trading wallet polled for transfers
type WalletInfo struct {
	Id          string `json:"id"`
	AssetSymbol string `json:"asset_symbol"`
}

// PrimeTransferInfo is the transfer_to side of a Prime transaction
type PrimeTransferInfo struct {
	Type              string `json:"type"`
	Value             string `json:"value"`
	Address           string `json:"address"`
	AccountIdentifier string `json:"account_identifier"`
}

// PrimeTransaction is the subset of a Prime wallet transaction the ledger consumes
type PrimeTransaction struct {
	Id             string            `json:"id"`
	WalletId       string            `json:"wallet_id"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	Symbol         string            `json:"symbol"`
	Amount         string            `json:"amount"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	TransferTo     PrimeTransferInfo `json:"transfer_to"`
	TransactionId  string            `json:"transaction_id"`
	Network        string            `json:"network"`
	IdempotencyKey string            `json:"idempotency_key"`
	BlockchainIds  []string          `json:"blockchain_ids"`
}

// DestinationAddress is the address a deposit landed on. Prime reports
// memo-based networks through the account identifier.
func (t PrimeTransaction) DestinationAddress() string {
	if t.TransferTo.AccountIdentifier != "" {
		return t.TransferTo.AccountIdentifier
	}
	return t.TransferTo.Address
}

// ChainHash prefers the on-chain id over Prime's own transaction id.
func (t PrimeTransaction) ChainHash() string {
	if len(t.BlockchainIds) > 0 && t.BlockchainIds[0] != "" {
		return t.BlockchainIds[0]
	}
	return t.TransactionId
}

// IsTerminalFailure reports whether the transfer ended without moving funds.
func (t PrimeTransaction) IsTerminalFailure() bool {
	switch t.Status {
	case PrimeStatusCancelled, PrimeStatusRejected, PrimeStatusFailed, PrimeStatusExpired:
		return true
	}
	return false
}
