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

// SpendingBalance is the aggregate of a user's remaining spending limits
type SpendingBalance struct {
	UserId         string          `json:"user_id"`
	NairaRemaining decimal.Decimal `json:"naira_remaining"`
	UsdRemaining   decimal.Decimal `json:"usd_remaining"`
	ActiveLimits   int             `json:"active_limits"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id                   string          `json:"id"`
	Type                 string          `json:"type"`
	Status               string          `json:"status"`
	NairaAmount          decimal.Decimal `json:"naira_amount"`
	UsdAmount            decimal.Decimal `json:"usd_amount"`
	EffectiveFxRate      decimal.Decimal `json:"effective_fx_rate"`
	AuthorizationId      string          `json:"authorization_id,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	MerchantName         string          `json:"merchant_name,omitempty"`
	Channel              string          `json:"channel,omitempty"`
	Category             string          `json:"category,omitempty"`
	TokenInfo            []TokenInfo     `json:"token_info,omitempty"`
	ToAddress            string          `json:"to_address,omitempty"`
	TransactionHash      string          `json:"transaction_hash,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// EventResult represents the outcome of processing one webhook event
type EventResult struct {
	Event         string `json:"event"`
	Handled       bool   `json:"handled"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	UserId        string `json:"user_id,omitempty"`
	TransactionId string `json:"transaction_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
}
