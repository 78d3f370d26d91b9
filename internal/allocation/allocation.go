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

// Package allocation drains spending limits oldest-first to cover a spend.
package allocation

import (
	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/money"

	"github.com/shopspring/decimal"
)

// Chunk is the portion of a spend taken from one limit.
type Chunk struct {
	SpendingLimitId string
	NairaUsed       decimal.Decimal
	UsdEquivalent   decimal.Decimal
	Token           models.TokenInfo
}

// Result is the outcome of a FIFO allocation.
type Result struct {
	Requested       decimal.Decimal
	Chunks          []Chunk
	UpdatedLimits   []models.SpendingLimit // only limits that were drawn from, with new NairaRemaining
	Allocated       decimal.Decimal
	UsdTotal        decimal.Decimal
	EffectiveFxRate decimal.Decimal
	Remainder       decimal.Decimal
	InvalidRateIds  []string // limits drawn with fx_rate <= 0
}

// FullyAllocated reports whether the limits covered the whole request.
func (r Result) FullyAllocated() bool {
	return r.Remainder.IsZero()
}

// TotalRemaining is the naira still available across limits.
func TotalRemaining(limits []models.SpendingLimit) decimal.Decimal {
	total := decimal.Zero
	for _, l := range limits {
		total = total.Add(money.ClampZero(l.NairaRemaining))
	}
	return total
}

// TokenInfo returns the distinct chain/network/token tuples drawn from, in draw order.
func (r Result) TokenInfo() []models.TokenInfo {
	seen := make(map[models.TokenInfo]bool)
	var out []models.TokenInfo
	for _, c := range r.Chunks {
		if seen[c.Token] {
			continue
		}
		seen[c.Token] = true
		out = append(out, c.Token)
	}
	return out
}

// Allocate covers amount from limits in the order given, which must be FIFO
// (created_at ascending). The sign of amount is discarded. The input slice
// is not modified.
func Allocate(amount decimal.Decimal, limits []models.SpendingLimit) Result {
	need := amount.Abs()
	result := Result{
		Requested:       need,
		Allocated:       decimal.Zero,
		UsdTotal:        decimal.Zero,
		EffectiveFxRate: decimal.Zero,
	}

	for _, limit := range limits {
		if !need.IsPositive() {
			break
		}

		take := money.Min(need, limit.NairaRemaining)
		if !take.IsPositive() {
			continue
		}

		usd := decimal.Zero
		if limit.FxRate.IsPositive() {
			usd = take.Div(limit.FxRate)
		} else {
			result.InvalidRateIds = append(result.InvalidRateIds, limit.Id)
		}

		result.Chunks = append(result.Chunks, Chunk{
			SpendingLimitId: limit.Id,
			NairaUsed:       take,
			UsdEquivalent:   usd,
			Token: models.TokenInfo{
				Chain:   limit.ChainType,
				Network: limit.BlockchainNetwork,
				Token:   limit.TokenSymbol,
			},
		})

		updated := limit
		updated.NairaRemaining = limit.NairaRemaining.Sub(take)
		result.UpdatedLimits = append(result.UpdatedLimits, updated)

		need = need.Sub(take)
		result.Allocated = result.Allocated.Add(take)
		result.UsdTotal = result.UsdTotal.Add(usd)
	}

	result.Remainder = money.ClampZero(need)
	if result.Allocated.IsPositive() && result.UsdTotal.IsPositive() {
		result.EffectiveFxRate = result.Allocated.Div(result.UsdTotal)
	}
	return result
}
