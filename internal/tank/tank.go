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

// Package tank rolls spending limits up into the daily tank view and
// evaluates usage thresholds.
package tank

import (
	"sort"
	"time"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/money"

	"github.com/shopspring/decimal"
)

// DefaultThresholds are the usage percentages that raise a notification.
var DefaultThresholds = []int{90, 75, 50}

// View is the tank for one calendar day in the user's timezone.
type View struct {
	UserId           string          `json:"user_id"`
	Timezone         string          `json:"timezone"`
	DayStart         time.Time       `json:"day_start"`
	Rollover         decimal.Decimal `json:"rollover"`
	TodayFaceValue   decimal.Decimal `json:"today_face_value"`
	TotalLimit       decimal.Decimal `json:"total_limit"`
	CurrentRemaining decimal.Decimal `json:"current_remaining"`
	Used             decimal.Decimal `json:"used"`
	PercentageUsed   decimal.Decimal `json:"percentage_used"`
}

// ThresholdResult is the highest threshold at or below the usage percentage.
type ThresholdResult struct {
	PercentageUsed   decimal.Decimal `json:"percentage_used"`
	Reached          bool            `json:"reached"`
	ReachedThreshold int             `json:"reached_threshold,omitempty"`
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ComputeTank builds the view for the day containing now. Limits created
// before the day start contribute their remaining balance as rollover;
// limits created during the day contribute their face value. Limits created
// after the day are ignored.
func ComputeTank(limits []models.SpendingLimit, now time.Time, loc *time.Location) View {
	dayStart := StartOfDay(now, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	view := View{
		Timezone:         loc.String(),
		DayStart:         dayStart,
		Rollover:         decimal.Zero,
		TodayFaceValue:   decimal.Zero,
		CurrentRemaining: decimal.Zero,
	}

	for _, l := range limits {
		remaining := money.ClampZero(l.NairaRemaining)
		switch {
		case l.CreatedAt.Before(dayStart):
			view.Rollover = view.Rollover.Add(remaining)
		case l.CreatedAt.Before(dayEnd):
			view.TodayFaceValue = view.TodayFaceValue.Add(l.NairaAmount)
		default:
			continue
		}
		view.CurrentRemaining = view.CurrentRemaining.Add(remaining)
	}

	view.TotalLimit = view.Rollover.Add(view.TodayFaceValue)
	view.Used = money.ClampZero(view.TotalLimit.Sub(view.CurrentRemaining))
	view.PercentageUsed = money.Percentage(view.Used, view.TotalLimit)
	return view
}

// CheckThreshold returns the highest threshold that does not exceed
// percentageUsed. thresholds may be given in any order.
func CheckThreshold(percentageUsed decimal.Decimal, thresholds []int) ThresholdResult {
	sorted := append([]int(nil), thresholds...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	result := ThresholdResult{PercentageUsed: percentageUsed}
	for _, th := range sorted {
		if decimal.NewFromInt(int64(th)).LessThanOrEqual(percentageUsed) {
			result.Reached = true
			result.ReachedThreshold = th
			break
		}
	}
	return result
}

// AggregateBalance converts each limit's remaining naira to USD at that
// limit's own rate. Limits with a non-positive rate add no USD.
func AggregateBalance(userId string, limits []models.SpendingLimit) models.SpendingBalance {
	balance := models.SpendingBalance{
		UserId:         userId,
		NairaRemaining: decimal.Zero,
		UsdRemaining:   decimal.Zero,
	}
	for _, l := range limits {
		remaining := money.ClampZero(l.NairaRemaining)
		if remaining.IsZero() {
			continue
		}
		balance.ActiveLimits++
		balance.NairaRemaining = balance.NairaRemaining.Add(remaining)
		balance.UsdRemaining = balance.UsdRemaining.Add(money.SafeDiv(remaining, l.FxRate))
	}
	return balance
}
