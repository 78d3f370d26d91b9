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

package main

import (
	"context"
	"fmt"

	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/models"

	"github.com/urfave/cli/v2"
)

func newBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "show the aggregate spending balance",
		Flags: userFlags(),
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				balance, err := services.Api.GetSpendingBalance(ctx, userId)
				if err != nil {
					return err
				}

				common.PrintHeader("SPENDING BALANCE", common.DefaultWidth)
				fmt.Printf("User:          %s\n", balance.UserId)
				fmt.Printf("Naira:         %s\n", common.FormatNaira(balance.NairaRemaining))
				fmt.Printf("USD:           %s\n", common.FormatUsd(balance.UsdRemaining))
				fmt.Printf("Active limits: %d\n", balance.ActiveLimits)
				common.PrintSeparator("=", common.DefaultWidth)
				return nil
			})
		},
	}
}

func newTankCommand() *cli.Command {
	return &cli.Command{
		Name:  "tank",
		Usage: "show today's tank and threshold state",
		Flags: userFlags(),
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				view, err := services.Api.GetTank(ctx, userId)
				if err != nil {
					return err
				}
				threshold, err := services.Api.CheckThreshold(ctx, userId)
				if err != nil {
					return err
				}

				common.PrintHeader("DAILY TANK", common.DefaultWidth)
				fmt.Printf("Timezone:   %s (day starts %s)\n", view.Timezone, view.DayStart.Format("2006-01-02 15:04 MST"))
				fmt.Printf("Rollover:   %s\n", view.Rollover.StringFixed(2))
				fmt.Printf("Today:      %s\n", view.TodayFaceValue.StringFixed(2))
				fmt.Printf("Total:      %s\n", view.TotalLimit.StringFixed(2))
				fmt.Printf("Remaining:  %s\n", view.CurrentRemaining.StringFixed(2))
				fmt.Printf("Used:       %s (%s%%)\n", view.Used.StringFixed(2), view.PercentageUsed.StringFixed(2))
				if threshold.Reached {
					fmt.Printf("Threshold:  %d%% reached\n", threshold.ReachedThreshold)
				} else {
					fmt.Println("Threshold:  none reached")
				}
				common.PrintSeparator("=", common.DefaultWidth)
				return nil
			})
		},
	}
}

func newHistoryCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.IntFlag{Name: "limit", Value: 20},
		&cli.IntFlag{Name: "offset"},
	)
	return &cli.Command{
		Name:  "history",
		Usage: "list recent transactions, newest first",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				records, err := services.Api.GetTransactionHistory(ctx, userId, c.Int("limit"), c.Int("offset"))
				if err != nil {
					return err
				}

				common.PrintHeader("TRANSACTION HISTORY", common.WideWidth)
				for i, r := range records {
					printRecord(r, i == len(records)-1)
				}
				common.PrintFooter(fmt.Sprintf("%d transactions", len(records)), common.WideWidth)
				return nil
			})
		},
	}
}

func printRecord(r models.TransactionRecord, isLast bool) {
	fmt.Printf("%s%s  %-10s %-9s  %16s  %12s  %s\n",
		common.BoxPrefix(isLast),
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		r.Type, r.Status,
		common.FormatNaira(r.NairaAmount), common.FormatUsd(r.UsdAmount),
		common.ShortId(r.Id))
	if r.MerchantName != "" {
		fmt.Printf("%s  merchant: %s  auth: %s\n", common.BoxDetailPrefix(isLast), r.MerchantName, r.AuthorizationId)
	}
}
