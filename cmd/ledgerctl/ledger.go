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
	"spend-ledger-go/internal/ledger"
	"spend-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func newCreateLimitCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.StringFlag{Name: "order", Usage: "settled offramp order id (generated when empty)"},
		&cli.StringFlag{Name: "usd", Required: true, Usage: "USD amount of the order"},
		&cli.StringFlag{Name: "rate", Required: true, Usage: "locked NGN per USD rate"},
		&cli.StringFlag{Name: fToken, Value: "USDC"},
		&cli.StringFlag{Name: fChain, Value: "base"},
		&cli.StringFlag{Name: fNetwork},
	)
	return &cli.Command{
		Name:  "create-limit",
		Usage: "create a spending limit from a settled order",
		Flags: flags,
		Action: func(c *cli.Context) error {
			usd, err := parseAmount(c, "usd")
			if err != nil {
				return err
			}
			rate, err := parseAmount(c, "rate")
			if err != nil {
				return err
			}
			orderId := c.String("order")
			if orderId == "" {
				orderId = uuid.New().String()
			}

			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				result, err := services.Ledger.CreateSpendingLimit(ctx, ledger.SettledOrder{
					OrderId:           orderId,
					UserId:            userId,
					UsdAmount:         usd,
					FxRate:            rate,
					Status:            "settled",
					ChainType:         c.String(fChain),
					TokenSymbol:       c.String(fToken),
					BlockchainNetwork: c.String(fNetwork),
				})
				if err != nil {
					return err
				}

				l := result.Limit
				common.PrintHeader("SPENDING LIMIT", common.DefaultWidth)
				fmt.Printf("ID:        %s\n", l.Id)
				fmt.Printf("Order:     %s\n", l.OrderId)
				fmt.Printf("USD:       %s @ %s\n", l.UsdAmount.String(), l.FxRate.String())
				fmt.Printf("Naira:     %s\n", common.FormatNaira(l.NairaAmount))
				fmt.Printf("Duplicate: %t\n", result.Duplicate)
				common.PrintSeparator("=", common.DefaultWidth)
				return nil
			})
		},
	}
}

func newSpendCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.StringFlag{Name: fAmount, Required: true, Usage: "naira amount"},
		&cli.StringFlag{Name: "authorization", Usage: "card authorization id (generated when empty)"},
		&cli.StringFlag{Name: "merchant", Value: "Unknown Merchant"},
		&cli.StringFlag{Name: "status", Value: models.TransactionStatusCompleted},
	)
	return &cli.Command{
		Name:  "spend",
		Usage: "record a card spend against the user's spending limits",
		Flags: flags,
		Action: func(c *cli.Context) error {
			amount, err := parseAmount(c, fAmount)
			if err != nil {
				return err
			}
			authId := c.String("authorization")
			if authId == "" {
				authId = "manual-" + uuid.New().String()
			}

			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				result, err := services.Ledger.RecordSpend(ctx, ledger.SpendParams{
					UserId:          userId,
					Amount:          amount,
					AuthorizationId: authId,
					MerchantName:    c.String("merchant"),
					Channel:         "manual",
					Category:        "general",
					Status:          c.String("status"),
				})
				if err != nil {
					return err
				}

				txn := result.Transaction
				common.PrintHeader("SPEND RECORDED", common.DefaultWidth)
				fmt.Printf("Transaction: %s (%s)\n", txn.Id, txn.Status)
				fmt.Printf("Naira:       %s\n", common.FormatNaira(txn.NairaAmount))
				fmt.Printf("USD:         %s @ %s\n", txn.UsdAmount.StringFixed(4), txn.EffectiveFxRate.StringFixed(2))
				fmt.Printf("Duplicate:   %t\n", result.Duplicate)
				common.PrintBoxSeparator(common.DefaultWidth - 2)
				for i, chunk := range result.Chunks {
					fmt.Printf("%slimit %s  %s  %s\n",
						common.BoxPrefix(i == len(result.Chunks)-1),
						common.ShortId(chunk.SpendingLimitId), common.FormatNaira(chunk.NairaUsed), common.FormatUsd(chunk.UsdEquivalent))
				}
				common.PrintSeparator("=", common.DefaultWidth)
				return nil
			})
		},
	}
}

func newTransitionCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.StringFlag{Name: "authorization", Required: true},
		&cli.StringFlag{Name: "status", Required: true, Usage: "completed, refund or failed"},
	)
	return &cli.Command{
		Name:  "transition",
		Usage: "move a spend to a new status",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				result, err := services.Ledger.TransitionStatus(ctx, userId, c.String("authorization"), c.String("status"))
				if err != nil {
					return err
				}
				fmt.Printf("✓ %s: %s -> %s (changed: %t)\n",
					result.Transaction.Id, result.Previous, result.Transaction.Status, result.Changed)
				return nil
			})
		},
	}
}
