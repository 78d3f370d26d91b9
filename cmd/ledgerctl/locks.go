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

	"spend-ledger-go/internal/api"
	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/models"

	"github.com/urfave/cli/v2"
)

func newLockCommand() *cli.Command {
	flags := append(userFlags(),
		&cli.StringFlag{Name: "sub-user", Required: true},
		&cli.StringFlag{Name: fAmount, Required: true},
		&cli.StringFlag{Name: "type", Value: models.FundsLockTypeSubUserCardOrder},
		&cli.StringFlag{Name: fToken, Value: "USDC"},
		&cli.StringFlag{Name: fChain, Value: "base"},
		&cli.StringFlag{Name: fNetwork, Value: "base-mainnet"},
		&cli.StringFlag{Name: fAddress, Usage: "check the on-chain balance of this address first"},
	)
	return &cli.Command{
		Name:  "lock",
		Usage: "reserve sponsor funds for a sub-user",
		Flags: flags,
		Action: func(c *cli.Context) error {
			amount, err := parseAmount(c, fAmount)
			if err != nil {
				return err
			}
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				userId, err := resolveUser(ctx, c, services)
				if err != nil {
					return err
				}
				lock, err := services.Api.LockFunds(ctx, api.LockRequest{
					UserId:      userId,
					SubUserId:   c.String("sub-user"),
					Type:        c.String("type"),
					Amount:      amount,
					TokenSymbol: c.String(fToken),
					Chain:       c.String(fChain),
					Network:     c.String(fNetwork),
					Address:     c.String(fAddress),
				})
				if err != nil {
					return err
				}
				printLock(lock)
				return nil
			})
		},
	}
}

func newReleaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "release",
		Usage:     "free a LOCKED funds lock",
		ArgsUsage: "<lock-id>",
		Action: func(c *cli.Context) error {
			lockId := c.Args().First()
			if lockId == "" {
				return fmt.Errorf("lock id argument is required")
			}
			return withServices(c, func(ctx context.Context, services *common.Services) error {
				lock, err := services.Api.ReleaseFunds(ctx, lockId)
				if err != nil {
					return err
				}
				printLock(lock)
				return nil
			})
		},
	}
}

func printLock(lock *models.FundsLock) {
	fmt.Printf("✓ lock %s: %s %s %s for sub-user %s [%s]\n",
		lock.Id, lock.AmountLocked.String(), lock.TokenSymbolLocked, lock.BlockchainNetwork, lock.SubUserId, lock.Status)
}
