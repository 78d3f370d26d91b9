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
	"os"

	"spend-ledger-go/internal/common"
	"spend-ledger-go/internal/config"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	fUser     = "user"
	fCustomer = "customer"
	fAmount   = "amount"
	fToken    = "token"
	fChain    = "chain"
	fNetwork  = "network"
	fAddress  = "address"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledgerctl",
		Usage: "administer the spending-limit ledger",
		Commands: []*cli.Command{
			newAddUserCommand(),
			newUsersCommand(),
			newAddAddressCommand(),
			newAddressesCommand(),
			newCreateLimitCommand(),
			newSpendCommand(),
			newTransitionCommand(),
			newBalanceCommand(),
			newTankCommand(),
			newHistoryCommand(),
			newLockCommand(),
			newReleaseCommand(),
		},
	}
}

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if err := newApp().Run(os.Args); err != nil {
		zap.L().Error("Command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withServices loads configuration and runs fn against a wired ledger.
func withServices(c *cli.Context, fn func(ctx context.Context, services *common.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// The CLI never polls Prime.
	cfg.Listener.Enabled = false

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	return fn(ctx, services)
}

// resolveUser accepts either --user (internal id) or --customer (card processor id).
func resolveUser(ctx context.Context, c *cli.Context, services *common.Services) (string, error) {
	if id := c.String(fUser); id != "" {
		user, err := services.DbService.GetUserById(ctx, id)
		if err != nil {
			return "", err
		}
		return user.Id, nil
	}
	if customerId := c.String(fCustomer); customerId != "" {
		user, err := services.DbService.FindUserByCustomerId(ctx, customerId)
		if err != nil {
			return "", err
		}
		return user.Id, nil
	}
	return "", fmt.Errorf("one of --%s or --%s is required", fUser, fCustomer)
}

func userFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: fUser, Aliases: []string{"u"}, Usage: "internal user id"},
		&cli.StringFlag{Name: fCustomer, Aliases: []string{"c"}, Usage: "card processor customer id"},
	}
}

func parseAmount(c *cli.Context, name string) (decimal.Decimal, error) {
	raw := c.String(name)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return amount, nil
}
